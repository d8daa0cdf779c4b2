package extract

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"honeypot/internal/models"
)

const linkTrailing = `).,;:!?"'>]}`

var (
	hxxpRe       = regexp.MustCompile(`(?i)\bh(?:xx|\*\*)p(s?)://`)
	obfuscDotRe  = regexp.MustCompile(`(?i)\[\.\]|\(\.\)|\{\.\}|\[dot\]|\(dot\)|\{dot\}`)
	obfuscColRe  = regexp.MustCompile(`\[:\]|\(:\)`)
	spacedDotRe  = regexp.MustCompile(`(?i)(https?://\S*?[a-z0-9]) \. ?([a-z0-9])`)
	schemeURLRe  = regexp.MustCompile(`(?i)\bhttps?://[^\s<>"'` + "`" + `]+`)
	hostLabelRe  = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	obfuscHostRe = regexp.MustCompile(`(?i)\b[a-z0-9-]+(?:(?:\[\.\]|\(\.\)|\{\.\}|\[dot\]|\(dot\)|\{dot\}|\.)[a-z0-9-]+)+(?:/[^\s<>"']*)?`)
)

var errBadHost = errors.New("invalid host")

type linkMatcher struct {
	shortenerRe *regexp.Regexp
}

func newLinkMatcher(shorteners []string) *linkMatcher {
	quoted := make([]string, 0, len(shorteners))
	for _, s := range shorteners {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(s)))
	}
	// the shortener must be the whole host or its parent domain, never the tail of
	// another label ("bat.co" is not "t.co")
	return &linkMatcher{
		shortenerRe: regexp.MustCompile(`(?i)(?:^|[^a-z0-9._@-])((?:[a-z0-9-]+\.)*(?:` + strings.Join(quoted, "|") + `)/[a-z0-9_\-]+)`),
	}
}

// Deobfuscate rewrites defanged links ("hxxp", "[.]", "[:]", spaced dots) into
// plain form. Schemeless hosts written with obfuscated dots gain an http scheme.
func Deobfuscate(text string) string {
	text = obfuscColRe.ReplaceAllString(text, ":")
	text = schemeObfuscatedHosts(text)
	text = hxxpRe.ReplaceAllString(text, "http$1://")
	text = obfuscDotRe.ReplaceAllString(text, ".")
	for i := 0; i < 16; i++ {
		next := spacedDotRe.ReplaceAllString(text, "$1.$2")
		if next == text {
			break
		}
		text = next
	}
	return text
}

// schemeObfuscatedHosts prefixes http:// to hosts like "phish[.]example[.]com" that
// carry no scheme of their own.
func schemeObfuscatedHosts(text string) string {
	idx := obfuscHostRe.FindAllStringIndex(text, -1)
	if len(idx) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range idx {
		start, end := m[0], m[1]
		match := text[start:end]
		if !obfuscDotRe.MatchString(match) || strings.HasSuffix(text[:start], "://") {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString("http://")
		b.WriteString(match)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// Canonicalize normalizes one link: lowercase scheme and host, no fragment, no
// surrounding punctuation.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), linkTrailing)
	u, err := url.Parse(raw)
	if err != nil {
		return "", &Error{Kind: models.IntelPhishingLink, Raw: raw, Err: err}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &Error{Kind: models.IntelPhishingLink, Raw: raw, Err: errors.New("unsupported scheme")}
	}
	if !validHost(u.Hostname()) {
		return "", &Error{Kind: models.IntelPhishingLink, Raw: raw, Err: errBadHost}
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String(), nil
}

func validHost(host string) bool {
	if host == "" || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !hostLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// extract returns the canonical links in text and a copy of the de-obfuscated
// text with every matched link blanked out.
func (m *linkMatcher) extract(text string, report func(error)) (string, []string) {
	work := Deobfuscate(text)
	var links []string

	for _, loc := range schemeURLRe.FindAllStringIndex(work, -1) {
		link, err := Canonicalize(work[loc[0]:loc[1]])
		if err != nil {
			report(err)
		} else {
			links = append(links, link)
		}
		work = blank(work, loc[0], loc[1])
	}
	for _, sub := range m.shortenerRe.FindAllStringSubmatchIndex(work, -1) {
		loc := sub[2:4]
		link, err := Canonicalize("https://" + work[loc[0]:loc[1]])
		if err != nil {
			report(err)
		} else {
			links = append(links, link)
		}
		work = blank(work, loc[0], loc[1])
	}
	return work, links
}
