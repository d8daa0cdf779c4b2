package scoring

import (
	"regexp"
	"strings"
	"unicode"
)

var obfuscated = []struct {
	re   *regexp.Regexp
	word string
}{
	{regexp.MustCompile(`\bo[.\-_ ]*t[.\-_ ]*p\b`), "otp"},
	{regexp.MustCompile(`\bk[.\-_ ]*y[.\-_ ]*c\b`), "kyc"},
	{regexp.MustCompile(`\bc[.\-_ ]*v[.\-_ ]*v\b`), "cvv"},
	{regexp.MustCompile(`\b0tp\b`), "otp"},
}

// normalize lowercases text and collapses spelled-out sensitive words such as
// "o.t.p" or "0tp".
func normalize(text string) string {
	text = strings.ToLower(text)
	for _, o := range obfuscated {
		text = o.re.ReplaceAllString(text, o.word)
	}
	return strings.Join(strings.Fields(text), " ")
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenSet indexes a token sequence for phrase lookups.
type tokenSet struct {
	seq []string
	pos map[string][]int
}

func newTokenSet(tokens []string) tokenSet {
	pos := make(map[string][]int, len(tokens))
	for i, t := range tokens {
		pos[t] = append(pos[t], i)
	}
	return tokenSet{seq: tokens, pos: pos}
}

// has reports whether p occurs as whole tokens: a single word must equal a token
// and a phrase must match a contiguous run.
func (ts tokenSet) has(p phrase) bool {
	starts := ts.pos[p.tokens[0]]
	if len(p.tokens) == 1 {
		return len(starts) > 0
	}
	for _, i := range starts {
		if i+len(p.tokens) > len(ts.seq) {
			continue
		}
		match := true
		for j := 1; j < len(p.tokens); j++ {
			if ts.seq[i+j] != p.tokens[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (ts tokenSet) any(ps []phrase) bool {
	for _, p := range ps {
		if ts.has(p) {
			return true
		}
	}
	return false
}
