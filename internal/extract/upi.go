package extract

import (
	"regexp"
	"strings"
)

var upiRe = regexp.MustCompile(`[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]{2,}`)

const maxGenericHandle = 12

// extractUPI returns the accepted UPI ids and text with every candidate blanked out.
// Email-shaped candidates are blanked too so their digits never read as numbers.
func (e *Extractor) extractUPI(text string) (string, []string) {
	var out []string
	for _, loc := range upiRe.FindAllStringIndex(text, -1) {
		if id, ok := e.normalizeUPI(text[loc[0]:loc[1]]); ok {
			out = append(out, id)
		}
		text = blank(text, loc[0], loc[1])
	}
	return text, out
}

func (e *Extractor) normalizeUPI(raw string) (string, bool) {
	c := strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), ".-_")
	local, handle, ok := strings.Cut(c, "@")
	if !ok || local == "" || handle == "" || strings.Contains(handle, "@") {
		return "", false
	}
	primary, _, _ := strings.Cut(handle, ".")
	if _, isEmail := emailProviders[primary]; isEmail {
		return "", false
	}
	if _, known := e.upiHandles[handle]; known {
		return c, true
	}
	if !strings.Contains(handle, ".") && len(handle) <= maxGenericHandle {
		return c, true
	}
	return "", false
}
