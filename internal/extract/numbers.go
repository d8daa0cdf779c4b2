package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// digits with interior spaces or dashes, optionally led by "+"
	formattedRe = regexp.MustCompile(`\+?\d[\d \t-]{7,}\d`)
	digitRunRe  = regexp.MustCompile(`\+?\d+`)
	groupRe     = regexp.MustCompile(`\d+`)
)

func (e *Extractor) extractNumbers(text string) (phones, accounts []string) {
	// separator-formatted phones first
	for _, loc := range formattedRe.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		if !strings.ContainsAny(raw, " \t-") || !isolated(text, loc[0], loc[1]) {
			continue
		}
		found, spans := e.formattedPhones(raw)
		phones = append(phones, found...)
		for _, sp := range spans {
			text = blank(text, loc[0]+sp[0], loc[0]+sp[1])
		}
	}

	for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
		if !isolated(text, loc[0], loc[1]) {
			continue
		}
		raw := text[loc[0]:loc[1]]
		plus := strings.HasPrefix(raw, "+")
		digits := strings.TrimPrefix(raw, "+")
		if phone, ok := e.phone(digits, plus); ok {
			phones = append(phones, phone)
			continue
		}
		if !plus && len(digits) >= minAccountDigits && len(digits) <= maxAccountDigits {
			accounts = append(accounts, digits)
		}
	}
	return phones, accounts
}

// formattedPhones finds phones inside one separator-joined span. The span may run
// into neighbouring numbers, so contiguous windows of its digit groups are tried,
// longest first. It returns the phones and their spans relative to raw.
func (e *Extractor) formattedPhones(raw string) (phones []string, spans [][2]int) {
	groups := groupRe.FindAllStringIndex(raw, -1)
	plus := strings.HasPrefix(raw, "+")
	for i := 0; i < len(groups); {
		next := i + 1
		for j := len(groups) - 1; j > i; j-- {
			var digits strings.Builder
			for _, g := range groups[i : j+1] {
				digits.WriteString(raw[g[0]:g[1]])
			}
			phone, ok := e.phone(digits.String(), plus && i == 0)
			if !ok {
				continue
			}
			start := groups[i][0]
			if plus && i == 0 {
				start = 0
			}
			phones = append(phones, phone)
			spans = append(spans, [2]int{start, groups[j][1]})
			next = j + 1
			break
		}
		i = next
	}
	return phones, spans
}

// phone classifies a separator-free digit string. The country-code form only counts
// when written with an explicit "+".
func (e *Extractor) phone(digits string, plus bool) (string, bool) {
	switch {
	case len(digits) == e.national && e.validNational(digits):
		return "+" + e.cc + digits, true
	case plus && len(digits) == len(e.cc)+e.national && strings.HasPrefix(digits, e.cc) &&
		e.validNational(digits[len(e.cc):]):
		return "+" + digits, true
	default:
		return "", false
	}
}

func (e *Extractor) validNational(n string) bool {
	return n != "" && strings.IndexByte(e.leading, n[0]) >= 0
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// isolated reports whether text[start:end] is not glued to letters or digits,
// so order ids like "ORD12345678901" are ignored.
func isolated(text string, start, end int) bool {
	if start > 0 {
		r := rune(text[start-1])
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	if end < len(text) {
		r := rune(text[end])
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}
