// Package extract pulls payment identifiers, phone numbers and phishing links out of
// free text and normalizes them so repeated extraction yields identical values.
//
// Numbers are classified by length, never by match order:
//
//  1. separator-formatted numbers that form a valid phone are phones
//  2. a bare run of exactly the national length with a valid leading digit is a phone
//  3. country code plus national number written with an explicit "+" is a phone
//  4. any other run of 9 to 18 digits is a bank account
//
// Links are matched first and UPI ids second; their spans are blanked out before
// numbers are scanned, so digits inside a URL or a UPI id never become accounts.
package extract

import (
	"fmt"
	"strings"

	"honeypot/internal/models"

	"go.uber.org/zap"
)

// Error reports a candidate that matched a recognizer but could not be normalized.
type Error struct {
	Kind models.IntelKind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s %q: %v", e.Kind, e.Raw, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options tune the regional phone convention and the UPI handle allow-list.
type Options struct {
	CountryCode    string
	NationalLength int
	LeadingDigits  string
	UPIHandles     []string
	Shorteners     []string
	Logger         *zap.Logger
}

const (
	minAccountDigits = 9
	maxAccountDigits = 18
)

var (
	defaultUPIHandles = []string{
		"ybl", "okaxis", "okhdfcbank", "okicici", "oksbi", "paytm", "axl", "sbi", "icici",
		"hdfc", "kotak", "upi", "apl", "ibl", "airtel", "jio", "yono",
	}
	emailProviders = map[string]struct{}{
		"gmail": {}, "yahoo": {}, "outlook": {}, "hotmail": {}, "icloud": {},
		"protonmail": {}, "zoho": {}, "yandex": {}, "live": {}, "rediffmail": {},
	}
	defaultShorteners = []string{"bit.ly", "tinyurl.com", "t.co", "rb.gy", "is.gd", "goo.gl"}
)

// Extractor is stateless after construction and safe for concurrent use.
type Extractor struct {
	cc         string
	national   int
	leading    string
	upiHandles map[string]struct{}
	links      *linkMatcher
	logger     *zap.Logger
}

// New builds an extractor; zero options fall back to the Indian numbering plan.
func New(opts Options) *Extractor {
	e := &Extractor{
		cc:         strings.TrimPrefix(opts.CountryCode, "+"),
		national:   opts.NationalLength,
		leading:    opts.LeadingDigits,
		upiHandles: make(map[string]struct{}),
		logger:     opts.Logger,
	}
	if e.cc == "" {
		e.cc = "91"
	}
	if e.national <= 0 {
		e.national = 10
	}
	if e.leading == "" {
		e.leading = "6789"
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	handles := opts.UPIHandles
	if len(handles) == 0 {
		handles = defaultUPIHandles
	}
	for _, h := range handles {
		e.upiHandles[strings.ToLower(strings.TrimSpace(h))] = struct{}{}
	}
	shorteners := opts.Shorteners
	if len(shorteners) == 0 {
		shorteners = defaultShorteners
	}
	e.links = newLinkMatcher(shorteners)
	return e
}

// Extract returns every recognized item in text. The same text always yields the
// same record.
func (e *Extractor) Extract(text string) models.Intelligence {
	out := models.NewIntelligence()
	if strings.TrimSpace(text) == "" {
		return out
	}
	if looksLikeHTML(text) {
		text = flattenHTML(text)
	}

	work, links := e.links.extract(text, e.report)
	out.Add(models.IntelPhishingLink, links...)

	work, upis := e.extractUPI(work)
	out.Add(models.IntelUPI, upis...)

	phones, accounts := e.extractNumbers(work)
	out.Add(models.IntelPhone, phones...)
	out.Add(models.IntelBankAccount, accounts...)
	return out
}

// ExtractAll extracts from each text and unions the results.
func (e *Extractor) ExtractAll(texts ...string) models.Intelligence {
	out := models.NewIntelligence()
	for _, t := range texts {
		out.Merge(e.Extract(t))
	}
	return out
}

func (e *Extractor) report(err error) {
	e.logger.Debug("extraction candidate skipped", zap.Error(err))
}

// blank replaces text[start:end] with spaces, keeping offsets stable.
func blank(text string, start, end int) string {
	return text[:start] + strings.Repeat(" ", end-start) + text[end:]
}
