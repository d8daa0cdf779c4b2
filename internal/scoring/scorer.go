// Package scoring rates how likely a conversation is a scam. Scores are a pure
// function of the history and the lexicon.
package scoring

import (
	"math"
	"sort"
	"strings"

	"honeypot/internal/models"
)

// Signal identifiers for structural rules. Keyword signals are "kw:<term>".
const (
	SignalLink         = "rule:link"
	SignalMoneyRequest = "rule:money_request"
	SignalOTPRequest   = "rule:otp_request"
	SignalPhone        = "rule:phone"
	SignalUPI          = "rule:upi"

	keywordPrefix = "kw:"
)

// DefaultThreshold is the confidence at which a conversation counts as a scam.
const DefaultThreshold = 0.65

// Evidence finds structured intelligence in text.
type Evidence interface {
	Extract(text string) models.Intelligence
}

// TextScore is the breakdown for a single block of text.
type TextScore struct {
	Score   float64
	Signals []string
	Strong  bool
}

type Scorer struct {
	w          Weights
	high       []phrase
	medium     []phrase
	negative   []phrase
	money      []phrase
	secret     []phrase
	verbs      []phrase
	shorteners []string
	evidence   Evidence
	threshold  float64
}

// New compiles lex into a scorer. The lexicon is copied; later changes to it have no effect.
func New(lex *Lexicon, evidence Evidence, threshold float64) *Scorer {
	if lex == nil {
		lex = DefaultLexicon()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	shorteners := make([]string, 0, len(lex.Shorteners))
	for _, s := range lex.Shorteners {
		shorteners = append(shorteners, strings.ToLower(s)+"/")
	}
	return &Scorer{
		w:          lex.Weights,
		high:       compile(lex.HighRisk),
		medium:     compile(lex.MediumRisk),
		negative:   compile(lex.Negative),
		money:      compile(lex.MoneyTerms),
		secret:     compile(lex.SecretTerms),
		verbs:      compile(lex.RequestVerbs),
		shorteners: shorteners,
		evidence:   evidence,
		threshold:  threshold,
	}
}

// Threshold is the confidence at which Score reports a scam.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score rates the full history. Only scammer messages are evidence. The latest
// inbound message counts in full; earlier inbound messages are scored as one block
// and damped.
func (s *Scorer) Score(history []models.Message) models.Assessment {
	var inbound []string
	for _, m := range history {
		if m.Inbound() {
			inbound = append(inbound, m.Text)
		}
	}
	if len(inbound) == 0 {
		return models.Assessment{Signals: []string{}}
	}

	latest := s.ScoreText(inbound[len(inbound)-1])
	total := latest.Score
	signals := latest.Signals
	if len(inbound) > 1 {
		earlier := s.ScoreText(strings.Join(inbound[:len(inbound)-1], "\n"))
		total += s.w.HistoryDamping * earlier.Score
		signals = append(signals, earlier.Signals...)
	}
	total = round2(math.Min(total, s.w.Max))

	return models.Assessment{
		Confidence:   total,
		Signals:      uniqueSorted(signals),
		ScamDetected: total >= s.threshold,
	}
}

// ScoreText rates one block of text on its own.
func (s *Scorer) ScoreText(text string) TextScore {
	norm := normalize(text)
	ts := newTokenSet(tokenize(norm))
	var signals []string

	keyword := 0.0
	strongKeyword := false
	for _, p := range s.high {
		if ts.has(p) {
			keyword += s.w.HighRisk
			strongKeyword = true
			signals = append(signals, keywordPrefix+p.text)
		}
	}
	for _, p := range s.medium {
		if ts.has(p) {
			keyword += s.w.MediumRisk
			signals = append(signals, keywordPrefix+p.text)
		}
	}
	score := math.Min(keyword, s.w.KeywordCap)

	var intel models.Intelligence
	if s.evidence != nil {
		intel = s.evidence.Extract(text)
	}
	rule := func(hit bool, weight float64, signal string) bool {
		if hit {
			score += weight
			signals = append(signals, signal)
		}
		return hit
	}
	link := rule(len(intel[models.IntelPhishingLink]) > 0 || s.mentionsShortener(norm), s.w.Link, SignalLink)
	money := rule(ts.any(s.money), s.w.MoneyRequest, SignalMoneyRequest)
	otp := rule(ts.any(s.secret) && ts.any(s.verbs), s.w.OTPRequest, SignalOTPRequest)
	phone := rule(len(intel[models.IntelPhone]) > 0, s.w.Phone, SignalPhone)
	upi := rule(len(intel[models.IntelUPI]) > 0, s.w.UPI, SignalUPI)

	strong := strongKeyword || link || money || otp || phone || upi
	if !strong {
		for _, p := range s.negative {
			if ts.has(p) {
				score -= s.w.Negative
			}
		}
	}
	return TextScore{Score: round2(math.Max(score, 0)), Signals: signals, Strong: strong}
}

// mentionsShortener looks for a shortener as a whole host or parent domain, so
// "t.co/" never fires inside "bat.co/".
func (s *Scorer) mentionsShortener(norm string) bool {
	for _, sh := range s.shorteners {
		for from := 0; ; {
			i := strings.Index(norm[from:], sh)
			if i < 0 {
				break
			}
			at := from + i
			if at == 0 || hostBoundary(norm[at-1]) {
				return true
			}
			from = at + 1
		}
	}
	return false
}

func hostBoundary(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '@':
		return false
	default:
		return true
	}
}

// Keywords returns the lexicon terms named by keyword signals.
func Keywords(signals []string) []string {
	var out []string
	for _, sig := range signals {
		if kw, ok := strings.CutPrefix(sig, keywordPrefix); ok {
			out = append(out, kw)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
