package scoring

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Weights are the additive contributions of each kind of evidence.
type Weights struct {
	HighRisk       float64 `yaml:"high_risk"`
	MediumRisk     float64 `yaml:"medium_risk"`
	KeywordCap     float64 `yaml:"keyword_cap"`
	Link           float64 `yaml:"link"`
	MoneyRequest   float64 `yaml:"money_request"`
	OTPRequest     float64 `yaml:"otp_request"`
	Phone          float64 `yaml:"phone"`
	UPI            float64 `yaml:"upi"`
	Negative       float64 `yaml:"negative"`
	HistoryDamping float64 `yaml:"history_damping"`
	Max            float64 `yaml:"max"`
}

// Lexicon is the keyword and rule vocabulary. It is loaded once at startup and
// only read afterwards.
type Lexicon struct {
	HighRisk     []string `yaml:"high_risk"`
	MediumRisk   []string `yaml:"medium_risk"`
	Negative     []string `yaml:"negative"`
	MoneyTerms   []string `yaml:"money_terms"`
	SecretTerms  []string `yaml:"secret_terms"`
	RequestVerbs []string `yaml:"request_verbs"`
	Shorteners   []string `yaml:"shorteners"`
	Weights      Weights  `yaml:"weights"`
}

// DefaultLexicon covers English and Hinglish scam phrasing.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		HighRisk: []string{
			"otp", "cvv", "kyc", "verify", "blocked", "lottery", "prize", "winner", "urgent",
			"urgently", "immediate", "immediately", "suspend", "suspended", "electricity",
			"disconnect", "customs", "gift", "turant", "jaldi", "abhi", "warna", "band ho jayega",
			"account band", "freeze", "frozen", "otp bhejo", "otp send", "kyc update",
			"verify karo", "link kholo", "verify account", "verify your account", "update kyc",
			"refund", "cashback", "reward", "inaam", "collect request",
		},
		MediumRisk: []string{
			"update", "pan", "aadhar", "aadhaar", "link", "click", "manager", "bank", "account",
			"credit", "debit", "upi id", "paise",
		},
		Negative: []string{
			"thank you", "thanks", "ok", "yes", "no", "hello", "hi", "meeting", "project",
			"assignment",
		},
		MoneyTerms: []string{
			"pay", "payment", "transfer", "deposit", "fee", "fees", "charges", "send money",
			"paise bhejo", "paisa bhejo", "rupees", "rs", "inr",
		},
		SecretTerms: []string{"otp", "cvv", "pin", "mpin", "password", "code"},
		RequestVerbs: []string{
			"share", "send", "tell", "give", "provide", "enter", "forward", "bhejo", "batao",
			"do", "dijiye",
		},
		Shorteners: []string{"bit.ly", "tinyurl.com", "t.co", "rb.gy", "is.gd", "goo.gl"},
		Weights: Weights{
			HighRisk:       0.22,
			MediumRisk:     0.10,
			KeywordCap:     0.70,
			Link:           0.22,
			MoneyRequest:   0.20,
			OTPRequest:     0.20,
			Phone:          0.15,
			UPI:            0.18,
			Negative:       0.15,
			HistoryDamping: 0.5,
			Max:            0.99,
		},
	}
}

// LoadLexicon reads a YAML lexicon. Lists and weights present in the file replace
// the defaults; absent ones keep them.
func LoadLexicon(path string) (*Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	if err := yaml.Unmarshal(data, lex); err != nil {
		return nil, fmt.Errorf("decode lexicon %s: %w", path, err)
	}
	if err := lex.validate(); err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

// Marshal renders the lexicon as YAML.
func (l *Lexicon) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

func (l *Lexicon) validate() error {
	if len(l.HighRisk) == 0 {
		return fmt.Errorf("high_risk list is empty")
	}
	w := l.Weights
	if w.Max <= 0 || w.Max > 1 {
		return fmt.Errorf("weights.max must be in (0,1], got %v", w.Max)
	}
	if w.HistoryDamping < 0 || w.HistoryDamping > 1 {
		return fmt.Errorf("weights.history_damping must be in [0,1], got %v", w.HistoryDamping)
	}
	for _, term := range append(append([]string{}, l.HighRisk...), l.MediumRisk...) {
		if len(tokenize(term)) == 0 {
			return fmt.Errorf("term %q has no words", term)
		}
	}
	return nil
}

// phrase is a lexicon entry split into tokens.
type phrase struct {
	text   string
	tokens []string
}

func compile(terms []string) []phrase {
	out := make([]phrase, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		if toks := tokenize(t); len(toks) > 0 {
			out = append(out, phrase{text: t, tokens: toks})
		}
	}
	return out
}
