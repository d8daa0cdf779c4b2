package scoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"honeypot/internal/extract"
	"honeypot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestScorer() *Scorer {
	return New(DefaultLexicon(), extract.New(extract.Options{}), DefaultThreshold)
}

func scammer(texts ...string) []models.Message {
	out := make([]models.Message, 0, len(texts))
	for i, text := range texts {
		out = append(out, models.Message{Sender: models.SenderScammer, Text: text, Timestamp: t0.Add(time.Duration(i) * time.Minute)})
	}
	return out
}

func TestScorePayToUPI(t *testing.T) {
	s := newTestScorer()
	a := s.Score(scammer("pay to rahul@upi now or account blocked"))

	assert.Equal(t, 0.70, a.Confidence)
	assert.True(t, a.ScamDetected)
	assert.Equal(t, []string{"kw:account", "kw:blocked", SignalMoneyRequest, SignalUPI}, a.Signals)
}

func TestScoreKeywordHistoryIsDamped(t *testing.T) {
	s := newTestScorer()
	msgs := scammer(
		"URGENT: your KYC is pending, verify today",
		"Sir this is urgent, KYC must verify before evening",
	)

	first := s.Score(msgs[:1])
	assert.Equal(t, 0.66, first.Confidence)
	assert.True(t, first.ScamDetected)

	second := s.Score(msgs)
	assert.Equal(t, 0.99, second.Confidence)
	assert.Equal(t, []string{"kw:kyc", "kw:urgent", "kw:verify"}, second.Signals)
}

func TestScoreIgnoresAgentMessages(t *testing.T) {
	s := newTestScorer()
	history := []models.Message{
		{Sender: models.SenderAgent, Text: "is my KYC blocked? verify urgent?", Timestamp: t0},
		{Sender: models.SenderUser, Text: "what is the UPI ID? send payment link", Timestamp: t0.Add(30 * time.Second)},
		{Sender: models.SenderScammer, Text: "see you at the meeting", Timestamp: t0.Add(time.Minute)},
	}
	a := s.Score(history)
	assert.Equal(t, 0.0, a.Confidence)
	assert.False(t, a.ScamDetected)
	assert.Empty(t, a.Signals)

	assert.Equal(t, models.Assessment{Signals: []string{}}, s.Score(nil))
}

func TestScoreWordBoundaries(t *testing.T) {
	s := newTestScorer()
	// "pkyc" is not "kyc", "book" is not "ok", "panel" is not "pan"
	r := s.ScoreText("please book the pkyc panel")
	assert.Equal(t, 0.0, r.Score)
	assert.Empty(t, r.Signals)
}

func TestScoreBenignNegatives(t *testing.T) {
	s := newTestScorer()
	a := s.Score(scammer("Hello, are we still meeting for the project tomorrow?"))
	assert.Equal(t, 0.0, a.Confidence)
	assert.False(t, a.ScamDetected)
}

func TestScoreHinglishAndObfuscation(t *testing.T) {
	s := newTestScorer()

	a := s.Score(scammer("OTP bhejo jaldi warna account band ho jayega"))
	assert.Equal(t, 0.90, a.Confidence)
	assert.Contains(t, a.Signals, SignalOTPRequest)
	assert.Contains(t, a.Signals, "kw:band ho jayega")

	r := s.ScoreText("share your o.t.p now")
	assert.Equal(t, 0.42, r.Score)
	assert.Equal(t, []string{"kw:otp", SignalOTPRequest}, r.Signals)
}

func TestScoreLinkAndPhoneRules(t *testing.T) {
	s := newTestScorer()
	r := s.ScoreText("Your account is suspended. Click bit.ly/xfg2 to verify now!")
	assert.Contains(t, r.Signals, SignalLink)
	assert.True(t, r.Strong)

	r = s.ScoreText("lunch menu is on bat.co/menu")
	assert.NotContains(t, r.Signals, SignalLink)

	r = s.ScoreText("open sbi-verify.bit.ly/abc")
	assert.Contains(t, r.Signals, SignalLink)

	r = s.ScoreText("call 9876543210")
	assert.Equal(t, 0.15, r.Score)
	assert.Equal(t, []string{SignalPhone}, r.Signals)
}

func TestScoreIsDeterministic(t *testing.T) {
	s := newTestScorer()
	msgs := scammer("pay to rahul@upi now", "verify KYC at hxxp://phish[.]example.com/login")
	assert.Equal(t, s.Score(msgs), s.Score(msgs))
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"kyc", "upi id"}, Keywords([]string{"kw:kyc", SignalUPI, "kw:upi id"}))
}

func TestLoadLexiconOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
high_risk: [scheme]
weights:
  high_risk: 0.5
`), 0o600))

	lex, err := LoadLexicon(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"scheme"}, lex.HighRisk)
	assert.Equal(t, 0.5, lex.Weights.HighRisk)
	assert.Equal(t, 0.10, lex.Weights.MediumRisk)
	assert.NotEmpty(t, lex.MediumRisk)

	s := New(lex, nil, 0.4)
	a := s.Score(scammer("join this scheme"))
	assert.Equal(t, 0.5, a.Confidence)
	assert.True(t, a.ScamDetected)
}

func TestLoadLexiconRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  max: 2\n"), 0o600))
	_, err := LoadLexicon(path)
	assert.Error(t, err)

	lex, err := LoadLexicon("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLexicon(), lex)
}
