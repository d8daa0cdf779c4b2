package engagement

import (
	"fmt"
	"testing"
	"time"

	"honeypot/internal/models"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func session(n int, confidence float64) *models.Session {
	s := models.NewSession("s-1", t0)
	for i := 0; i < n; i++ {
		s.Append(models.Message{Sender: models.SenderScammer, Text: fmt.Sprintf("m%d", i), Timestamp: t0.Add(time.Duration(i) * time.Minute)})
	}
	s.Assessment = models.Assessment{Confidence: confidence, ScamDetected: confidence >= 0.65}
	return s
}

func TestPolicyRequiresConfidence(t *testing.T) {
	p := Policy{Threshold: 0.65, MinMessages: 8}
	s := session(10, 0.6)
	s.Intelligence.Add(models.IntelUPI, "rahul@upi")
	assert.Equal(t, Decision{}, p.Evaluate(s))
}

func TestPolicyMinMessages(t *testing.T) {
	p := Policy{Threshold: 0.65, MinMessages: 8}
	assert.False(t, p.Evaluate(session(7, 0.9)).Complete)
	assert.Equal(t, Decision{Complete: true, Reason: ReasonMinMessages}, p.Evaluate(session(8, 0.9)))
}

func TestPolicyHighValueIntel(t *testing.T) {
	p := Policy{Threshold: 0.65}
	s := session(1, 0.7)
	s.Intelligence.Add(models.IntelPhone, "+919876543210")
	assert.False(t, p.Evaluate(s).Complete, "phones alone are not high value")

	for _, kind := range []models.IntelKind{models.IntelUPI, models.IntelBankAccount, models.IntelPhishingLink} {
		s := session(1, 0.7)
		s.Intelligence.Add(kind, "x")
		assert.Equal(t, Decision{Complete: true, Reason: ReasonHighValueIntel}, p.Evaluate(s), kind)
	}
}

func TestPolicyMaxDuration(t *testing.T) {
	p := Policy{Threshold: 0.65, MaxDuration: 5 * time.Minute}
	assert.False(t, p.Evaluate(session(5, 0.8)).Complete)
	assert.Equal(t, ReasonMaxDuration, p.Evaluate(session(6, 0.8)).Reason)

	// disabled by default
	assert.False(t, Policy{Threshold: 0.65}.Evaluate(session(6, 0.8)).Complete)
}

func TestPolicyCompletionIsTerminal(t *testing.T) {
	p := Policy{Threshold: 0.65, MinMessages: 2}
	s := session(2, 0.9)

	d, moved := p.Apply(s, t0)
	assert.True(t, moved)
	assert.Equal(t, ReasonMinMessages, d.Reason)

	// re-scoring below threshold after completion changes nothing
	s.Assessment.Confidence = 0.1
	d, moved = p.Apply(s, t0.Add(time.Hour))
	assert.False(t, moved)
	assert.False(t, d.Complete)
	assert.Equal(t, models.StatusComplete, s.Status)
	assert.Equal(t, ReasonMinMessages, s.CompletionReason)
}
