// Package engagement decides when a honeypot conversation has produced enough to stop.
package engagement

import (
	"time"

	"honeypot/internal/models"
)

// Completion reasons recorded on the session.
const (
	ReasonMinMessages    = "min_messages"
	ReasonHighValueIntel = "high_value_intel"
	ReasonMaxDuration    = "max_duration"
)

const DefaultMinMessages = 8

// Decision is the outcome of one evaluation.
type Decision struct {
	Complete bool
	Reason   string
}

// Policy fires ACTIVE -> COMPLETE once the scam is confirmed and the engagement has
// either run long enough or yielded a high-value item. Phone numbers alone never
// count as high value.
type Policy struct {
	Threshold   float64
	MinMessages int
	// MaxDuration, when positive, also ends an engagement that has run this long.
	MaxDuration time.Duration
}

// Evaluate inspects the session without mutating it. A session that is already
// complete never produces a new decision.
func (p Policy) Evaluate(s *models.Session) Decision {
	if s == nil || !s.Active() {
		return Decision{}
	}
	if s.Assessment.Confidence < p.Threshold {
		return Decision{}
	}
	metrics := s.Metrics()
	minMessages := p.MinMessages
	if minMessages <= 0 {
		minMessages = DefaultMinMessages
	}
	switch {
	case s.Intelligence.HasHighValue():
		return Decision{Complete: true, Reason: ReasonHighValueIntel}
	case metrics.TotalMessages >= minMessages:
		return Decision{Complete: true, Reason: ReasonMinMessages}
	case p.MaxDuration > 0 && time.Duration(metrics.DurationSeconds)*time.Second >= p.MaxDuration:
		return Decision{Complete: true, Reason: ReasonMaxDuration}
	default:
		return Decision{}
	}
}

// Apply evaluates and, on a positive decision, performs the transition. It reports
// whether this call moved the session to COMPLETE.
func (p Policy) Apply(s *models.Session, now time.Time) (Decision, bool) {
	d := p.Evaluate(s)
	if !d.Complete {
		return d, false
	}
	return d, s.MarkComplete(d.Reason, now)
}
