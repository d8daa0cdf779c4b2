package honeypot

import (
	"fmt"
	"strings"

	"honeypot/internal/models"
)

// agentNotes summarizes the matched signals for the operator reading the report.
func agentNotes(s *models.Session, next string) string {
	a := s.Assessment
	var b strings.Builder
	if a.ScamDetected {
		fmt.Fprintf(&b, "Scam detected (confidence %.2f).", a.Confidence)
	} else {
		fmt.Fprintf(&b, "No scam confirmed (confidence %.2f).", a.Confidence)
	}
	if len(a.Signals) > 0 {
		b.WriteString(" Signals: ")
		b.WriteString(strings.Join(a.Signals, ", "))
		b.WriteString(".")
	}
	if s.Intelligence.HasHighValue() {
		b.WriteString(" High-value intelligence extracted.")
	}
	if !s.Active() {
		fmt.Fprintf(&b, " Engagement complete (%s).", s.CompletionReason)
	}
	if next != "" {
		b.WriteString(" | nextReply: ")
		b.WriteString(next)
	}
	return b.String()
}
