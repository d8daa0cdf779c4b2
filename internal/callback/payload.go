package callback

import (
	"time"

	"honeypot/internal/models"
)

const summaryExcerpt = 3

// Payload is the completion report posted to the sink.
type Payload struct {
	SessionID             string                       `json:"sessionId"`
	ScamDetected          bool                         `json:"scamDetected"`
	TotalMessages         int                          `json:"totalMessagesExchanged"`
	EngagementMetrics     models.Metrics               `json:"engagementMetrics"`
	ExtractedIntelligence models.ExtractedIntelligence `json:"extractedIntelligence"`
	Assessment            models.Assessment            `json:"assessment"`
	AgentNotes            string                       `json:"agentNotes"`
	ConversationSummary   Summary                      `json:"conversationSummary"`
	CompletedAt           *time.Time                   `json:"completedAt,omitempty"`
	CompletionReason      string                       `json:"completionReason,omitempty"`
}

// Summary condenses the conversation for the consumer.
type Summary struct {
	MessagesBySender map[models.Sender]int `json:"messagesBySender"`
	FirstMessageAt   *time.Time            `json:"firstMessageAt,omitempty"`
	LastMessageAt    *time.Time            `json:"lastMessageAt,omitempty"`
	LastMessages     []models.Message      `json:"lastMessages"`
}

// BuildPayload snapshots the session into its report.
func BuildPayload(s *models.Session) Payload {
	metrics := s.Metrics()
	return Payload{
		SessionID:             s.ID,
		ScamDetected:          s.Assessment.ScamDetected,
		TotalMessages:         metrics.TotalMessages,
		EngagementMetrics:     metrics,
		ExtractedIntelligence: s.Intelligence.Wire(),
		Assessment:            s.Assessment,
		AgentNotes:            s.AgentNotes,
		ConversationSummary:   summarize(s.History),
		CompletedAt:           s.CompletedAt,
		CompletionReason:      s.CompletionReason,
	}
}

func summarize(history []models.Message) Summary {
	sum := Summary{
		MessagesBySender: make(map[models.Sender]int),
		LastMessages:     []models.Message{},
	}
	if len(history) == 0 {
		return sum
	}
	for _, m := range history {
		sum.MessagesBySender[m.Sender]++
	}
	first, last := history[0].Timestamp, history[len(history)-1].Timestamp
	sum.FirstMessageAt, sum.LastMessageAt = &first, &last

	start := len(history) - summaryExcerpt
	if start < 0 {
		start = 0
	}
	sum.LastMessages = append(sum.LastMessages, history[start:]...)
	return sum
}
