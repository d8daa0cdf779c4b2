package models

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is the engagement state of a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusComplete Status = "COMPLETE"
)

var (
	ErrNotComplete      = errors.New("session is not complete")
	ErrAlreadyDelivered = errors.New("callback already delivered")
)

// Assessment is the scam score of the full history at one point in time.
type Assessment struct {
	Confidence   float64  `json:"confidence"`
	Signals      []string `json:"matchedSignals"`
	ScamDetected bool     `json:"scamDetected"`
}

// Metrics are derived from the history and never set directly.
type Metrics struct {
	DurationSeconds int64 `json:"engagementDurationSeconds"`
	TotalMessages   int   `json:"totalMessagesExchanged"`
}

// Session is the aggregate root of one engagement.
type Session struct {
	ID           string       `json:"sessionId"`
	History      []Message    `json:"conversationHistory"`
	Assessment   Assessment   `json:"assessment"`
	Intelligence Intelligence `json:"extractedIntelligence"`
	Status       Status       `json:"status"`
	Metadata     Metadata     `json:"metadata"`

	CompletionReason string     `json:"completionReason,omitempty"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`

	CallbackDelivered bool       `json:"callbackDelivered"`
	CallbackAttempts  int        `json:"callbackAttempts"`
	CallbackFailed    bool       `json:"callbackFailed"`
	CallbackError     string     `json:"callbackError,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`

	AgentNotes string `json:"agentNotes"`
	LastReply  string `json:"lastReply,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSession creates an empty ACTIVE session.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		History:      make([]Message, 0),
		Intelligence: NewIntelligence(),
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Active reports whether the engagement is still running.
func (s *Session) Active() bool {
	return s.Status != StatusComplete
}

// Append adds messages to the end of the history.
func (s *Session) Append(msgs ...Message) {
	s.History = append(s.History, msgs...)
}

// Absorb appends the platform-supplied messages that are not yet in the history,
// keeping their given order. A "user" message whose text matches one of our agent
// replies is the platform echoing that reply and is not stored again. It returns the
// messages that were appended.
func (s *Session) Absorb(platform []Message) []Message {
	if len(platform) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(s.History))
	for _, m := range s.History {
		seen[m.dedupeKey()] = struct{}{}
	}
	replies := s.agentReplies()
	var added []Message
	for _, m := range platform {
		key := m.dedupeKey()
		if _, ok := seen[key]; ok {
			continue
		}
		if m.Sender == SenderUser && replies[m.textKey()] > 0 {
			replies[m.textKey()]--
			continue
		}
		seen[key] = struct{}{}
		added = append(added, m)
	}
	s.Append(added...)
	return added
}

// agentReplies counts our own replies by normalized text.
func (s *Session) agentReplies() map[string]int {
	replies := make(map[string]int)
	for _, m := range s.History {
		if m.Sender == SenderAgent {
			replies[m.textKey()]++
		}
	}
	return replies
}

// Contains reports whether an equivalent message is already in the history. A "user"
// message also matches an agent reply with the same text.
func (s *Session) Contains(m Message) bool {
	key := m.dedupeKey()
	for _, h := range s.History {
		if h.dedupeKey() == key {
			return true
		}
		if m.Sender == SenderUser && h.Sender == SenderAgent && h.textKey() == m.textKey() {
			return true
		}
	}
	return false
}

// Metrics derives engagement metrics from the history.
func (s *Session) Metrics() Metrics {
	m := Metrics{TotalMessages: len(s.History)}
	if len(s.History) < 2 {
		return m
	}
	d := s.History[len(s.History)-1].Timestamp.Sub(s.History[0].Timestamp)
	if d > 0 {
		m.DurationSeconds = int64(d / time.Second)
	}
	return m
}

// MergeIntelligence unions in into the session record. Values are never removed.
func (s *Session) MergeIntelligence(in Intelligence) int {
	if s.Intelligence == nil {
		s.Intelligence = NewIntelligence()
	}
	return s.Intelligence.Merge(in)
}

// MarkComplete performs the ACTIVE -> COMPLETE transition. It returns false when
// the session was already complete.
func (s *Session) MarkComplete(reason string, at time.Time) bool {
	if s.Status == StatusComplete {
		return false
	}
	s.Status = StatusComplete
	s.CompletionReason = reason
	s.CompletedAt = &at
	return true
}

// CanDeliver reports whether a callback may be sent for this session.
func (s *Session) CanDeliver() error {
	if s.Status != StatusComplete {
		return ErrNotComplete
	}
	if s.CallbackDelivered {
		return ErrAlreadyDelivered
	}
	return nil
}

// MarkDelivered records a confirmed callback delivery.
func (s *Session) MarkDelivered(attempts int, at time.Time) error {
	if err := s.CanDeliver(); err != nil {
		return err
	}
	s.CallbackDelivered = true
	s.CallbackAttempts += attempts
	s.CallbackFailed = false
	s.CallbackError = ""
	s.DeliveredAt = &at
	return nil
}

// RecordDeliveryFailure records an exhausted callback delivery. The delivered flag
// is left untouched.
func (s *Session) RecordDeliveryFailure(attempts int, err error) {
	s.CallbackAttempts += attempts
	s.CallbackFailed = true
	if err != nil {
		s.CallbackError = err.Error()
	}
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	data, err := json.Marshal(s)
	if err != nil {
		cp := *s
		return &cp
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		cp := *s
		return &cp
	}
	return &out
}
