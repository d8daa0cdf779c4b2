package models

import (
	"strings"
	"time"
)

// Sender identifies who authored a message in the conversation history.
type Sender string

const (
	SenderScammer Sender = "scammer"
	SenderUser    Sender = "user"
	SenderAgent   Sender = "agent"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	switch s {
	case SenderScammer, SenderUser, SenderAgent:
		return true
	default:
		return false
	}
}

// Message is one immutable entry of a conversation. History order is chronological.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// dedupeKey identifies the same message delivered twice (platform history replays).
func (m Message) dedupeKey() string {
	return string(m.Sender) + "\x00" + m.textKey() + "\x00" + m.Timestamp.UTC().Format(time.RFC3339Nano)
}

func (m Message) textKey() string {
	return strings.ToLower(strings.TrimSpace(m.Text))
}

// Inbound reports whether the message came from the scammer. The platform labels the
// honeypot's side of the conversation "user", so only scammer messages are evidence.
func (m Message) Inbound() bool {
	return m.Sender == SenderScammer
}

// Persona reports whether the message was written on the honeypot's side: our own
// replies, or the platform's "user" copy of them.
func (m Message) Persona() bool {
	return m.Sender == SenderAgent || m.Sender == SenderUser
}
