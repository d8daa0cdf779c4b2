package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"honeypot/internal/models"
)

const maxTextLen = 8000

// ValidationError is a malformed request. It never reaches the engine.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type messageRequest struct {
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type metadataRequest struct {
	Channel  string `json:"channel"`
	Language string `json:"language"`
	Locale   string `json:"locale"`
}

type honeypotRequest struct {
	SessionID           string           `json:"sessionId"`
	Message             *messageRequest  `json:"message"`
	ConversationHistory []messageRequest `json:"conversationHistory"`
	Metadata            *metadataRequest `json:"metadata"`
}

// envelope validates the request and converts it for the engine. Missing
// timestamps fall back to received.
func (r *honeypotRequest) envelope(received time.Time) (models.Envelope, error) {
	var env models.Envelope
	env.SessionID = strings.TrimSpace(r.SessionID)
	if env.SessionID == "" {
		return env, invalid("sessionId", "is required")
	}
	if len(env.SessionID) > 128 {
		return env, invalid("sessionId", "is longer than 128 characters")
	}
	if r.Message == nil {
		return env, invalid("message", "is required")
	}
	msg, err := r.Message.toModel("message", received)
	if err != nil {
		return env, err
	}
	env.Message = msg

	if len(r.ConversationHistory) > 0 {
		env.ConversationHistory = make([]models.Message, 0, len(r.ConversationHistory))
	}
	for i := range r.ConversationHistory {
		m, err := r.ConversationHistory[i].toModel(fmt.Sprintf("conversationHistory[%d]", i), received)
		if err != nil {
			return env, err
		}
		env.ConversationHistory = append(env.ConversationHistory, m)
	}

	if md := r.Metadata; md != nil {
		env.Metadata = models.Metadata{
			Channel:  models.Channel(md.Channel),
			Language: strings.TrimSpace(md.Language),
			Locale:   strings.TrimSpace(md.Locale),
		}
		if md.Channel != "" && !env.Metadata.Channel.Valid() {
			return env, invalid("metadata.channel", "unknown channel %q", md.Channel)
		}
	}
	return env, nil
}

func (m *messageRequest) toModel(field string, received time.Time) (models.Message, error) {
	sender := models.Sender(strings.ToLower(strings.TrimSpace(m.Sender)))
	if sender != models.SenderScammer && sender != models.SenderUser {
		return models.Message{}, invalid(field+".sender", "must be scammer or user, got %q", m.Sender)
	}
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return models.Message{}, invalid(field+".text", "is required")
	}
	if len(text) > maxTextLen {
		return models.Message{}, invalid(field+".text", "is longer than %d bytes", maxTextLen)
	}
	ts, err := parseTimestamp(m.Timestamp, received)
	if err != nil {
		return models.Message{}, invalid(field+".timestamp", "%v", err)
	}
	return models.Message{Sender: sender, Text: text, Timestamp: ts}, nil
}

// parseTimestamp accepts an RFC3339 string or epoch milliseconds, as a number or
// a digit string.
func parseTimestamp(raw json.RawMessage, fallback time.Time) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fallback, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return fallback, nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("want RFC3339 or epoch milliseconds, got %q", s)
		}
		return t.UTC(), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, fmt.Errorf("want RFC3339 or epoch milliseconds")
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return time.Time{}, fmt.Errorf("bad epoch milliseconds %s", n)
		}
		ms = int64(f)
	}
	return time.UnixMilli(ms).UTC(), nil
}
