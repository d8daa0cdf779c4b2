// Package store persists honeypot sessions behind a single capability so the
// engine never knows which backend is active.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"honeypot/internal/models"
)

// ErrNotFound is returned by Load for an unseen session id.
var ErrNotFound = errors.New("session not found")

// SessionStore loads and saves sessions. Implementations must be safe for concurrent
// callers on different ids; callers serialize access to the same id.
type SessionStore interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Close() error
}

// Error reports a failed load or save. It is retryable from the caller's side.
type Error struct {
	Op        string
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opErr(op, id string, err error) error {
	return &Error{Op: op, SessionID: id, Err: err}
}

func encode(s *models.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decode(data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Intelligence == nil {
		s.Intelligence = models.NewIntelligence()
	}
	return &s, nil
}
