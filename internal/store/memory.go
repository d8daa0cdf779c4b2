package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"honeypot/internal/models"
)

// MemoryStore keeps encoded snapshots in process memory. Callers never share
// mutable state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	raw     []byte
	updated time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	entry, ok := m.data[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s, err := decode(entry.raw)
	if err != nil {
		return nil, opErr("load", id, err)
	}
	return s, nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.Session) error {
	if s == nil || s.ID == "" {
		return opErr("save", "", errors.New("session id required"))
	}
	raw, err := encode(s)
	if err != nil {
		return opErr("save", s.ID, err)
	}
	m.mu.Lock()
	m.data[s.ID] = memoryEntry{raw: raw, updated: s.UpdatedAt}
	m.mu.Unlock()
	return nil
}

// Sweep drops sessions last updated before cutoff.
func (m *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, entry := range m.data {
		if entry.updated.Before(cutoff) {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
