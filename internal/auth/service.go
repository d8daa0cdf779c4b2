package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
)

// APIKeyHeader carries the shared key on every protected request.
const APIKeyHeader = "x-api-key"

var (
	ErrMissingKey = errors.New("api key required")
	ErrInvalidKey = errors.New("invalid api key")
)

// Service checks the shared API key.
type Service struct {
	key        []byte
	headerName string
}

// NewService builds a new auth service for the given key.
func NewService(apiKey string) *Service {
	return &Service{key: []byte(strings.TrimSpace(apiKey)), headerName: APIKeyHeader}
}

// ValidateKey compares candidate with the configured key in constant time.
func (s *Service) ValidateKey(candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ErrMissingKey
	}
	if len(s.key) == 0 || subtle.ConstantTimeCompare([]byte(candidate), s.key) != 1 {
		return ErrInvalidKey
	}
	return nil
}
