package store

import (
	"context"
	"errors"
	"time"

	"honeypot/internal/models"
	"honeypot/internal/redis"
)

const sessionKeyPrefix = "honeypot:session:"

// DefaultTTL is how long a session survives in redis after its last save.
const DefaultTTL = 24 * time.Hour

// RedisStore persists each session as one JSON value with a rolling TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisStore) Load(ctx context.Context, id string) (*models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(id))
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, opErr("load", id, err)
	}
	s, err := decode(raw)
	if err != nil {
		return nil, opErr("load", id, err)
	}
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *models.Session) error {
	if s == nil || s.ID == "" {
		return opErr("save", "", errors.New("session id required"))
	}
	raw, err := encode(s)
	if err != nil {
		return opErr("save", s.ID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ID), raw, r.ttl); err != nil {
		return opErr("save", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
