package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"honeypot/internal/redis"
)

const (
	leaseKeyPrefix     = "honeypot:lease:"
	defaultLeaseTTL    = 30 * time.Second
	defaultLeaseRetry  = 25 * time.Millisecond
	leaseReleaseBudget = 2 * time.Second
)

// RedisLease serializes a key across processes sharing one redis. The lease
// expires on its own if the holder dies.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
	logger *zap.Logger
}

func NewRedisLease(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLease{client: client, ttl: ttl, retry: defaultLeaseRetry, logger: logger}
}

// Acquire polls until the lease is held or ctx is done.
func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	leaseKey := leaseKeyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.Acquire(ctx, leaseKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lease %s: %w", key, err)
		}
		if ok {
			return func() { l.release(leaseKey, token) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lease %s: %w", key, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLease) release(leaseKey, token string) {
	// the turn ctx may already be cancelled; release on a short budget of its own
	ctx, cancel := context.WithTimeout(context.Background(), leaseReleaseBudget)
	defer cancel()
	released, err := l.client.Release(ctx, leaseKey, token)
	if err != nil {
		l.logger.Warn("release lease failed", zap.String("key", leaseKey), zap.Error(err))
		return
	}
	if !released {
		l.logger.Warn("lease expired before release", zap.String("key", leaseKey))
	}
}
