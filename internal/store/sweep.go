package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultSweepInterval = 10 * time.Minute

// Sweeper is implemented by backends without native expiry. Redis sessions
// expire through their key TTL and need no sweeping.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) (int, error)
}

// StartSweeper removes sessions idle for longer than ttl every interval until
// ctx is done.
func StartSweeper(ctx context.Context, s Sweeper, ttl, interval time.Duration, logger *zap.Logger) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go sweepLoop(ctx, s, ttl, interval, logger)
}

func sweepLoop(ctx context.Context, s Sweeper, ttl, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Sweep(ctx, now.UTC().Add(-ttl))
			if err != nil {
				logger.Warn("sweep expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("swept expired sessions", zap.Int("count", n))
			}
		}
	}
}
