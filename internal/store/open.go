package store

import (
	"context"
	"fmt"

	"honeypot/internal/config"
	"honeypot/internal/redis"
	"honeypot/internal/storage"

	"go.uber.org/zap"
)

// Backend names the active implementation, for logging and the lease decision.
type Backend string

const (
	BackendRedis  Backend = "redis"
	BackendSQL    Backend = "sql"
	BackendMemory Backend = "memory"
)

// Opened is the store selected at startup together with any redis client it owns.
type Opened struct {
	Store   SessionStore
	Backend Backend
	Redis   *redis.Client
}

// Open selects the backend once. When the durable backend is unreachable and
// fallback is allowed, the memory backend is returned instead.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Opened, error) {
	backend := Backend(cfg.Store.Backend)
	opened, err := openDurable(ctx, backend, cfg)
	if err == nil {
		logger.Info("session store ready", zap.String("backend", string(opened.Backend)))
		return opened, nil
	}
	if cfg.Store.DisableFallback {
		return nil, err
	}
	logger.Warn("durable session store unavailable, using memory",
		zap.String("backend", string(backend)), zap.Error(err))
	return &Opened{Store: NewMemoryStore(), Backend: BackendMemory}, nil
}

func openDurable(ctx context.Context, backend Backend, cfg *config.Config) (*Opened, error) {
	switch backend {
	case BackendMemory:
		return &Opened{Store: NewMemoryStore(), Backend: BackendMemory}, nil
	case BackendRedis:
		client, err := redis.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return &Opened{Store: NewRedisStore(client, cfg.SessionTTL()), Backend: BackendRedis, Redis: client}, nil
	case BackendSQL:
		driver := storage.Normalize(cfg.Store.Driver)
		db, err := storage.Open(ctx, driver, cfg)
		if err != nil {
			return nil, fmt.Errorf("open sql store: %w", err)
		}
		if err := storage.Migrate(ctx, db, driver); err != nil {
			db.Close()
			return nil, err
		}
		return &Opened{Store: NewSQLStore(db, driver), Backend: BackendSQL}, nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}
