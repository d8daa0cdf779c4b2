package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"honeypot/internal/api"
	"honeypot/internal/auth"
	"honeypot/internal/callback"
	"honeypot/internal/config"
	"honeypot/internal/engagement"
	"honeypot/internal/extract"
	"honeypot/internal/logging"
	"honeypot/internal/scoring"
	"honeypot/internal/service/honeypot"
	"honeypot/internal/service/reply"
	"honeypot/internal/store"
	"honeypot/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("HONEYPOT_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opened, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer opened.Store.Close()
	if sweeper, ok := opened.Store.(store.Sweeper); ok {
		store.StartSweeper(ctx, sweeper, cfg.SessionTTL(), store.DefaultSweepInterval, logger.Named("sweeper"))
	}

	lexicon := scoring.DefaultLexicon()
	if path := cfg.Scoring.LexiconPath; path != "" {
		if lexicon, err = scoring.LoadLexicon(path); err != nil {
			return fmt.Errorf("load lexicon: %w", err)
		}
	}
	extractor := extract.New(extract.Options{
		CountryCode:    cfg.Extraction.CountryCode,
		NationalLength: cfg.Extraction.NationalLength,
		LeadingDigits:  cfg.Extraction.LeadingDigits,
		UPIHandles:     cfg.Extraction.UPIHandles,
		Shorteners:     lexicon.Shorteners,
		Logger:         logger.Named("extract"),
	})
	scorer := scoring.New(lexicon, extractor, cfg.Engagement.ScamThreshold)

	replies, err := reply.New(ctx, cfg, logger.Named("reply"))
	if err != nil {
		return fmt.Errorf("init reply generator: %w", err)
	}

	callbacks := callback.New(callback.Config{
		URL:            cfg.Callback.URL,
		Secret:         cfg.Callback.Secret,
		Timeout:        cfg.Callback.Timeout(),
		MaxAttempts:    cfg.Callback.MaxAttempts,
		InitialBackoff: cfg.Callback.InitialBackoff(),
		MaxBackoff:     cfg.Callback.MaxBackoff(),
	}, &http.Client{}, logger.Named("callback"))

	var lease worker.Lease
	if cfg.Redis.Lease && opened.Redis != nil {
		lease = worker.NewRedisLease(opened.Redis, time.Duration(cfg.BasicConfig.TurnTimeout)*time.Second, logger.Named("lease"))
	}
	locks := worker.NewManager(worker.ManagerOptions{
		IdleTimeout: time.Duration(cfg.BasicConfig.SessionIdleTimeout) * time.Second,
		Lease:       lease,
		Logger:      logger.Named("sessions"),
	})
	jobs := worker.NewDispatcher(worker.DispatcherConfig{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Second,
		Logger:      logger.Named("jobs"),
	})

	engine, err := honeypot.New(honeypot.Options{
		Store:     opened.Store,
		Scorer:    scorer,
		Extractor: extractor,
		Policy: engagement.Policy{
			Threshold:   cfg.Engagement.ScamThreshold,
			MinMessages: cfg.Engagement.MinMessages,
			MaxDuration: time.Duration(cfg.Engagement.MaxDurationSeconds) * time.Second,
		},
		Replies:      replies,
		Callbacks:    callbacks,
		Locks:        locks,
		Jobs:         jobs,
		ReplyTimeout: cfg.Reply.Timeout(),
		Logger:       logger.Named("engine"),
	})
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	if cfg.BasicConfig.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(engine, auth.NewService(cfg.BasicConfig.APIKey), logger.Named("http"),
		time.Duration(cfg.BasicConfig.TurnTimeout)*time.Second)
	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", string(opened.Backend)))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// HTTP first, then pending callbacks, then the session workers they use.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := jobs.Stop(shutdownCtx); err != nil {
		logger.Warn("callback jobs not drained", zap.Error(err))
	}
	if err := locks.Stop(shutdownCtx); err != nil {
		logger.Warn("session workers not drained", zap.Error(err))
	}
	return nil
}
