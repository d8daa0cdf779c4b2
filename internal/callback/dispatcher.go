// Package callback reports completed engagements to the downstream sink.
package callback

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"honeypot/internal/logging"
	"honeypot/internal/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	APIKeyHeader    = "x-api-key"
	SignatureHeader = "X-Honeypot-Signature"

	DefaultMaxAttempts = 3
)

// Config controls delivery.
type Config struct {
	URL            string
	Secret         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Result describes a confirmed delivery.
type Result struct {
	Attempts   int
	StatusCode int
}

// Error is returned once the attempts are exhausted or the sink rejected the report.
type Error struct {
	Attempts   int
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("callback failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher posts signed completion reports with bounded exponential backoff.
type Dispatcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg Config, client *http.Client, logger *zap.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{cfg: cfg, client: client, logger: logging.OrNop(logger)}
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(secret, signature string, body []byte) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Send delivers the report for a COMPLETE, undelivered session. It never mutates s;
// the caller records the outcome.
func (d *Dispatcher) Send(ctx context.Context, s *models.Session) (Result, error) {
	if err := s.CanDeliver(); err != nil {
		return Result{}, err
	}
	body, err := json.Marshal(BuildPayload(s))
	if err != nil {
		return Result{}, &Error{Err: fmt.Errorf("encode payload: %w", err)}
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.cfg.InitialBackoff
	exp.MaxInterval = d.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(d.cfg.MaxAttempts-1)), ctx)

	var (
		attempts int
		status   int
	)
	op := func() error {
		attempts++
		code, err := d.post(ctx, body)
		status = code
		if err != nil {
			return err
		}
		switch {
		case code >= 200 && code < 300:
			return nil
		case code == http.StatusTooManyRequests || code >= 500:
			return fmt.Errorf("HTTP %d", code)
		default:
			return backoff.Permanent(fmt.Errorf("HTTP %d", code))
		}
	}
	notify := func(err error, wait time.Duration) {
		d.logger.Warn("callback attempt failed",
			zap.String("session_id", s.ID),
			zap.Int("attempt", attempts),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		d.logger.Error("callback delivery failed",
			zap.String("session_id", s.ID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return Result{}, &Error{Attempts: attempts, StatusCode: status, Err: err}
	}
	d.logger.Info("callback delivered",
		zap.String("session_id", s.ID),
		zap.Int("attempts", attempts),
		zap.Int("status", status))
	return Result{Attempts: attempts, StatusCode: status}, nil
}

func (d *Dispatcher) post(ctx context.Context, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if d.cfg.Secret != "" {
		req.Header.Set(APIKeyHeader, d.cfg.Secret)
		req.Header.Set(SignatureHeader, Sign(d.cfg.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return resp.StatusCode, nil
}

// Permanent reports whether err is a failure that retrying cannot fix.
func Permanent(err error) bool {
	var cbErr *Error
	if !errors.As(err, &cbErr) {
		return errors.Is(err, models.ErrAlreadyDelivered) || errors.Is(err, models.ErrNotComplete)
	}
	return cbErr.StatusCode >= 400 && cbErr.StatusCode < 500 && cbErr.StatusCode != http.StatusTooManyRequests
}
