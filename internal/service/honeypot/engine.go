// Package honeypot runs the per-turn engagement pipeline: load, score, extract,
// decide, reply, report, save.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"honeypot/internal/callback"
	"honeypot/internal/engagement"
	"honeypot/internal/logging"
	"honeypot/internal/models"
	"honeypot/internal/scoring"
	"honeypot/internal/service/reply"
	"honeypot/internal/store"
	"honeypot/internal/worker"
)

const (
	defaultReplyTimeout = 8 * time.Second
	writeBackTimeout    = 5 * time.Second
)

var ErrCallbackInFlight = errors.New("callback delivery already in flight")

// Scorer assesses a full history.
type Scorer interface {
	Score(history []models.Message) models.Assessment
}

// Extractor pulls normalized intelligence out of one message text.
type Extractor interface {
	Extract(text string) models.Intelligence
}

// CallbackSender delivers the completion report of one session.
type CallbackSender interface {
	Send(ctx context.Context, s *models.Session) (callback.Result, error)
}

// Locker runs fn inside the critical section of key.
type Locker interface {
	Do(ctx context.Context, key string, fn func(context.Context) error) error
}

// Submitter queues background work without blocking.
type Submitter interface {
	Submit(job worker.Job) error
}

type Options struct {
	Store        store.SessionStore
	Scorer       Scorer
	Extractor    Extractor
	Policy       engagement.Policy
	Replies      reply.Generator
	Callbacks    CallbackSender
	Locks        Locker
	Jobs         Submitter
	ReplyTimeout time.Duration
	Logger       *zap.Logger
	Now          func() time.Time
}

// Engine coordinates one turn per inbound message. Turns for the same session
// never overlap.
type Engine struct {
	store        store.SessionStore
	scorer       Scorer
	extractor    Extractor
	policy       engagement.Policy
	replies      reply.Generator
	callbacks    CallbackSender
	locks        Locker
	jobs         Submitter
	replyTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("session store required")
	case opts.Scorer == nil:
		return nil, errors.New("scorer required")
	case opts.Extractor == nil:
		return nil, errors.New("extractor required")
	case opts.Callbacks == nil:
		return nil, errors.New("callback sender required")
	case opts.Locks == nil:
		return nil, errors.New("session locks required")
	case opts.Jobs == nil:
		return nil, errors.New("job submitter required")
	}
	replies := opts.Replies
	if replies == nil {
		replies = reply.Canned{}
	}
	timeout := opts.ReplyTimeout
	if timeout <= 0 {
		timeout = defaultReplyTimeout
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:        opts.Store,
		scorer:       opts.Scorer,
		extractor:    opts.Extractor,
		policy:       opts.Policy,
		replies:      replies,
		callbacks:    opts.Callbacks,
		locks:        opts.Locks,
		jobs:         opts.Jobs,
		replyTimeout: timeout,
		logger:       logging.OrNop(opts.Logger),
		now:          now,
		inflight:     make(map[string]struct{}),
	}, nil
}

// Handle processes one inbound message. Only store failures are returned; every
// other failure is recovered inside the turn.
func (e *Engine) Handle(ctx context.Context, env models.Envelope) (*models.Response, error) {
	if env.SessionID == "" {
		return nil, errors.New("session id required")
	}
	var resp *models.Response
	err := e.locks.Do(ctx, env.SessionID, func(ctx context.Context) error {
		r, err := e.turn(ctx, env)
		resp = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Engine) turn(ctx context.Context, env models.Envelope) (*models.Response, error) {
	logger := e.logger.With(zap.String("session_id", env.SessionID))
	now := e.now()

	s, err := e.loadOrCreate(ctx, env.SessionID, now)
	if err != nil {
		return nil, err
	}
	mergeMetadata(s, env.Metadata)

	fresh := s.Absorb(env.ConversationHistory)
	if !s.Contains(env.Message) {
		s.Append(env.Message)
		fresh = append(fresh, env.Message)
	}

	completed := false
	if s.Active() {
		s.Assessment = e.scorer.Score(s.History)
		intel := models.NewIntelligence()
		for _, m := range fresh {
			if m.Inbound() {
				intel.Merge(e.extractor.Extract(m.Text))
			}
		}
		intel.Add(models.IntelKeyword, scoring.Keywords(s.Assessment.Signals)...)
		if added := s.MergeIntelligence(intel); added > 0 {
			logger.Debug("intelligence merged", zap.Int("added", added))
		}
		var decision engagement.Decision
		decision, completed = e.policy.Apply(s, now)
		if completed {
			logger.Info("engagement complete",
				zap.String("reason", decision.Reason),
				zap.Float64("confidence", s.Assessment.Confidence),
				zap.Int("messages", len(s.History)))
		}
	} else {
		logger.Debug("late message on completed session", zap.Int("appended", len(fresh)))
	}

	// the assessment and intel survive whatever happens to the reply
	s.AgentNotes = agentNotes(s, "")
	s.UpdatedAt = now
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}

	var next string
	if s.Active() && s.Assessment.ScamDetected {
		next = e.generateReply(ctx, s, logger)
		if next != "" {
			s.Append(models.Message{Sender: models.SenderAgent, Text: next, Timestamp: e.now()})
			s.LastReply = next
		}
	}

	if completed {
		if err := e.submitCallback(s.ID); err != nil {
			logger.Warn("callback not queued", zap.Error(err))
			s.RecordDeliveryFailure(0, err)
		}
	}

	s.AgentNotes = agentNotes(s, next)
	s.UpdatedAt = e.now()
	if err := e.save(ctx, s); err != nil {
		return nil, err
	}
	return response(s, next), nil
}

func (e *Engine) generateReply(ctx context.Context, s *models.Session, logger *zap.Logger) string {
	ctx, cancel := context.WithTimeout(ctx, e.replyTimeout)
	defer cancel()

	text, err := e.replies.Next(ctx, s.History, s.Intelligence)
	if err != nil {
		logger.Warn("reply generation failed, continuing without reply", zap.Error(err))
		return ""
	}
	return text
}

// RedriveCallback re-queues delivery for a completed session whose report never
// went through.
func (e *Engine) RedriveCallback(ctx context.Context, id string) error {
	err := e.locks.Do(ctx, id, func(ctx context.Context) error {
		s, err := e.store.Load(ctx, id)
		if err != nil {
			return err
		}
		return s.CanDeliver()
	})
	if err != nil {
		return err
	}
	return e.submitCallback(id)
}

// Get returns the stored session.
func (e *Engine) Get(ctx context.Context, id string) (*models.Session, error) {
	return e.store.Load(ctx, id)
}

func (e *Engine) submitCallback(id string) error {
	e.mu.Lock()
	if _, ok := e.inflight[id]; ok {
		e.mu.Unlock()
		return ErrCallbackInFlight
	}
	e.inflight[id] = struct{}{}
	e.mu.Unlock()

	err := e.jobs.Submit(worker.Job{Key: id, Run: func(ctx context.Context) {
		defer e.clearInflight(id)
		e.deliver(ctx, id)
	}})
	if err != nil {
		e.clearInflight(id)
		return fmt.Errorf("queue callback: %w", err)
	}
	return nil
}

func (e *Engine) clearInflight(id string) {
	e.mu.Lock()
	delete(e.inflight, id)
	e.mu.Unlock()
}

// deliver sends the report outside the session's critical section and records the
// outcome inside it.
func (e *Engine) deliver(ctx context.Context, id string) {
	logger := e.logger.With(zap.String("session_id", id))

	var snapshot *models.Session
	err := e.locks.Do(ctx, id, func(ctx context.Context) error {
		s, err := e.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if err := s.CanDeliver(); err != nil {
			return err
		}
		snapshot = s
		return nil
	})
	if err != nil {
		logger.Warn("callback skipped", zap.Error(err))
		return
	}

	result, sendErr := e.callbacks.Send(ctx, snapshot)

	// record the outcome even when shutdown cancelled the send
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeBackTimeout)
	defer cancel()
	err = e.locks.Do(wctx, id, func(ctx context.Context) error {
		s, err := e.store.Load(ctx, id)
		if err != nil {
			return err
		}
		if sendErr != nil {
			attempts := 0
			var cbErr *callback.Error
			if errors.As(sendErr, &cbErr) {
				attempts = cbErr.Attempts
			}
			s.RecordDeliveryFailure(attempts, sendErr)
			if callback.Permanent(sendErr) {
				logger.Error("callback rejected by sink", zap.Int("attempts", attempts), zap.Error(sendErr))
			} else {
				logger.Warn("callback delivery failed", zap.Int("attempts", attempts), zap.Error(sendErr))
			}
		} else if err := s.MarkDelivered(result.Attempts, e.now()); err != nil {
			return err
		}
		s.UpdatedAt = e.now()
		return e.save(ctx, s)
	})
	if err != nil {
		logger.Error("record callback outcome failed", zap.Error(err), zap.NamedError("send_error", sendErr))
	}
}

func (e *Engine) loadOrCreate(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	s, err := e.store.Load(ctx, id)
	switch {
	case err == nil:
		return s, nil
	case errors.Is(err, store.ErrNotFound):
		return models.NewSession(id, now), nil
	default:
		return nil, asStoreError("load", id, err)
	}
}

func (e *Engine) save(ctx context.Context, s *models.Session) error {
	if err := e.store.Save(ctx, s); err != nil {
		return asStoreError("save", s.ID, err)
	}
	return nil
}

func asStoreError(op, id string, err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return &store.Error{Op: op, SessionID: id, Err: err}
}

func mergeMetadata(s *models.Session, md models.Metadata) {
	if md.Channel != "" {
		s.Metadata.Channel = md.Channel
	}
	if md.Language != "" {
		s.Metadata.Language = md.Language
	}
	if md.Locale != "" {
		s.Metadata.Locale = md.Locale
	}
}

func response(s *models.Session, next string) *models.Response {
	return &models.Response{
		Status:                "success",
		ScamDetected:          s.Assessment.ScamDetected,
		EngagementMetrics:     s.Metrics(),
		ExtractedIntelligence: s.Intelligence.Wire(),
		AgentNotes:            s.AgentNotes,
		Reply:                 next,
		EngagementComplete:    !s.Active(),
	}
}
