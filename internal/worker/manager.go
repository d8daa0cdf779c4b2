package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	queueLen           = 16
	defaultSessionIdle = time.Minute
)

var ErrStopped = errors.New("worker manager stopped")

// Lease guards a key across processes. The returned release func must be called
// once the task is done.
type Lease interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type ManagerOptions struct {
	IdleTimeout time.Duration
	Lease       Lease
	Logger      *zap.Logger
}

type sessionTask struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

type sessionWorker struct {
	taskCh  chan sessionTask
	pending int // guarded by Manager.mu
}

// Manager runs tasks one at a time per key. Each active key owns a goroutine that
// drains its queue in arrival order; different keys run in parallel.
type Manager struct {
	mu      sync.Mutex
	workers map[string]*sessionWorker
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	idle   time.Duration
	lease  Lease
	logger *zap.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultSessionIdle
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		workers: make(map[string]*sessionWorker),
		stopCh:  make(chan struct{}),
		idle:    idle,
		lease:   opts.Lease,
		logger:  logger,
	}
}

// Do runs fn inside key's critical section and returns its error. It blocks until
// fn finished or ctx is done; a task whose ctx expired before it started is skipped.
func (m *Manager) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	w, err := m.ensureWorker(key)
	if err != nil {
		return err
	}

	t := sessionTask{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case w.taskCh <- t:
	case <-ctx.Done():
		m.finish(w)
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of keys that currently own a goroutine.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Stop rejects new tasks and waits for queued ones to finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.stopped {
		m.stopped = true
		close(m.stopCh)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) ensureWorker(key string) (*sessionWorker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, ErrStopped
	}
	w, ok := m.workers[key]
	if !ok {
		w = &sessionWorker{taskCh: make(chan sessionTask, queueLen)}
		m.workers[key] = w
		m.wg.Add(1)
		go m.runWorker(key, w)
	}
	// counted before the send so the worker cannot retire under us
	w.pending++
	return w, nil
}

func (m *Manager) finish(w *sessionWorker) {
	m.mu.Lock()
	w.pending--
	m.mu.Unlock()
}

// retireIfIdle removes the worker when nothing is queued for it.
func (m *Manager) retireIfIdle(key string, w *sessionWorker) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.pending > 0 {
		return false
	}
	delete(m.workers, key)
	return true
}

func (m *Manager) runWorker(key string, w *sessionWorker) {
	defer m.wg.Done()

	timer := time.NewTimer(m.idle)
	defer timer.Stop()
	stopCh := m.stopCh

	for {
		select {
		case t := <-w.taskCh:
			m.execute(key, t)
			m.finish(w)
			if stopCh == nil && m.retireIfIdle(key, w) {
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.idle)
		case <-timer.C:
			if m.retireIfIdle(key, w) {
				m.logger.Debug("session worker retired", zap.String("session_id", key))
				return
			}
			timer.Reset(m.idle)
		case <-stopCh:
			// keep draining what was already accepted
			stopCh = nil
			if m.retireIfIdle(key, w) {
				return
			}
		}
	}
}

func (m *Manager) execute(key string, t sessionTask) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session task panicked", zap.String("session_id", key), zap.Any("panic", r))
			err = fmt.Errorf("session task panicked: %v", r)
		}
		t.done <- err
	}()

	if err = t.ctx.Err(); err != nil {
		return
	}
	if m.lease != nil {
		release, lerr := m.lease.Acquire(t.ctx, key)
		if lerr != nil {
			err = lerr
			return
		}
		defer release()
	}
	err = t.fn(t.ctx)
}
