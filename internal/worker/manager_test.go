package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerSerializesSameKey(t *testing.T) {
	m := NewManager(ManagerOptions{IdleTimeout: time.Second})
	defer m.Stop(context.Background())

	var (
		mu      sync.Mutex
		order   []int
		running int32
		overlap int32
	)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := m.Do(context.Background(), "s-1", func(context.Context) error {
				if atomic.AddInt32(&running, 1) > 1 {
					atomic.StoreInt32(&overlap, 1)
				}
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, order, 10)
	assert.Zero(t, atomic.LoadInt32(&overlap), "tasks for one key overlapped")
}

func TestManagerPreservesArrivalOrder(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Stop(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), "s-1", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = m.Do(context.Background(), "s-1", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}(i)
		// queue them one by one so arrival order is known
		require.Eventually(t, func() bool {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.workers["s-1"].pending == i+2
		}, time.Second, time.Millisecond)
	}
	close(release)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestManagerRunsKeysInParallel(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Stop(context.Background())

	block := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), "slow", func(context.Context) error {
			<-block
			return nil
		})
	}()

	done := make(chan error, 1)
	go func() {
		done <- m.Do(context.Background(), "fast", func(context.Context) error { return nil })
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("independent key blocked behind a slow one")
	}
	close(block)
}

func TestManagerReturnsTaskErrorAndRecoversPanics(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Stop(context.Background())

	boom := errors.New("boom")
	err := m.Do(context.Background(), "s-1", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = m.Do(context.Background(), "s-1", func(context.Context) error { panic("bad") })
	assert.ErrorContains(t, err, "panicked")

	// the key keeps working after a panic
	assert.NoError(t, m.Do(context.Background(), "s-1", func(context.Context) error { return nil }))
}

func TestManagerRetiresIdleWorkers(t *testing.T) {
	m := NewManager(ManagerOptions{IdleTimeout: 20 * time.Millisecond})
	defer m.Stop(context.Background())

	require.NoError(t, m.Do(context.Background(), "s-1", func(context.Context) error { return nil }))
	require.NoError(t, m.Do(context.Background(), "s-2", func(context.Context) error { return nil }))
	assert.Eventually(t, func() bool { return m.Active() == 0 }, time.Second, 5*time.Millisecond)

	// a retired key comes back on demand
	require.NoError(t, m.Do(context.Background(), "s-1", func(context.Context) error { return nil }))
}

func TestManagerSkipsExpiredTasks(t *testing.T) {
	m := NewManager(ManagerOptions{})
	defer m.Stop(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := m.Do(ctx, "s-1", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

type fakeLease struct {
	mu       sync.Mutex
	acquired []string
	released int
	err      error
}

func (l *fakeLease) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired = append(l.acquired, key)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

func TestManagerHoldsLeaseAroundTask(t *testing.T) {
	lease := &fakeLease{}
	m := NewManager(ManagerOptions{Lease: lease})
	defer m.Stop(context.Background())

	require.NoError(t, m.Do(context.Background(), "s-1", func(context.Context) error {
		lease.mu.Lock()
		defer lease.mu.Unlock()
		assert.Equal(t, 0, lease.released)
		return nil
	}))
	assert.Equal(t, []string{"s-1"}, lease.acquired)
	assert.Equal(t, 1, lease.released)

	lease.err = errors.New("redis down")
	ran := false
	err := m.Do(context.Background(), "s-1", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
	assert.False(t, ran)
}

func TestManagerStopDrainsAndRejects(t *testing.T) {
	m := NewManager(ManagerOptions{})

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(context.Background(), "s-1", func(context.Context) error {
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&count, 1)
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, m.Stop(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
	assert.Zero(t, m.Active())
	assert.ErrorIs(t, m.Do(context.Background(), "s-1", func(context.Context) error { return nil }), ErrStopped)
}
