package worker

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrDispatcherBusy    = errors.New("dispatcher queue full")
	ErrDispatcherStopped = errors.New("dispatcher stopped")
)

type DispatcherConfig struct {
	MinWorkers  int
	MaxWorkers  int
	QueueSize   int
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

type keyQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher runs background jobs on a bounded worker pool. Jobs are queued per
// key and keys are served in LRU order.
type Dispatcher struct {
	pool     *jobChannelPool
	jobQueue chan Job // entry point for outer jobs
	logger   *zap.Logger

	mu        sync.Mutex
	stopped   bool
	queues    map[string]*keyQueue // job queue for each key
	ready     *list.List           // LRU queue storing keys
	positions map[string]*list.Element
	quit      chan struct{}
	exited    chan struct{}
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	pool := newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.IdleTimeout, logger)

	d := &Dispatcher{
		pool:      pool,
		jobQueue:  make(chan Job, queueSize),
		logger:    logger,
		queues:    make(map[string]*keyQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		quit:      make(chan struct{}),
		exited:    make(chan struct{}),
	}

	for i := 0; i < pool.min; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit queues job without blocking.
func (d *Dispatcher) Submit(job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	d.pool.inflight.Add(1)
	select {
	case d.jobQueue <- job:
		return nil
	default:
		d.pool.inflight.Done()
		return ErrDispatcherBusy
	}
}

// Workers returns the number of live pool workers.
func (d *Dispatcher) Workers() int {
	return d.pool.size()
}

// Stop rejects new jobs and waits for accepted ones to finish. When ctx expires
// first, running jobs see their context cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		<-d.exited
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.pool.inflight.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
		d.pool.cancel()
	}

	close(d.quit)
	<-d.exited
	d.pool.shutdown()
	d.pool.cancel()
	return err
}

func (d *Dispatcher) run() {
	defer close(d.exited)
	for {
		// dispatch one job of the key in the front of LRU queue
		if !d.dispatchOne() {
			select {
			case job := <-d.jobQueue: // wait for work
				d.enqueueJob(job)
			case <-d.quit:
				return
			}
			continue
		}
		select {
		case job := <-d.jobQueue:
			d.enqueueJob(job)
		case <-d.quit:
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[job.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[job.Key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[job.Key] = d.ready.PushBack(job.Key)
}

// dispatchOne get first key in LRU and dispatch its job
func (d *Dispatcher) dispatchOne() bool {
	job, ok := d.nextJob()
	if !ok {
		return false
	}
	workerChan := d.pool.acquire()
	d.logger.Debug("dispatch job", zap.String("key", job.Key))
	workerChan <- job
	return true
}

// nextJob pops the head job of the least recently served key.
func (d *Dispatcher) nextJob() (Job, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	elem := d.ready.Front()
	if elem == nil {
		return Job{}, false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// last job of this key, it leaves the ready list
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	return job, true
}
