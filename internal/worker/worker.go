package worker

import (
	"context"

	"go.uber.org/zap"
)

// Job is one unit of background work. Jobs sharing a Key are handed out round-robin
// against other keys so one busy session cannot starve the rest.
type Job struct {
	Key string
	Run func(ctx context.Context)

	stop bool
}

type Worker struct {
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(pool *jobChannelPool) *Worker {
	return &Worker{
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			w.pool.Release(w.jobChannel)
			job := <-w.jobChannel
			if job.stop {
				w.pool.retire(w.jobChannel)
				return
			}
			w.run(job)
		}
	}()
}

func (w *Worker) run(job Job) {
	defer w.pool.done()
	defer func() {
		if r := recover(); r != nil {
			w.pool.logger.Error("background job panicked", zap.String("key", job.Key), zap.Any("panic", r))
		}
	}()
	if job.Run != nil {
		job.Run(w.pool.ctx)
	}
}
