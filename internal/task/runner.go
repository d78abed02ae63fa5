package task

import (
	"context"
	"sync"

	"pdf-extract-service/internal/domain"
)

// RunnerConfig holds configuration options for the worker pool.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int
}

// Runner manages a pool of worker goroutines that process tasks from a queue.
// It handles graceful shutdown and worker lifecycle.
type Runner struct {
	queue       Reader
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      domain.Logger

	mu      sync.Mutex
	started bool
}

// NewRunner creates a new worker pool with the specified configuration.
func NewRunner(queue Reader, config RunnerConfig, logger domain.Logger) *Runner {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count, using default",
			"specified_count", config.WorkerCount, "default_count", 1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:       queue,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start launches the worker goroutines.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started", "workers", r.workerCount)
}

// Stop cancels all workers and waits for in-flight tasks to finish.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.logger.Info("task runner stopped")
}

// Running reports whether the pool has been started and not yet stopped.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && r.ctx.Err() == nil
}

// WorkerCount returns the configured pool size.
func (r *Runner) WorkerCount() int {
	return r.workerCount
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return
		case t, ok := <-r.queue.GetChannel():
			if !ok {
				r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
				return
			}

			r.logger.Info("processing task",
				"worker_id", id, "task_id", t.ID(), "task_type", t.Type())

			if err := t.Execute(r.ctx); err != nil {
				r.logger.Error("task execution failed", err,
					"worker_id", id, "task_id", t.ID(), "task_type", t.Type())
				continue
			}

			r.logger.Info("task finished",
				"worker_id", id, "task_id", t.ID(), "task_type", t.Type())
		}
	}
}
