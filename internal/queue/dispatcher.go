// Package queue runs pipeline tasks on a bounded worker pool with retry,
// exponential backoff and a dead-letter hook. Task state transitions are
// persisted so the task log survives a restart and status(file) can report
// what the pipeline last did.
package queue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/filedex/internal/domain"
	"github.com/kailas-cloud/filedex/internal/metrics"
)

// Handler executes one task attempt.
type Handler func(ctx context.Context, task *domain.Task) error

// DeadLetter is invoked exactly once when a task exhausts its retry budget or
// fails with a non-retryable error.
type DeadLetter func(ctx context.Context, task *domain.Task, err error)

// Store persists task state transitions.
type Store interface {
	SaveTask(ctx context.Context, task *domain.Task) error
}

// Config holds worker pool and retry policy settings.
type Config struct {
	Workers     int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Dispatcher schedules tasks onto a shared worker pool. Retries of transient
// failures re-enter the pool after a backoff delay; fatal failures go
// straight to the dead-letter hook.
type Dispatcher struct {
	pool   *ants.Pool
	store  Store
	cfg    Config
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer // pending retry timers by task ID
	closed bool
}

// NewDispatcher creates a dispatcher with its own worker pool.
func NewDispatcher(cfg Config, store Store, logger *zap.Logger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		pool:   pool,
		store:  store,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[string]*time.Timer),
	}, nil
}

// Submit persists the task as pending and schedules its first attempt.
// Execution happens on the worker pool, detached from the caller's context.
func (d *Dispatcher) Submit(ctx context.Context, task *domain.Task, h Handler, dead DeadLetter) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is shut down")
	}
	d.mu.Unlock()

	task.Status = domain.TaskPending
	task.ScheduledAt = time.Now().UnixMilli()
	if err := d.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persist task %s: %w", task.ID, err)
	}

	metrics.PipelineQueueDepth.Inc()
	d.enqueue(task, h, dead)
	return nil
}

func (d *Dispatcher) enqueue(task *domain.Task, h Handler, dead DeadLetter) {
	d.wg.Add(1)
	if err := d.pool.Submit(func() {
		defer d.wg.Done()
		d.run(task, h, dead)
	}); err != nil {
		d.wg.Done()
		metrics.PipelineQueueDepth.Dec()
		d.logger.Error("worker pool rejected task",
			zap.String("task_id", task.ID), zap.Error(err))
		d.finish(task, domain.TaskFailed, fmt.Errorf("worker pool: %w", err), dead)
	}
}

func (d *Dispatcher) run(task *domain.Task, h Handler, dead DeadLetter) {
	ctx := d.ctx

	task.Status = domain.TaskRunning
	task.StartedAt = time.Now().UnixMilli()
	task.Attempts++
	if err := d.store.SaveTask(ctx, task); err != nil {
		d.logger.Warn("persist running task failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}

	start := time.Now()
	err := h(ctx, task)
	metrics.PipelineStageDuration.WithLabelValues(string(task.Stage)).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.PipelineQueueDepth.Dec()
		metrics.PipelineTasksTotal.WithLabelValues(string(task.Stage), "succeeded").Inc()
		d.finish(task, domain.TaskSucceeded, nil, nil)
		return
	}

	kind := domain.Classify(err)
	task.LastError = err.Error()

	if kind.IsTransient() && task.Attempts < d.cfg.MaxAttempts {
		metrics.PipelineTasksTotal.WithLabelValues(string(task.Stage), "retried").Inc()
		d.scheduleRetry(task, h, dead, err)
		return
	}

	metrics.PipelineQueueDepth.Dec()
	metrics.PipelineTasksTotal.WithLabelValues(string(task.Stage), "failed").Inc()
	d.logger.Error("task dead-lettered",
		zap.String("task_id", task.ID),
		zap.String("file_id", task.FileID),
		zap.String("stage", string(task.Stage)),
		zap.Int("attempts", task.Attempts),
		zap.String("error_kind", string(kind)),
		zap.Error(err))
	d.finish(task, domain.TaskFailed, err, dead)
}

func (d *Dispatcher) scheduleRetry(task *domain.Task, h Handler, dead DeadLetter, cause error) {
	delay := d.backoff(task.Attempts)

	task.Status = domain.TaskRetrying
	task.ScheduledAt = time.Now().Add(delay).UnixMilli()
	if err := d.store.SaveTask(d.ctx, task); err != nil {
		d.logger.Warn("persist retrying task failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}

	d.logger.Warn("task retry scheduled",
		zap.String("task_id", task.ID),
		zap.String("stage", string(task.Stage)),
		zap.Int("attempt", task.Attempts),
		zap.Duration("delay", delay),
		zap.Error(cause))

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.PipelineQueueDepth.Dec()
		d.finish(task, domain.TaskFailed, cause, dead)
		return
	}
	d.timers[task.ID] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, task.ID)
		closed := d.closed
		d.mu.Unlock()
		if closed {
			metrics.PipelineQueueDepth.Dec()
			return
		}
		d.enqueue(task, h, dead)
	})
	d.mu.Unlock()
}

// backoff returns base * 2^(attempt-1) capped at max, with ±20% jitter so
// retries of a burst do not land on the provider at the same instant.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.BackoffMax {
			delay = d.cfg.BackoffMax
			break
		}
	}
	if delay > d.cfg.BackoffMax {
		delay = d.cfg.BackoffMax
	}

	jitter := 1 + (rand.Float64()*0.4 - 0.2) //nolint:gosec // jitter needs no crypto rand
	return time.Duration(float64(delay) * jitter)
}

func (d *Dispatcher) finish(task *domain.Task, status domain.TaskStatus, cause error, dead DeadLetter) {
	task.Status = status
	task.FinishedAt = time.Now().UnixMilli()
	if err := d.store.SaveTask(d.ctx, task); err != nil {
		d.logger.Warn("persist finished task failed",
			zap.String("task_id", task.ID), zap.Error(err))
	}
	if status == domain.TaskFailed && dead != nil {
		dead(d.ctx, task, cause)
	}
}

// Running reports the number of tasks currently executing on the pool.
func (d *Dispatcher) Running() int {
	return d.pool.Running()
}

// Close stops accepting work, cancels pending retries and waits for running
// tasks to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for id, timer := range d.timers {
		timer.Stop()
		delete(d.timers, id)
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.pool.Release()
}
