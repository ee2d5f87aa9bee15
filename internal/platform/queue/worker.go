// Copyright (c) 2026 MangaTrack. All rights reserved.

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
)

/*
Handler processes a single dequeued job.

Returning nil completes the job. Returning a [PermanentError] parks it in
the failed set immediately. Any other error schedules a retry with
exponential backoff until the job's attempt budget is spent.
*/
type Handler func(ctx context.Context, job *Job) error

// FailureSink receives jobs that will never run again. The pool calls it
// exactly once per terminal failure, never for retries.
type FailureSink interface {
	RecordFailure(ctx context.Context, job *Job, errMsg string) error
}

type registration struct {
	queue       string
	concurrency int
	handler     Handler
}

/*
Pool polls registered queues and dispatches jobs to their handlers.

Each registration gets its own set of polling goroutines, so a slow queue
cannot starve the others. An additional goroutine samples backlog depth
for the queue gauges.
*/
type Pool struct {
	queue        Queue
	sink         FailureSink
	logger       *slog.Logger
	pollInterval time.Duration
	gaugePeriod  time.Duration
	regs         []registration
}

/*
NewPool builds an idle pool. Call Register for every queue, then Run.

Parameters:
  - backend: the queue implementation jobs are pulled from.
  - sink: destination for terminally failed jobs; may be nil.
  - logger: structured logger for job outcomes.
*/
func NewPool(backend Queue, sink FailureSink, logger *slog.Logger) *Pool {
	return &Pool{
		queue:        backend,
		sink:         sink,
		logger:       logger,
		pollInterval: time.Second,
		gaugePeriod:  15 * time.Second,
	}
}

// SetPollInterval overrides the idle polling interval. Tests shrink it.
func (pool *Pool) SetPollInterval(interval time.Duration) {
	pool.pollInterval = interval
}

// Register adds a queue to the pool. Must be called before Run.
func (pool *Pool) Register(queueName string, concurrency int, handler Handler) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool.regs = append(pool.regs, registration{
		queue:       queueName,
		concurrency: concurrency,
		handler:     handler,
	})
}

/*
Run blocks processing jobs until the context is canceled, then waits for
in-flight handlers to finish and returns the context error.
*/
func (pool *Pool) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, reg := range pool.regs {
		for i := 0; i < reg.concurrency; i++ {
			group.Go(func() error {
				return pool.runWorker(groupCtx, reg)
			})
		}
	}
	group.Go(func() error {
		return pool.runGauges(groupCtx)
	})

	pool.logger.Info("worker_pool_started", slog.Int("queues", len(pool.regs)))
	return group.Wait()
}

func (pool *Pool) runWorker(ctx context.Context, reg registration) error {
	for {
		job, err := pool.queue.Dequeue(ctx, reg.queue)
		if err != nil {
			pool.logger.Error("job_dequeue_failed",
				slog.String("queue", reg.queue),
				slog.Any("error", err))
			if !pool.sleep(ctx, pool.pollInterval) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !pool.sleep(ctx, pool.pollInterval) {
				return ctx.Err()
			}
			continue
		}
		pool.process(ctx, reg, job)
	}
}

// process runs the handler and settles the job. Settlement uses a
// non-cancelable context so a shutdown mid-job cannot strand it in the
// active set.
func (pool *Pool) process(ctx context.Context, reg registration, job *Job) {
	start := time.Now()
	handlerErr := pool.invoke(ctx, reg.handler, job)
	metrics.JobDuration.WithLabelValues(reg.queue).Observe(time.Since(start).Seconds())

	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if handlerErr == nil {
		if err := pool.queue.Complete(settleCtx, job.Queue, job.ID); err != nil {
			pool.logger.Error("job_complete_failed",
				slog.String("queue", job.Queue),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
		}
		metrics.JobsProcessed.WithLabelValues(reg.queue, "completed").Inc()
		return
	}

	terminal := false
	if IsPermanent(handlerErr) {
		if err := pool.queue.FailPermanent(settleCtx, job.Queue, job.ID, handlerErr.Error()); err != nil {
			pool.logger.Error("job_fail_write_failed",
				slog.String("queue", job.Queue),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
		}
		terminal = true
	} else {
		retryAt := RetryAt(time.Now(), job.Attempts)
		var err error
		terminal, err = pool.queue.Fail(settleCtx, job.Queue, job.ID, handlerErr.Error(), retryAt)
		if err != nil {
			pool.logger.Error("job_fail_write_failed",
				slog.String("queue", job.Queue),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
		}
	}

	if !terminal {
		metrics.JobsProcessed.WithLabelValues(reg.queue, "retried").Inc()
		pool.logger.Warn("job_retry_scheduled",
			slog.String("queue", job.Queue),
			slog.String("job_id", job.ID),
			slog.Int("attempt", job.Attempts),
			slog.Any("error", handlerErr))
		return
	}

	metrics.JobsProcessed.WithLabelValues(reg.queue, "failed").Inc()
	pool.logger.Error("job_failed_terminally",
		slog.String("queue", job.Queue),
		slog.String("job_id", job.ID),
		slog.Int("attempts", job.Attempts),
		slog.Any("error", handlerErr))
	if pool.sink != nil {
		if err := pool.sink.RecordFailure(settleCtx, job, handlerErr.Error()); err != nil {
			pool.logger.Error("job_failure_record_failed",
				slog.String("queue", job.Queue),
				slog.String("job_id", job.ID),
				slog.Any("error", err))
		}
	}
}

// invoke shields the pool from handler panics.
func (pool *Pool) invoke(ctx context.Context, handler Handler, job *Job) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return handler(ctx, job)
}

func (pool *Pool) runGauges(ctx context.Context) error {
	ticker := time.NewTicker(pool.gaugePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, reg := range pool.regs {
				counts, err := pool.queue.Counts(ctx, reg.queue)
				if err != nil {
					continue
				}
				metrics.QueueDepth.WithLabelValues(reg.queue, "waiting").Set(float64(counts.Waiting))
				metrics.QueueDepth.WithLabelValues(reg.queue, "delayed").Set(float64(counts.Delayed))
				metrics.QueueDepth.WithLabelValues(reg.queue, "active").Set(float64(counts.Active))
				metrics.QueueDepth.WithLabelValues(reg.queue, "failed").Set(float64(counts.Failed))
			}
		}
	}
}

// sleep waits for the interval or context cancellation, reporting whether
// the caller should keep polling.
func (pool *Pool) sleep(ctx context.Context, interval time.Duration) bool {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
