// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package queue implements the durable job queues that connect the API,
the crawl scheduler, and the background workers.

Jobs carry compact JSON payloads and content-derived ids: enqueueing an id
that is already waiting, delayed, or active coalesces into the existing job
instead of creating a duplicate. That single property serializes all work
per series-source and per coalesce-window without any extra locking.

Job lifecycle:

	waiting → active → completed
	                 → failed → (retry → delayed → waiting)
	                          → terminal (kept for inspection)

Completed jobs are removed immediately; terminal failures are kept until
the retention sweep prunes them.
*/
package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// JobState is the observable lifecycle position of a job id.
type JobState string

const (
	// StateNone means the id is unknown: never enqueued, or already completed.
	StateNone JobState = "none"
	// StateWaiting means the job is queued for immediate execution.
	StateWaiting JobState = "waiting"
	// StateDelayed means the job is scheduled for a future run.
	StateDelayed JobState = "delayed"
	// StateActive means a worker is executing the job right now.
	StateActive JobState = "active"
	// StateFailed means the job exhausted its attempts and is kept for inspection.
	StateFailed JobState = "failed"
)

// Default retry policy shared by all queues unless overridden per job.
const (
	DefaultMaxAttempts = 5
	// retryBackoffBase is the first retry delay; it doubles per attempt.
	retryBackoffBase = 2 * time.Second
	// retryBackoffCap bounds the exponential growth.
	retryBackoffCap = 5 * time.Minute
)

// Job is one unit of queued work.
type Job struct {
	// ID is content-derived (e.g. "sync-{sourceID}") for idempotency.
	ID string
	// Queue names the logical queue the job belongs to.
	Queue string
	// Payload is a compact JSON document.
	Payload []byte
	// Priority orders execution; lower runs first. See [Priority] values
	// in the crawl gatekeeper.
	Priority int
	// Attempts counts executions so far, including the current one.
	Attempts int
	// MaxAttempts bounds retries; at this count a failure is terminal.
	MaxAttempts int
	// RunAt schedules delayed execution. Zero means immediately.
	RunAt time.Time
}

// Counts is a point-in-time census of one queue.
type Counts struct {
	Waiting int `json:"waiting"`
	Delayed int `json:"delayed"`
	Active  int `json:"active"`
	Failed  int `json:"failed"`
}

// Backlog is the admission-relevant depth: jobs that are queued but not
// yet picked up.
func (c Counts) Backlog() int {
	return c.Waiting + c.Delayed
}

// Queue is the storage contract shared by the Redis and in-memory backends.
type Queue interface {
	// Enqueue adds job if no live job with the same id exists.
	// It reports false when the job coalesced into an existing one.
	Enqueue(ctx context.Context, job *Job) (bool, error)

	// Dequeue promotes due delayed jobs, then pops the highest-priority
	// waiting job and marks it active. It returns nil when the queue is idle.
	Dequeue(ctx context.Context, queue string) (*Job, error)

	// Complete acknowledges a finished job and removes all trace of it.
	Complete(ctx context.Context, queue, id string) error

	// Fail records a failed execution. Below the attempt cap the job is
	// rescheduled at retryAt; at the cap it becomes terminal and the
	// method reports true.
	Fail(ctx context.Context, queue, id, errMsg string, retryAt time.Time) (terminal bool, err error)

	// FailPermanent parks the job terminally regardless of remaining attempts.
	FailPermanent(ctx context.Context, queue, id, errMsg string) error

	// Counts reports the queue census.
	Counts(ctx context.Context, queue string) (Counts, error)

	// State reports the lifecycle position of a job id.
	State(ctx context.Context, queue, id string) (JobState, error)

	// Remove deletes a job in any state. Removing an unknown id is a no-op.
	Remove(ctx context.Context, queue, id string) error

	// PruneFailed drops terminal failures older than the cutoff and
	// reports how many were removed.
	PruneFailed(ctx context.Context, queue string, olderThan time.Time) (int, error)
}

// RetryAt computes the next run time for a failed attempt: exponential
// backoff with a full-jitter term, capped.
func RetryAt(now time.Time, attempt int) time.Time {
	backoff := retryBackoffBase << (attempt - 1)
	if backoff > retryBackoffCap || backoff <= 0 {
		backoff = retryBackoffCap
	}
	return now.Add(backoff + rand.N(backoff/2))
}

// PermanentError marks a handler failure that must not be retried:
// the job goes terminal regardless of remaining attempts.
type PermanentError struct {
	Err error
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string { return fmt.Sprintf("permanent: %v", e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err (or its chain) is a [PermanentError].
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
