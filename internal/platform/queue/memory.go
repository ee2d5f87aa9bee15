// Copyright (c) 2026 MangaTrack. All rights reserved.

package queue

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process [Queue] with the same semantics as the
// Redis backend. It backs tests and single-node development runs.
type MemoryQueue struct {
	mu     sync.Mutex
	queues map[string]*memQueue
	now    func() time.Time
}

type memQueue struct {
	waiting waitingHeap
	delayed map[string]*memJob
	active  map[string]*memJob
	failed  map[string]*memJob
	seq     int64
}

type memJob struct {
	job       Job
	score     int64 // priority band + FIFO sequence
	runAt     time.Time
	failedAt  time.Time
	lastError string
	index     int // heap bookkeeping
}

// NewMemoryQueue builds an empty in-process queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		queues: make(map[string]*memQueue),
		now:    time.Now,
	}
}

// SetClock overrides the time source. Tests use it to promote delayed jobs
// without sleeping.
func (m *MemoryQueue) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryQueue) get(queue string) *memQueue {
	q, ok := m.queues[queue]
	if !ok {
		q = &memQueue{
			delayed: make(map[string]*memJob),
			active:  make(map[string]*memJob),
			failed:  make(map[string]*memJob),
		}
		m.queues[queue] = q
	}
	return q
}

// Enqueue implements [Queue].
func (m *MemoryQueue) Enqueue(_ context.Context, job *Job) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(job.Queue)
	id := job.ID

	// Live duplicates coalesce.
	if _, ok := q.delayed[id]; ok {
		return false, nil
	}
	if _, ok := q.active[id]; ok {
		return false, nil
	}
	for _, pending := range q.waiting {
		if pending.job.ID == id {
			return false, nil
		}
	}
	// Terminal leftovers are replaced.
	delete(q.failed, id)

	stored := *job
	if stored.MaxAttempts <= 0 {
		stored.MaxAttempts = DefaultMaxAttempts
	}
	stored.Attempts = 0

	entry := &memJob{job: stored}
	now := m.now()
	if !stored.RunAt.IsZero() && stored.RunAt.After(now) {
		entry.runAt = stored.RunAt
		q.delayed[id] = entry
		return true, nil
	}
	m.pushWaiting(q, entry)
	return true, nil
}

// Dequeue implements [Queue].
func (m *MemoryQueue) Dequeue(_ context.Context, queue string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	now := m.now()

	// Promote due delayed jobs.
	for id, entry := range q.delayed {
		if !entry.runAt.After(now) {
			delete(q.delayed, id)
			m.pushWaiting(q, entry)
		}
	}

	if q.waiting.Len() == 0 {
		return nil, nil
	}
	entry := heap.Pop(&q.waiting).(*memJob)
	entry.job.Attempts++
	q.active[entry.job.ID] = entry

	result := entry.job
	return &result, nil
}

// Complete implements [Queue].
func (m *MemoryQueue) Complete(_ context.Context, queue, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.get(queue).active, id)
	return nil
}

// Fail implements [Queue].
func (m *MemoryQueue) Fail(_ context.Context, queue, id, errMsg string, retryAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	entry, ok := q.active[id]
	if !ok {
		return false, nil
	}
	delete(q.active, id)
	entry.lastError = errMsg

	if entry.job.Attempts >= entry.job.MaxAttempts {
		entry.failedAt = m.now()
		q.failed[id] = entry
		return true, nil
	}
	entry.runAt = retryAt
	q.delayed[id] = entry
	return false, nil
}

// FailPermanent parks the job terminally regardless of remaining attempts.
func (m *MemoryQueue) FailPermanent(_ context.Context, queue, id, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	entry, ok := q.active[id]
	if !ok {
		return nil
	}
	delete(q.active, id)
	entry.lastError = errMsg
	entry.failedAt = m.now()
	q.failed[id] = entry
	return nil
}

// Counts implements [Queue].
func (m *MemoryQueue) Counts(_ context.Context, queue string) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.get(queue)
	return Counts{
		Waiting: q.waiting.Len(),
		Delayed: len(q.delayed),
		Active:  len(q.active),
		Failed:  len(q.failed),
	}, nil
}

// State implements [Queue].
func (m *MemoryQueue) State(_ context.Context, queue, id string) (JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	if _, ok := q.active[id]; ok {
		return StateActive, nil
	}
	for _, pending := range q.waiting {
		if pending.job.ID == id {
			return StateWaiting, nil
		}
	}
	if _, ok := q.delayed[id]; ok {
		return StateDelayed, nil
	}
	if _, ok := q.failed[id]; ok {
		return StateFailed, nil
	}
	return StateNone, nil
}

// Remove implements [Queue].
func (m *MemoryQueue) Remove(_ context.Context, queue, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	delete(q.active, id)
	delete(q.delayed, id)
	delete(q.failed, id)
	for i, pending := range q.waiting {
		if pending.job.ID == id {
			heap.Remove(&q.waiting, i)
			break
		}
	}
	return nil
}

// PruneFailed implements [Queue].
func (m *MemoryQueue) PruneFailed(_ context.Context, queue string, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	pruned := 0
	for id, entry := range q.failed {
		if entry.failedAt.Before(olderThan) {
			delete(q.failed, id)
			pruned++
		}
	}
	return pruned, nil
}

// LastError reports the stored failure message for a job, for tests and
// inspection tooling.
func (m *MemoryQueue) LastError(queue, id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := m.get(queue)
	if entry, ok := q.failed[id]; ok {
		return entry.lastError
	}
	if entry, ok := q.delayed[id]; ok {
		return entry.lastError
	}
	return ""
}

// pushWaiting assigns the priority-band score and heap-pushes.
// Caller must hold mu.
func (m *MemoryQueue) pushWaiting(q *memQueue, entry *memJob) {
	q.seq++
	entry.score = int64(entry.job.Priority)*1_000_000_000 + q.seq
	heap.Push(&q.waiting, entry)
}

// # Priority heap

// waitingHeap orders jobs by ascending score: priority band first, FIFO
// within the band.
type waitingHeap []*memJob

func (h waitingHeap) Len() int           { return len(h) }
func (h waitingHeap) Less(i, j int) bool { return h[i].score < h[j].score }
func (h waitingHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }

func (h *waitingHeap) Push(x any) {
	entry := x.(*memJob)
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *waitingHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}
