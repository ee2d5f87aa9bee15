// Copyright (c) 2026 MangaTrack. All rights reserved.

package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// defaultMaxKeys caps the fallback store. At ~100 bytes per entry this
// bounds worst-case memory near 1 MB.
const defaultMaxKeys = 10_000

// record is an immutable window snapshot. Every increment writes a fresh
// record instead of mutating the stored one; two goroutines racing on the
// same key therefore serialize on the store lock and each observe a
// consistent count, never a torn count++.
type record struct {
	count int
	reset time.Time
}

type memoryEntry struct {
	key string
	rec record
}

// MemoryLimiter is a bounded per-process fixed-window limiter with LRU
// eviction. It backs up the Redis limiter; it is not distributed.
type MemoryLimiter struct {
	mu      sync.Mutex
	maxKeys int
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

// NewMemoryLimiter builds a limiter tracking at most maxKeys keys.
// maxKeys <= 0 selects the default cap.
func NewMemoryLimiter(maxKeys int) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &MemoryLimiter{
		maxKeys: maxKeys,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Check implements [Checker]. It never returns an error.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var fresh record
	if elem, ok := m.entries[key]; ok {
		stored := elem.Value.(*memoryEntry).rec
		if now.Before(stored.reset) {
			fresh = record{count: stored.count + 1, reset: stored.reset}
		} else {
			fresh = record{count: 1, reset: now.Add(window)}
		}
		elem.Value.(*memoryEntry).rec = fresh
		m.order.MoveToFront(elem)
	} else {
		fresh = record{count: 1, reset: now.Add(window)}
		elem := m.order.PushFront(&memoryEntry{key: key, rec: fresh})
		m.entries[key] = elem
		m.evictOverflow()
	}

	remaining := limit - fresh.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   fresh.count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     fresh.reset,
	}, nil
}

// Count reports the stored counter for key; zero when untracked.
func (m *MemoryLimiter) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		return elem.Value.(*memoryEntry).rec.count
	}
	return 0
}

// Len reports how many keys are currently tracked.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictOverflow drops least-recently-used keys beyond the cap.
// Caller must hold mu.
func (m *MemoryLimiter) evictOverflow() {
	for len(m.entries) > m.maxKeys {
		oldest := m.order.Back()
		if oldest == nil {
			return
		}
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
}

// The fallback store is deliberately process-global: constructing a new
// Service (tests, handler re-registration, dev reload) must not reset
// counters that exist to bound abuse.
var (
	fallbackOnce sync.Once
	fallback     *MemoryLimiter
)

func sharedFallback() *MemoryLimiter {
	fallbackOnce.Do(func() {
		fallback = NewMemoryLimiter(defaultMaxKeys)
	})
	return fallback
}
