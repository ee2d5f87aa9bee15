// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package ratelimit implements the key-scoped fixed-window rate limiter.

The primary path counts in Redis with INCR + TTL so all instances share one
window. When Redis is unreachable the check degrades to a bounded in-memory
fallback rather than failing the request; the fallback store is process-global
so counters survive handler re-registration.

Architecture:

  - Service: orchestrates primary vs. fallback and records metrics.
  - RedisLimiter: the shared INCR+TTL window.
  - MemoryLimiter: bounded LRU fallback with race-free fresh-record writes.
*/
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ctxutil"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
)

// Result is the verdict of a single rate-limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Limit is the window capacity the check was performed against.
	Limit int
	// Remaining is how many requests are left in the current window.
	Remaining int
	// Reset is when the current window expires.
	Reset time.Time
}

// RetryAfterSeconds converts the reset instant into a Retry-After hint,
// rounded up so clients never retry early.
func (r Result) RetryAfterSeconds(now time.Time) int {
	secs := int(r.Reset.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Checker is the limiter contract shared by the Redis and memory backends.
type Checker interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// Service checks the shared Redis window first and falls back to the
// process-global memory store when Redis is unavailable.
type Service struct {
	primary  Checker
	fallback Checker
}

// NewService wires a limiter service. A nil primary skips straight to the
// fallback (used by tests and single-node deploys without Redis).
func NewService(primary Checker) *Service {
	return &Service{primary: primary, fallback: sharedFallback()}
}

// Check runs the verdict for key against limit per window.
//
// Errors from the primary backend are absorbed: the caller always gets a
// usable verdict, because refusing all traffic when Redis blips would be a
// worse failure than briefly rate-limiting per-instance.
func (s *Service) Check(ctx context.Context, key string, limit int, window time.Duration) Result {
	if s.primary != nil {
		result, err := s.primary.Check(ctx, key, limit, window)
		if err == nil {
			metrics.RateLimitChecks.WithLabelValues("redis", boolLabel(result.Allowed)).Inc()
			return result
		}
		ctxutil.GetLogger(ctx).WarnContext(ctx, "ratelimit_primary_unavailable",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	result, _ := s.fallback.Check(ctx, key, limit, window)
	metrics.RateLimitChecks.WithLabelValues("memory", boolLabel(result.Allowed)).Inc()
	return result
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Stats is an operator snapshot of the limiter stores.
type Stats struct {
	// PrimaryConfigured reports whether a shared Redis window is wired in.
	PrimaryConfigured bool `json:"primaryConfigured"`
	// FallbackKeys is how many keys the in-memory store currently tracks.
	FallbackKeys int `json:"fallbackKeys"`
	// FallbackCapacity is the in-memory store's key cap.
	FallbackCapacity int `json:"fallbackCapacity"`
}

// Snapshot reports the current state of both stores.
func (s *Service) Snapshot() Stats {
	stats := Stats{PrimaryConfigured: s.primary != nil}
	if mem, ok := s.fallback.(*MemoryLimiter); ok {
		stats.FallbackKeys = mem.Len()
		stats.FallbackCapacity = mem.maxKeys
	}
	return stats
}
