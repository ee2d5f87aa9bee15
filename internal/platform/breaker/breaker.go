// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package breaker holds the process-global circuit breaker that guards the
credential verification dependency.

The breaker is deliberately a singleton with lazy initialization: its whole
purpose is remembering consecutive failures across requests, so per-request
construction (or reconstruction on handler re-registration) would erase the
state it exists to keep. It is never torn down in normal operation and is
observable through the ops stats endpoint.
*/
package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
)

const (
	// consecutiveFailureTrip opens the breaker after this many failures in a row.
	consecutiveFailureTrip = 5
	// openTimeout is how long the breaker stays open before probing half-open.
	openTimeout = 30 * time.Second
	// halfOpenProbes is how many requests may pass while half-open.
	halfOpenProbes = 3
)

var (
	authOnce sync.Once
	auth     *gobreaker.CircuitBreaker
)

// Auth returns the global breaker for the auth dependency, creating it on
// first use.
func Auth() *gobreaker.CircuitBreaker {
	authOnce.Do(func() {
		auth = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "auth-dependency",
			MaxRequests: halfOpenProbes,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailureTrip
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				metrics.BreakerState.Set(stateValue(to))
				slog.Default().Warn("circuit_breaker_transition",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	})
	return auth
}

// Execute runs fn through the auth breaker. A rejected call (breaker open
// or half-open saturated) surfaces as 503 so callers degrade uniformly.
func Execute(fn func() error) error {
	_, err := Auth().Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.ServiceUnavailable("Authentication temporarily unavailable")
	}
	return err
}

// Stats is the observable breaker state for the ops endpoint.
type Stats struct {
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
}

// AuthStats snapshots the auth breaker for diagnostics.
func AuthStats() Stats {
	cb := Auth()
	counts := cb.Counts()
	return Stats{
		State:                cb.State().String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
