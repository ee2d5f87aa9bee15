// Copyright (c) 2026 MangaTrack. All rights reserved.

package locks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
)

// Elector keeps one instance holding a named leadership lease.
//
// # Lifecycle
//
// Run blocks until ctx is cancelled. While leading it renews the lease at a
// third of the TTL; a failed or lost renewal steps down immediately so two
// leaders never overlap beyond the TTL window. Followers poll for the lease
// at the same cadence with exponential backoff on Redis errors.
type Elector struct {
	locker *Locker
	lease  string
	nodeID string
	ttl    time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	isLeader bool
	token    string
}

// NewElector builds an elector for the named lease.
// nodeID identifies this instance in logs (typically hostname+pid).
func NewElector(locker *Locker, lease, nodeID string, ttl time.Duration, logger *slog.Logger) *Elector {
	return &Elector{
		locker: locker,
		lease:  constants.RedisPrefixLeader + lease,
		nodeID: nodeID,
		ttl:    ttl,
		logger: logger,
	}
}

// IsLeader reports whether this instance currently holds the lease.
func (e *Elector) IsLeader() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isLeader
}

// Run drives the acquire/renew loop until ctx is cancelled.
func (e *Elector) Run(ctx context.Context) {
	interval := e.ttl / 3
	maxInterval := 4 * e.ttl
	wait := interval

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.stepDown(context.WithoutCancel(ctx), true)
			return
		case <-timer.C:
			err := e.tick(ctx)
			if err != nil {
				// Redis trouble: back off, and never lead blindly.
				wait *= 2
				if wait > maxInterval {
					wait = maxInterval
				}
				e.logger.WarnContext(ctx, "leader_election_error",
					slog.String("lease", e.lease),
					slog.String("error", err.Error()),
					slog.Duration("backoff", wait),
				)
			} else {
				wait = interval
			}
			timer.Reset(wait)
		}
	}
}

// tick performs one acquire-or-renew step.
func (e *Elector) tick(ctx context.Context) error {
	if e.IsLeader() {
		renewed, err := e.locker.Renew(ctx, e.lease, e.token, e.ttl)
		if err != nil {
			e.stepDown(ctx, false)
			return err
		}
		if !renewed {
			e.logger.InfoContext(ctx, "leadership_lost", slog.String("lease", e.lease))
			e.stepDown(ctx, false)
		}
		return nil
	}

	token, acquired, err := e.locker.Acquire(ctx, e.lease, e.ttl)
	if err != nil {
		return err
	}
	if acquired {
		e.mu.Lock()
		e.isLeader = true
		e.token = token
		e.mu.Unlock()
		metrics.LeaderStatus.WithLabelValues(e.lease).Set(1)
		e.logger.InfoContext(ctx, "leadership_acquired",
			slog.String("lease", e.lease),
			slog.String("node_id", e.nodeID),
		)
	}
	return nil
}

// stepDown clears leader state, optionally releasing the lease for a
// faster handover on clean shutdown.
func (e *Elector) stepDown(ctx context.Context, release bool) {
	e.mu.Lock()
	wasLeader := e.isLeader
	token := e.token
	e.isLeader = false
	e.token = ""
	e.mu.Unlock()

	if !wasLeader {
		return
	}
	metrics.LeaderStatus.WithLabelValues(e.lease).Set(0)
	if release {
		if err := e.locker.Release(ctx, e.lease, token); err != nil {
			e.logger.WarnContext(ctx, "leadership_release_failed",
				slog.String("lease", e.lease),
				slog.String("error", err.Error()),
			)
		}
	}
}
