// Copyright (c) 2026 MangaTrack. All rights reserved.

package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/gatekeeper"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
)

// DueLister pages due sweep candidates out of the catalog.
type DueLister interface {
	ListDueSources(context context.Context, now time.Time, limit int) ([]series.DueSource, error)
}

// Admitter runs admission and enqueues allowed crawls.
type Admitter interface {
	EnqueueIfAllowed(context context.Context, sourceID string, tier series.Tier, reason gatekeeper.Reason, extra map[string]any) (bool, error)
}

// LeaderCheck reports whether this node currently holds the sweep lease.
type LeaderCheck interface {
	IsLeader() bool
}

// Sweeper is the periodic scheduler: on each tick the leader scans due
// sources and offers each to the gatekeeper with reason PERIODIC. Load
// shedding, tier priority and one-shot exclusion all happen inside
// admission; the sweeper itself has no policy.
type Sweeper struct {
	catalog  DueLister
	gate     Admitter
	leader   LeaderCheck
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewSweeper wires the periodic sweep. leader may be nil in single-node
// deployments, which behaves as always-leader.
func NewSweeper(catalog DueLister, gate Admitter, leader LeaderCheck, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		catalog:  catalog,
		gate:     gate,
		leader:   leader,
		logger:   logger,
		interval: constants.SweepInterval,
		batch:    constants.SweepBatchLimit,
	}
}

// SetInterval overrides the tick cadence. Tests use short intervals.
func (sweeper *Sweeper) SetInterval(interval time.Duration) {
	if interval > 0 {
		sweeper.interval = interval
	}
}

// Run ticks until the context is canceled. Errors inside a sweep are
// logged and do not stop the loop.
func (sweeper *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	sweeper.logger.Info("sweeper_started", slog.Duration("interval", sweeper.interval))
	for {
		select {
		case <-ctx.Done():
			sweeper.logger.Info("sweeper_stopped")
			return ctx.Err()
		case <-ticker.C:
			if sweeper.leader != nil && !sweeper.leader.IsLeader() {
				continue
			}
			if _, err := sweeper.SweepOnce(ctx, time.Now()); err != nil {
				sweeper.logger.Error("sweep_failed", slog.Any("error", err))
			}
		}
	}
}

/*
SweepOnce scans one batch of due sources and offers each to admission.

A failing row is logged and skipped; one poisoned source must not starve
the rest of the batch. Denials are not errors — under load the gatekeeper
is expected to shed most of a sweep.

Parameters:
  - ctx: caller context.
  - now: the due horizon, normally time.Now().

Returns:
  - int: how many sources were actually enqueued.
  - error: only when the catalog scan itself fails.
*/
func (sweeper *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	due, err := sweeper.catalog.ListDueSources(ctx, now, sweeper.batch)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	enqueued := 0
	for _, source := range due {
		allowed, err := sweeper.gate.EnqueueIfAllowed(ctx, source.SourceID, source.Tier, gatekeeper.ReasonPeriodic, nil)
		if err != nil {
			sweeper.logger.Warn("sweep_enqueue_failed",
				slog.String("source_id", source.SourceID),
				slog.Any("error", err))
			continue
		}
		if allowed {
			enqueued++
		}
	}

	sweeper.logger.Info("sweep_completed",
		slog.Int("due", len(due)),
		slog.Int("enqueued", enqueued))
	return enqueued, nil
}
