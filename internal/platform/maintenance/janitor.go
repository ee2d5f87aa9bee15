// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package maintenance runs the worker's leader-gated housekeeping: retention
sweeps, trust decay, counter reconciliation. Duties are registered as named
closures with their own cadence; the janitor ticks on a short interval and
runs whichever duties have come due, so an hourly tick can host daily work.
*/
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
)

// LeaderCheck reports whether this node currently holds the lease. A nil
// check behaves as always-leader for single-node deployments.
type LeaderCheck interface {
	IsLeader() bool
}

// Duty is one named housekeeping task.
type Duty struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Janitor owns the registered duties and their last-run times. Not safe
// for concurrent use; registration happens before Run and the loop is the
// only writer afterwards.
type Janitor struct {
	leader  LeaderCheck
	logger  *slog.Logger
	tick    time.Duration
	duties  []Duty
	lastRun map[string]time.Time
}

// New builds an idle janitor. Call Add for every duty, then Run.
func New(leader LeaderCheck, logger *slog.Logger) *Janitor {
	return &Janitor{
		leader:  leader,
		logger:  logger,
		tick:    constants.MaintenanceInterval,
		lastRun: make(map[string]time.Time),
	}
}

// SetTick overrides the loop cadence. Tests use short ticks.
func (janitor *Janitor) SetTick(tick time.Duration) {
	if tick > 0 {
		janitor.tick = tick
	}
}

// Add registers a duty. Must be called before Run.
func (janitor *Janitor) Add(name string, every time.Duration, run func(ctx context.Context) error) {
	janitor.duties = append(janitor.duties, Duty{Name: name, Every: every, Run: run})
}

// Run ticks until the context is canceled, then returns the context error.
// Only the leader executes duties; followers keep ticking so a lease
// takeover picks up the schedule immediately.
func (janitor *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(janitor.tick)
	defer ticker.Stop()

	janitor.logger.Info("janitor_started",
		slog.Int("duties", len(janitor.duties)),
		slog.Duration("tick", janitor.tick))
	for {
		select {
		case <-ctx.Done():
			janitor.logger.Info("janitor_stopped")
			return ctx.Err()
		case <-ticker.C:
			if janitor.leader != nil && !janitor.leader.IsLeader() {
				continue
			}
			janitor.RunDue(ctx, time.Now())
		}
	}
}

/*
RunDue executes every duty whose cadence has elapsed at now.

A failing duty keeps its old last-run time, so it retries on the next tick
instead of waiting out its full cadence. Duties that have never run are
due immediately.

Returns how many duties completed.
*/
func (janitor *Janitor) RunDue(ctx context.Context, now time.Time) int {
	completed := 0
	for _, duty := range janitor.duties {
		last, seen := janitor.lastRun[duty.Name]
		if seen && now.Sub(last) < duty.Every {
			continue
		}

		start := time.Now()
		if err := duty.Run(ctx); err != nil {
			janitor.logger.Error("maintenance_duty_failed",
				slog.String("duty", duty.Name),
				slog.Any("error", err))
			continue
		}
		janitor.lastRun[duty.Name] = now
		completed++
		janitor.logger.Info("maintenance_duty_completed",
			slog.String("duty", duty.Name),
			slog.Duration("elapsed", time.Since(start)))
	}
	return completed
}
