// Copyright (c) 2026 MangaTrack. All rights reserved.

package maintenance_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/maintenance"
)

type fixedLeader struct{ leading bool }

func (leader *fixedLeader) IsLeader() bool { return leader.leading }

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

/*
TestRunDue_CadencePerDuty verifies each duty keeps its own schedule: a
daily duty runs once and then sits out the hourly ticks until its cadence
elapses, while an hourly duty runs on every due tick.
*/
func TestRunDue_CadencePerDuty(t *testing.T) {
	janitor := maintenance.New(nil, testLogger())

	var hourly, daily int
	janitor.Add("hourly", time.Hour, func(context.Context) error {
		hourly++
		return nil
	})
	janitor.Add("daily", 24*time.Hour, func(context.Context) error {
		daily++
		return nil
	})

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// First pass: nothing has ever run, so everything is due.
	assert.Equal(t, 2, janitor.RunDue(context.Background(), base))

	// One hour later only the hourly duty is due again.
	assert.Equal(t, 1, janitor.RunDue(context.Background(), base.Add(time.Hour)))

	// Next day both come due.
	assert.Equal(t, 2, janitor.RunDue(context.Background(), base.Add(24*time.Hour)))

	assert.Equal(t, 3, hourly)
	assert.Equal(t, 2, daily)
}

/*
TestRunDue_FailedDutyRetriesNextTick checks that a failing duty does not
consume its cadence: it stays due until a run succeeds, then waits out the
normal interval.
*/
func TestRunDue_FailedDutyRetriesNextTick(t *testing.T) {
	janitor := maintenance.New(nil, testLogger())

	calls := 0
	janitor.Add("flaky", 24*time.Hour, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("postgres unavailable")
		}
		return nil
	})

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, janitor.RunDue(context.Background(), base))
	assert.Equal(t, 1, janitor.RunDue(context.Background(), base.Add(time.Hour)))

	// Success consumed the cadence; the next hourly tick skips it.
	assert.Equal(t, 0, janitor.RunDue(context.Background(), base.Add(2*time.Hour)))
	assert.Equal(t, 2, calls)
}

// TestRunDue_OtherDutiesSurviveFailure pins the isolation rule: one broken
// duty must not stop the rest of the pass.
func TestRunDue_OtherDutiesSurviveFailure(t *testing.T) {
	janitor := maintenance.New(nil, testLogger())

	ran := false
	janitor.Add("broken", time.Hour, func(context.Context) error {
		return errors.New("boom")
	})
	janitor.Add("healthy", time.Hour, func(context.Context) error {
		ran = true
		return nil
	})

	completed := janitor.RunDue(context.Background(), time.Now())
	assert.Equal(t, 1, completed)
	assert.True(t, ran)
}

/*
TestRun_FollowerSkipsDuties drives the loop with a follower lease and a
short tick, then flips leadership and expects the schedule to start.
*/
func TestRun_FollowerSkipsDuties(t *testing.T) {
	leader := &fixedLeader{leading: false}
	janitor := maintenance.New(leader, testLogger())
	janitor.SetTick(5 * time.Millisecond)

	executed := make(chan struct{}, 1)
	janitor.Add("duty", time.Hour, func(context.Context) error {
		select {
		case executed <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- janitor.Run(ctx) }()

	// Follower: several ticks pass with no execution.
	select {
	case <-executed:
		t.Fatal("duty ran without leadership")
	case <-time.After(40 * time.Millisecond):
	}

	leader.leading = true
	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("duty did not run after acquiring leadership")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
