// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
)

// # Levels

func TestLevel(t *testing.T) {
	tests := []struct {
		xp   int64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{899, 3},
		{900, 4},
		{-50, 1},
		{progress.MaxXP, progress.Level(progress.MaxXP)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progress.Level(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevel_MonotoneNonDecreasing(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 100_000; xp += 37 {
		level := progress.Level(xp)
		require.GreaterOrEqual(t, level, prev, "xp=%d", xp)
		prev = level
	}
}

func TestClampXP(t *testing.T) {
	assert.Equal(t, int64(0), progress.ClampXP(-1))
	assert.Equal(t, int64(12345), progress.ClampXP(12345))
	assert.Equal(t, int64(progress.MaxXP), progress.ClampXP(progress.MaxXP+10))
}

// # Streaks

func TestStreakBonus(t *testing.T) {
	assert.Equal(t, 0, progress.StreakBonus(0))
	assert.Equal(t, 5, progress.StreakBonus(1))
	assert.Equal(t, 50, progress.StreakBonus(10))
	assert.Equal(t, 50, progress.StreakBonus(365))
}

func TestNextStreak(t *testing.T) {
	now := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)

	t.Run("first read ever", func(t *testing.T) {
		assert.Equal(t, 1, progress.NextStreak(nil, now, 0))
	})
	t.Run("second read same day", func(t *testing.T) {
		prev := now.Add(-2 * time.Hour)
		assert.Equal(t, 4, progress.NextStreak(&prev, now, 4))
	})
	t.Run("read on the following day extends", func(t *testing.T) {
		prev := now.Add(-24 * time.Hour)
		assert.Equal(t, 5, progress.NextStreak(&prev, now, 4))
	})
	t.Run("a missed day restarts", func(t *testing.T) {
		prev := now.Add(-49 * time.Hour)
		assert.Equal(t, 1, progress.NextStreak(&prev, now, 12))
	})
}

// # Seasons

func TestSeasonFor(t *testing.T) {
	assert.Equal(t, "2026-Q1", progress.SeasonFor(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q1", progress.SeasonFor(time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q2", progress.SeasonFor(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q3", progress.SeasonFor(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-Q4", progress.SeasonFor(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
}

// # Migration Bonus

func TestMigrationBonus(t *testing.T) {
	tests := []struct {
		chapters int
		want     int
	}{
		{0, 0},
		{1, 50},
		{199, 50},
		{200, 50},
		{1000, 250},
		{2001, 500},
		{10_000, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progress.MigrationBonus(tt.chapters), "chapters=%d", tt.chapters)
	}
}

// # Trust

func TestSuspiciousRead(t *testing.T) {
	t.Run("floor applies without page data", func(t *testing.T) {
		assert.True(t, progress.SuspiciousRead(29*time.Second, 0))
		assert.False(t, progress.SuspiciousRead(30*time.Second, 0))
	})
	t.Run("threshold scales with pages", func(t *testing.T) {
		assert.True(t, progress.SuspiciousRead(59*time.Second, 20))
		assert.False(t, progress.SuspiciousRead(61*time.Second, 20))
	})
	t.Run("short chapters keep the floor", func(t *testing.T) {
		assert.True(t, progress.SuspiciousRead(15*time.Second, 2))
	})
}

func TestClampTrust(t *testing.T) {
	assert.Equal(t, 0.5, progress.ClampTrust(0.3))
	assert.Equal(t, 1.0, progress.ClampTrust(1.2))
	assert.Equal(t, 0.77, progress.ClampTrust(0.77))
}

func TestEffectiveXP(t *testing.T) {
	assert.Equal(t, int64(800), progress.EffectiveXP(1000, 0.8))
	assert.Equal(t, int64(1000), progress.EffectiveXP(1000, 2.0))
	assert.Equal(t, int64(500), progress.EffectiveXP(1000, 0.1))
}

func metronomicStamps(base time.Time, interval time.Duration, count int) []time.Time {
	stamps := make([]time.Time, count)
	for i := range stamps {
		stamps[i] = base.Add(-time.Duration(i) * interval)
	}
	return stamps
}

func TestIntervalStdev(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("identical intervals have zero spread", func(t *testing.T) {
		stdev, ok := progress.IntervalStdev(metronomicStamps(base, 10*time.Second, 6))
		require.True(t, ok)
		assert.Equal(t, time.Duration(0), stdev)
	})
	t.Run("too few stamps is no signal", func(t *testing.T) {
		_, ok := progress.IntervalStdev(metronomicStamps(base, 10*time.Second, 5))
		assert.False(t, ok)
	})
	t.Run("varied intervals spread wide", func(t *testing.T) {
		stamps := []time.Time{
			base,
			base.Add(-10 * time.Second),
			base.Add(-70 * time.Second),
			base.Add(-3 * time.Minute),
			base.Add(-10 * time.Minute),
			base.Add(-30 * time.Minute),
		}
		stdev, ok := progress.IntervalStdev(stamps)
		require.True(t, ok)
		assert.Greater(t, stdev, 2*time.Second)
	})
}

func TestMetronomicPattern(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	assert.True(t, progress.MetronomicPattern(metronomicStamps(base, 5*time.Second, 6)))
	assert.False(t, progress.MetronomicPattern(metronomicStamps(base, 5*time.Second, 4)))
	assert.False(t, progress.MetronomicPattern([]time.Time{
		base, base.Add(-time.Minute), base.Add(-5 * time.Minute),
		base.Add(-20 * time.Minute), base.Add(-time.Hour), base.Add(-2 * time.Hour),
	}))
}

// # Achievements

func TestEligibleAchievements(t *testing.T) {
	eligible := progress.EligibleAchievements(progress.Snapshot{ChaptersRead: 1, Level: 1, StreakDays: 1})
	ids := make([]string, 0, len(eligible))
	for _, a := range eligible {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "first-chapter")
	assert.NotContains(t, ids, "chapters-100")
	assert.NotContains(t, ids, "first-completion")

	eligible = progress.EligibleAchievements(progress.Snapshot{
		ChaptersRead: 150, Level: 11, StreakDays: 8, SeasonXP: 600, SeriesCompleted: true,
	})
	ids = ids[:0]
	for _, a := range eligible {
		ids = append(ids, a.ID)
	}
	assert.Contains(t, ids, "chapters-100")
	assert.Contains(t, ids, "streak-7")
	assert.Contains(t, ids, "level-10")
	assert.Contains(t, ids, "season-500")
	assert.Contains(t, ids, "first-completion")
	assert.NotContains(t, ids, "chapters-1000")
}
