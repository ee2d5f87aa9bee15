// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package progress is the read-state engine: chapter progression, XP,
levels, seasons, streaks and the soft anti-abuse trust score.

Marking chapter N reads every chapter 1..N of the series in one
statement, but XP is granted at most once per call — a 500-chapter
binge is one read event, not five hundred. All counter math runs inside
a single transaction that locks the library entry and the user row, so
concurrent devices serialize instead of double-granting.

Trust violations attenuate the leaderboard, never the reads themselves:
a suspicious read still counts, still grants XP, and only lowers the
multiplier applied to effective XP.
*/
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
)

// # XP Constants

const (
	// XPPerChapter is the flat grant per qualifying progress call,
	// deliberately independent of how many chapters the call marked.
	XPPerChapter = 1

	// XPSeriesCompleted is the one-time bonus for finishing a completed
	// series.
	XPSeriesCompleted = 100

	// MaxXP caps lifetime XP.
	MaxXP = 999_999_999
)

// XP transaction sources.
const (
	XPSourceChapterRead     = "chapter_read"
	XPSourceSeriesCompleted = "series_completed"
	XPSourceMigrationBonus  = "migration_bonus"
	XPSourceAchievement     = "achievement"
)

// Level maps lifetime XP onto a level: L1 covers [0,100), L2 [100,400),
// L3 [400,900) and so on. XP outside [0, MaxXP] is clamped first.
func Level(xp int64) int {
	return int(math.Sqrt(float64(ClampXP(xp))/100)) + 1
}

// ClampXP bounds xp into [0, MaxXP].
func ClampXP(xp int64) int64 {
	if xp < 0 {
		return 0
	}
	if xp > MaxXP {
		return MaxXP
	}
	return xp
}

// StreakBonus is the extra XP for an unbroken daily reading streak,
// capped at 50.
func StreakBonus(streakDays int) int {
	return min(5*streakDays, 50)
}

// NextStreak advances the daily streak: a read on the day after the
// previous one extends it, a read on the same day keeps it, anything
// else restarts at one. Days are compared in UTC.
func NextStreak(lastReadAt *time.Time, now time.Time, current int) int {
	if lastReadAt == nil {
		return 1
	}
	prev := lastReadAt.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch today.Sub(prev) {
	case 0:
		return max(current, 1)
	case 24 * time.Hour:
		return current + 1
	default:
		return 1
	}
}

// SeasonFor formats the quarter string for t, e.g. "2026-Q3".
func SeasonFor(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%d-Q%d", u.Year(), (int(u.Month())-1)/3+1)
}

// MigrationBonus sizes the one-time import grant: a quarter XP per
// imported chapter, clamped into [50, 500]. Zero imported chapters earn
// nothing.
func MigrationBonus(importedChapters int) int {
	if importedChapters <= 0 {
		return 0
	}
	return min(max(importedChapters/4, 50), 500)
}

// # Results

// MarkResult is the outcome of one progress call.
type MarkResult struct {
	// Entry is the library entry after the write.
	Entry *entry.Entry `json:"entry"`
	// NewlyRead counts chapter rows actually flipped to read.
	NewlyRead int `json:"newlyRead"`
	// XPDelta is the XP granted by this call, zero for re-reads and
	// backward marks.
	XPDelta int `json:"xpDelta"`
	// Level is the level after the grant.
	Level int `json:"level"`
	// LevelUp reports whether the grant crossed a level boundary.
	LevelUp bool `json:"levelUp"`
	// StreakDays is the daily streak after the call.
	StreakDays int `json:"streakDays"`
	// Season and SeasonXP describe the quarter bucket after the grant.
	Season   string `json:"season"`
	SeasonXP int64  `json:"seasonXp"`
	// SeriesCompleted reports whether this call finished a completed
	// series and earned the completion bonus.
	SeriesCompleted bool `json:"seriesCompleted"`
	// Achievements lists achievement ids unlocked by this call.
	Achievements []string `json:"achievements,omitempty"`

	// PrevLastReadAt is the user's previous read timestamp, used by the
	// trust engine to size the read interval. Not serialized.
	PrevLastReadAt *time.Time `json:"-"`
}

// BonusResult reports a migration bonus attempt.
type BonusResult struct {
	// Granted is false when the user already received the bonus or the
	// import had no chapters.
	Granted bool `json:"granted"`
	// Amount is the XP granted when Granted is true.
	Amount int `json:"amount"`
}
