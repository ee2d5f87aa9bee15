// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress

import (
	"context"
	"time"
)

// MarkInput is one progress write.
type MarkInput struct {
	UserID        string
	EntryID       string
	ChapterNumber float64
	// SourceID optionally names the source the user read on; echoed into
	// the activity log.
	SourceID string
	// Timestamp is the client's read time, used as the LWW stamp on
	// chapter-read rows. Zero falls back to Now.
	Timestamp time.Time
	DeviceID  string
	// Now is the server clock for counters and streaks. Zero means
	// time.Now().
	Now time.Time
}

// Repository is the read-state storage contract.
type Repository interface {
	// MarkProgress runs the whole progression transaction: lock entry and
	// user, mark chapters 1..N read, grant XP/streak/season/achievements
	// when the call advances progress.
	MarkProgress(ctx context.Context, input MarkInput) (*MarkResult, error)

	// GrantMigrationBonus awards the one-time import bonus. At most one
	// grant per user ever; concurrent attempts collapse to one.
	GrantMigrationBonus(ctx context.Context, userID string, importedChapters int) (*BonusResult, error)

	// RecordViolation books one trust violation and applies its penalty.
	// It reports false when the per-type cooldown suppressed it.
	RecordViolation(ctx context.Context, userID, violationType string, now time.Time) (bool, error)

	// CountRecentViolations counts violations of one type since the
	// cutoff.
	CountRecentViolations(ctx context.Context, userID, violationType string, since time.Time) (int, error)

	// RecentReadTimes returns the newest chapter-read activity stamps,
	// newest first.
	RecentReadTimes(ctx context.Context, userID string, limit int) ([]time.Time, error)

	// DecayTrustScores restores every damped trust score by one daily
	// step. Returns the number of accounts touched.
	DecayTrustScores(ctx context.Context) (int64, error)

	// ReconcileReadCounts recomputes chapters_read from the chapter-read
	// ledger for accounts that drifted. Returns the number corrected.
	ReconcileReadCounts(ctx context.Context) (int64, error)
}
