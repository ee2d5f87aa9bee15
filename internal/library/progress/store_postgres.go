// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package progress (Postgres) runs the progression transaction over five
tables: library.entry, library.chapterread, library.xptransaction,
library.userachievement and users.account, plus the catalog chapter list
it marks against.

Lock order is entry then account, identical for every writer, so two
devices of one user serialize instead of deadlocking. Chapter-read rows
are bulk-upserted from an unnest of chapter ids in one statement.
*/
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/postgres"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// PostgresRepository implements [Repository] using pgx. The logger only
// carries auxiliary in-transaction failures (achievement unlocks) that
// are swallowed by design of the envelope.
type PostgresRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresRepository constructs a PostgreSQL backed read-state store.
func NewPostgresRepository(db *pgxpool.Pool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, logger: logger}
}

// accountState is the locked slice of users.account the grant math runs on.
type accountState struct {
	xp           int64
	seasonXP     int64
	season       string
	level        int
	chaptersRead int
	streakDays   int
	lastReadAt   *time.Time
}

// # Progression Transaction

/*
MarkProgress marks chapters 1..N read and settles all counters in one
serializable transaction:

 1. Lock the entry FOR UPDATE NOWAIT; tombstoned or foreign rows are
    NOT_FOUND, unresolved ones BAD_REQUEST.
 2. Lock the user row.
 3. Upsert chapter-read rows for every catalog chapter numbered <= N via
    a single unnest statement; only rows actually flipped count.
 4. When N advances the entry: grant XP once (+streak bonus), roll the
    season bucket, book the completion bonus when the final chapter of a
    completed series was reached, unlock achievements, append the XP
    ledger and activity log, then write the new counters.

A call that does not advance progress still fills chapter-read gaps but
touches no counters.
*/
func (repository *PostgresRepository) MarkProgress(ctx context.Context, input MarkInput) (*MarkResult, error) {
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := input.Timestamp
	if stamp.IsZero() {
		stamp = now
	}

	result := &MarkResult{}
	err := postgres.RunSerializable(ctx, repository.db, constants.DefaultTxTimeout, func(ctx context.Context, tx pgx.Tx) error {
		// Reset per attempt: the tx helper may re-run this closure.
		*result = MarkResult{}

		entity, err := repository.lockEntry(ctx, tx, input.UserID, input.EntryID)
		if err != nil {
			return err
		}
		if entity.SeriesID == nil {
			return apperr.BadRequest("Entry has no resolved series yet")
		}
		seriesID := *entity.SeriesID

		acct, err := lockAccount(ctx, tx, input.UserID)
		if err != nil {
			return err
		}
		result.PrevLastReadAt = acct.lastReadAt

		chapterIDs, topChapterID, err := chaptersUpTo(ctx, tx, seriesID, input.ChapterNumber)
		if err != nil {
			return err
		}

		newlyRead, err := markChaptersRead(ctx, tx, input.UserID, chapterIDs, stamp)
		if err != nil {
			return err
		}
		result.NewlyRead = newlyRead

		if err := refreshReadStamp(ctx, tx, input.UserID, topChapterID, stamp); err != nil {
			return err
		}

		if input.ChapterNumber <= entity.LastReadChapter {
			result.Entry = entity
			result.Level = acct.level
			result.StreakDays = acct.streakDays
			result.Season = acct.season
			result.SeasonXP = acct.seasonXP
			return nil
		}

		// The call advances progress: exactly one grant.
		streak := NextStreak(acct.lastReadAt, now, acct.streakDays)
		delta := XPPerChapter + StreakBonus(streak)

		completed, err := repository.completionBonus(ctx, tx, input.UserID, seriesID, input.ChapterNumber, now)
		if err != nil {
			return err
		}
		if completed {
			delta += XPSeriesCompleted
		}

		xp := ClampXP(acct.xp + int64(delta))
		season := SeasonFor(now)
		seasonXP := int64(delta)
		if acct.season == season {
			seasonXP = acct.seasonXP + int64(delta)
		}
		chaptersRead := acct.chaptersRead + newlyRead

		snapshot := Snapshot{
			ChaptersRead:    chaptersRead,
			Level:           Level(xp),
			StreakDays:      streak,
			SeasonXP:        seasonXP,
			SeriesCompleted: completed,
		}
		unlocked, rewards, err := repository.unlockAchievements(ctx, tx, input.UserID, snapshot, season, now)
		if err != nil {
			// The envelope swallows achievement failures: the savepoint
			// rolled back, the grant itself proceeds.
			repository.logger.Warn("achievement_unlock_failed",
				slog.String("user_id", input.UserID),
				slog.Any("error", err),
			)
			unlocked, rewards = nil, 0
		}
		if rewards > 0 {
			delta += rewards
			xp = ClampXP(xp + int64(rewards))
			seasonXP += int64(rewards)
		}
		level := Level(xp)

		if err := insertXPTransaction(ctx, tx, input.UserID, XPPerChapter+StreakBonus(streak), XPSourceChapterRead, map[string]any{
			"seriesId":      seriesID,
			"chapterNumber": input.ChapterNumber,
			"deviceId":      input.DeviceID,
		}, now); err != nil {
			return err
		}

		if err := insertActivity(ctx, tx, input.UserID, seriesID, topChapterID, input.ChapterNumber, input.SourceID, now); err != nil {
			return err
		}

		if err := updateAccountCounters(ctx, tx, input.UserID, xp, seasonXP, season, level, chaptersRead, streak, now); err != nil {
			return err
		}

		status := entity.Status
		switch {
		case completed:
			status = entry.StatusCompleted
		case status == entry.StatusPlanning:
			status = entry.StatusReading
		}
		if err := updateEntryProgress(ctx, tx, entity, input.ChapterNumber, status); err != nil {
			return err
		}

		result.Entry = entity
		result.XPDelta = delta
		result.Level = level
		result.LevelUp = level > acct.level
		result.StreakDays = streak
		result.Season = season
		result.SeasonXP = seasonXP
		result.SeriesCompleted = completed
		result.Achievements = unlocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (repository *PostgresRepository) lockEntry(ctx context.Context, tx pgx.Tx, userID, entryID string) (*entry.Entry, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2
		FOR UPDATE NOWAIT`,
		t.ID, t.UserID, t.SeriesID, t.Title, t.SourceURL, t.SourceName,
		t.PreferredSourceID, t.Status, t.LastReadChapter, t.MetadataStatus,
		t.MetadataSource, t.LastMetadataAttemptAt, t.SyncStatus,
		t.SyncPriority, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
		t.Table, t.ID, t.UserID,
	)

	entity := &entry.Entry{}
	err := tx.QueryRow(ctx, query, entryID, userID).Scan(
		&entity.ID, &entity.UserID, &entity.SeriesID, &entity.Title,
		&entity.SourceURL, &entity.SourceName, &entity.PreferredSourceID,
		&entity.Status, &entity.LastReadChapter, &entity.MetadataStatus,
		&entity.MetadataSource, &entity.LastMetadataAttemptAt,
		&entity.SyncStatus, &entity.SyncPriority,
		&entity.CreatedAt, &entity.UpdatedAt, &entity.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Library entry")
		}
		return nil, dberr.Wrap(err, "lock_entry_for_progress")
	}
	if entity.DeletedAt != nil {
		return nil, apperr.NotFound("Library entry")
	}
	return entity, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, userID string) (*accountState, error) {
	t := schema.UserAccount
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL
		FOR UPDATE`,
		t.XP, t.SeasonXP, t.CurrentSeason, t.Level, t.ChaptersRead, t.StreakDays, t.LastReadAt,
		t.Table, t.ID, t.DeletedAt,
	)

	acct := &accountState{}
	err := tx.QueryRow(ctx, query, userID).Scan(
		&acct.xp, &acct.seasonXP, &acct.season, &acct.level,
		&acct.chaptersRead, &acct.streakDays, &acct.lastReadAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, dberr.Wrap(err, "lock_account_for_progress")
	}
	return acct, nil
}

// chaptersUpTo lists catalog chapter ids numbered <= n, plus the id of
// the highest one for the activity log. An unsynced series yields an
// empty list, which is fine: progress is still recorded on the entry.
func chaptersUpTo(ctx context.Context, tx pgx.Tx, seriesID string, n float64) ([]string, *string, error) {
	t := schema.CatalogChapter
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s <= $2
		ORDER BY %s ASC`,
		t.ID, t.Table, t.SeriesID, t.Number, t.Number,
	)
	rows, err := tx.Query(ctx, query, seriesID, n)
	if err != nil {
		return nil, nil, dberr.Wrap(err, "list_chapters_for_progress")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, nil, dberr.Wrap(err, "scan_chapter_for_progress")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, dberr.Wrap(err, "list_chapters_for_progress")
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	top := ids[len(ids)-1]
	return ids, &top, nil
}

// markChaptersRead bulk-upserts the read ledger. Only rows that were
// absent or unread are written, so the affected count is exactly the
// newly-read count; already-read rows keep their earlier stamp.
func markChaptersRead(ctx context.Context, tx pgx.Tx, userID string, chapterIDs []string, stamp time.Time) (int, error) {
	if len(chapterIDs) == 0 {
		return 0, nil
	}
	t := schema.LibraryChapterRead
	query := fmt.Sprintf(`
		INSERT INTO %s AS cr (%s, %s, %s, %s)
		SELECT $1, unnest($2::text[]), TRUE, $3
		ON CONFLICT (%s, %s) DO UPDATE
		SET %s = TRUE, %s = EXCLUDED.%s
		WHERE cr.%s = FALSE`,
		t.Table, t.UserID, t.ChapterID, t.IsRead, t.UpdatedAt,
		t.UserID, t.ChapterID,
		t.IsRead, t.UpdatedAt, t.UpdatedAt,
		t.IsRead,
	)
	cmd, err := tx.Exec(ctx, query, userID, chapterIDs, stamp)
	if err != nil {
		return 0, dberr.Wrap(err, "mark_chapters_read")
	}
	return int(cmd.RowsAffected()), nil
}

// refreshReadStamp completes last-writer-wins on the event chapter: a
// re-read carrying a newer stamp moves the row's stamp forward, a stale
// replay leaves it untouched.
func refreshReadStamp(ctx context.Context, tx pgx.Tx, userID string, chapterID *string, stamp time.Time) error {
	if chapterID == nil {
		return nil
	}
	t := schema.LibraryChapterRead
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $3
		WHERE %s = $1 AND %s = $2 AND %s < $3`,
		t.Table, t.UpdatedAt,
		t.UserID, t.ChapterID, t.UpdatedAt,
	)
	_, err := tx.Exec(ctx, query, userID, *chapterID, stamp)
	return dberr.Wrap(err, "refresh_read_stamp")
}

// completionBonus books the one-time series completion grant when n has
// reached the final chapter of a completed series. The NOT EXISTS probe
// on the ledger makes concurrent completions collapse to a single grant.
func (repository *PostgresRepository) completionBonus(ctx context.Context, tx pgx.Tx, userID, seriesID string, n float64, now time.Time) (bool, error) {
	query := fmt.Sprintf(`
		SELECT s.%s, max(c.%s)
		FROM %s s
		LEFT JOIN %s c ON c.%s = s.%s
		WHERE s.%s = $1
		GROUP BY s.%s`,
		schema.CatalogSeries.Status, schema.CatalogChapter.Number,
		schema.CatalogSeries.Table,
		schema.CatalogChapter.Table, schema.CatalogChapter.SeriesID, schema.CatalogSeries.ID,
		schema.CatalogSeries.ID,
		schema.CatalogSeries.Status,
	)
	var status string
	var maxNumber *float64
	if err := tx.QueryRow(ctx, query, seriesID).Scan(&status, &maxNumber); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, dberr.Wrap(err, "load_series_for_completion")
	}
	if status != "completed" || maxNumber == nil || n < *maxNumber {
		return false, nil
	}

	metadata, err := json.Marshal(map[string]any{"seriesId": seriesID})
	if err != nil {
		return false, err
	}
	t := schema.LibraryXPTransaction
	insert := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM %s WHERE %s = $2 AND %s = $4 AND %s->>'seriesId' = $7
		)`,
		t.Table, t.ID, t.UserID, t.Amount, t.Source, t.Metadata, t.CreatedAt,
		t.Table, t.UserID, t.Source, t.Metadata,
	)
	cmd, err := tx.Exec(ctx, insert,
		uuidv7.New(), userID, XPSeriesCompleted, XPSourceSeriesCompleted, metadata, now, seriesID,
	)
	if err != nil {
		return false, dberr.Wrap(err, "insert_completion_bonus")
	}
	return cmd.RowsAffected() > 0, nil
}

// unlockAchievements inserts eligible unlocks inside a savepoint so a
// failure rolls back only the achievement writes, never the grant. XP is
// credited solely for rows the insert actually created.
func (repository *PostgresRepository) unlockAchievements(ctx context.Context, tx pgx.Tx, userID string, snapshot Snapshot, season string, now time.Time) ([]string, int, error) {
	eligible := EligibleAchievements(snapshot)
	if len(eligible) == 0 {
		return nil, 0, nil
	}

	ids := make([]string, len(eligible))
	seasons := make([]string, len(eligible))
	rewardByID := make(map[string]int, len(eligible))
	for i, a := range eligible {
		ids[i] = a.ID
		if a.Seasonal {
			seasons[i] = season
		}
		rewardByID[a.ID] = a.XPReward
	}

	inner, err := tx.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer inner.Rollback(ctx) //nolint:errcheck

	t := schema.LibraryUserAchievement
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s)
		SELECT $1, unnest($2::text[]), NULLIF(unnest($3::text[]), ''), $4
		ON CONFLICT DO NOTHING
		RETURNING %s`,
		t.Table, t.UserID, t.AchievementID, t.SeasonID, t.UnlockedAt,
		t.AchievementID,
	)
	rows, err := inner.Query(ctx, query, userID, ids, seasons, now)
	if err != nil {
		return nil, 0, err
	}

	var unlocked []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, err
		}
		unlocked = append(unlocked, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	rewards := 0
	for _, id := range unlocked {
		rewards += rewardByID[id]
		metadata, err := json.Marshal(map[string]any{"achievementId": id})
		if err != nil {
			return nil, 0, err
		}
		if err := insertXPTransactionTx(ctx, inner, userID, rewardByID[id], XPSourceAchievement, metadata, now); err != nil {
			return nil, 0, err
		}
	}

	if err := inner.Commit(ctx); err != nil {
		return nil, 0, err
	}
	return unlocked, rewards, nil
}

func insertXPTransaction(ctx context.Context, tx pgx.Tx, userID string, amount int, source string, metadata map[string]any, now time.Time) error {
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	return insertXPTransactionTx(ctx, tx, userID, amount, source, encoded, now)
}

func insertXPTransactionTx(ctx context.Context, tx pgx.Tx, userID string, amount int, source string, metadata []byte, now time.Time) error {
	t := schema.LibraryXPTransaction
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.Table, t.ID, t.UserID, t.Amount, t.Source, t.Metadata, t.CreatedAt,
	)
	_, err := tx.Exec(ctx, query, uuidv7.New(), userID, amount, source, metadata, now)
	return dberr.Wrap(err, "insert_xp_transaction")
}

func insertActivity(ctx context.Context, tx pgx.Tx, userID, seriesID string, chapterID *string, chapterNumber float64, sourceID string, now time.Time) error {
	metadata, err := json.Marshal(map[string]any{
		"chapterNumber": chapterNumber,
		"sourceId":      sourceID,
	})
	if err != nil {
		return err
	}
	t := schema.LibraryActivity
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Table, t.ID, t.UserID, t.SeriesID, t.ChapterID, t.Action, t.Metadata, t.CreatedAt,
	)
	_, err = tx.Exec(ctx, query, uuidv7.New(), userID, seriesID, chapterID, "chapter_read", metadata, now)
	return dberr.Wrap(err, "insert_activity")
}

func updateAccountCounters(ctx context.Context, tx pgx.Tx, userID string, xp, seasonXP int64, season string, level, chaptersRead, streakDays int, now time.Time) error {
	t := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = $7, %s = $8, %s = NOW()
		WHERE %s = $1`,
		t.Table,
		t.XP, t.SeasonXP, t.CurrentSeason, t.Level, t.ChaptersRead, t.StreakDays, t.LastReadAt, t.UpdatedAt,
		t.ID,
	)
	_, err := tx.Exec(ctx, query, userID, xp, seasonXP, season, level, chaptersRead, streakDays, now)
	return dberr.Wrap(err, "update_account_counters")
}

func updateEntryProgress(ctx context.Context, tx pgx.Tx, entity *entry.Entry, n float64, status string) error {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = NOW()
		WHERE %s = $1
		RETURNING %s`,
		t.Table,
		t.LastReadChapter, t.Status, t.UpdatedAt,
		t.ID,
		t.UpdatedAt,
	)
	if err := tx.QueryRow(ctx, query, entity.ID, n, status).Scan(&entity.UpdatedAt); err != nil {
		return dberr.Wrap(err, "update_entry_progress")
	}
	entity.LastReadChapter = n
	entity.Status = status
	return nil
}

// # Migration Bonus

/*
GrantMigrationBonus books the one-time import grant.

The NOT EXISTS probe against the XP ledger is the idempotency gate:
whichever concurrent import inserts the ledger row wins, every other
attempt reads zero affected rows and grants nothing.
*/
func (repository *PostgresRepository) GrantMigrationBonus(ctx context.Context, userID string, importedChapters int) (*BonusResult, error) {
	amount := MigrationBonus(importedChapters)
	if amount == 0 {
		return &BonusResult{}, nil
	}

	result := &BonusResult{}
	err := postgres.RunInTx(ctx, repository.db, postgres.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		*result = BonusResult{}

		metadata, err := json.Marshal(map[string]any{"importedChapters": importedChapters})
		if err != nil {
			return err
		}
		t := schema.LibraryXPTransaction
		insert := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s, %s, %s)
			SELECT $1, $2, $3, $4, $5, NOW()
			WHERE NOT EXISTS (
				SELECT 1 FROM %s WHERE %s = $2 AND %s = $4
			)`,
			t.Table, t.ID, t.UserID, t.Amount, t.Source, t.Metadata, t.CreatedAt,
			t.Table, t.UserID, t.Source,
		)
		cmd, err := tx.Exec(ctx, insert, uuidv7.New(), userID, amount, XPSourceMigrationBonus, metadata)
		if err != nil {
			return dberr.Wrap(err, "insert_migration_bonus")
		}
		if cmd.RowsAffected() == 0 {
			return nil
		}

		acct, err := lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		now := time.Now()
		xp := ClampXP(acct.xp + int64(amount))
		season := SeasonFor(now)
		seasonXP := int64(amount)
		if acct.season == season {
			seasonXP = acct.seasonXP + int64(amount)
		}

		update := fmt.Sprintf(`
			UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5, %s = NOW()
			WHERE %s = $1`,
			schema.UserAccount.Table,
			schema.UserAccount.XP, schema.UserAccount.SeasonXP,
			schema.UserAccount.CurrentSeason, schema.UserAccount.Level,
			schema.UserAccount.UpdatedAt,
			schema.UserAccount.ID,
		)
		if _, err := tx.Exec(ctx, update, userID, xp, seasonXP, season, Level(xp)); err != nil {
			return dberr.Wrap(err, "apply_migration_bonus")
		}

		result.Granted = true
		result.Amount = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// # Trust Bookkeeping

// RecordViolation books one violation and applies its penalty, unless a
// violation of the same type landed inside the cooldown window.
func (repository *PostgresRepository) RecordViolation(ctx context.Context, userID, violationType string, now time.Time) (bool, error) {
	delta, ok := ViolationDelta[violationType]
	if !ok {
		return false, fmt.Errorf("progress: unknown violation type %q", violationType)
	}

	recorded := false
	err := postgres.RunInTx(ctx, repository.db, postgres.TxOptions{}, func(ctx context.Context, tx pgx.Tx) error {
		recorded = false

		tv := schema.LibraryTrustViolation
		cooldownQuery := fmt.Sprintf(`
			SELECT EXISTS (
				SELECT 1 FROM %s WHERE %s = $1 AND %s = $2 AND %s > $3
			)`,
			tv.Table, tv.UserID, tv.ViolationType, tv.CreatedAt,
		)
		var inCooldown bool
		if err := tx.QueryRow(ctx, cooldownQuery, userID, violationType, now.Add(-ViolationCooldown)).Scan(&inCooldown); err != nil {
			return dberr.Wrap(err, "check_violation_cooldown")
		}
		if inCooldown {
			return nil
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s)
			VALUES ($1, $2, $3, $4)`,
			tv.Table, tv.ID, tv.UserID, tv.ViolationType, tv.Delta,
		)
		if _, err := tx.Exec(ctx, insert, uuidv7.New(), userID, violationType, delta); err != nil {
			return dberr.Wrap(err, "insert_trust_violation")
		}

		ua := schema.UserAccount
		update := fmt.Sprintf(`
			UPDATE %s
			SET %s = GREATEST(%g, LEAST(%g, %s + $2)), %s = NOW()
			WHERE %s = $1 AND %s IS NULL`,
			ua.Table,
			ua.TrustScore, TrustFloor, TrustCeiling, ua.TrustScore, ua.UpdatedAt,
			ua.ID, ua.DeletedAt,
		)
		if _, err := tx.Exec(ctx, update, userID, delta); err != nil {
			return dberr.Wrap(err, "apply_trust_penalty")
		}

		recorded = true
		return nil
	})
	return recorded, err
}

func (repository *PostgresRepository) CountRecentViolations(ctx context.Context, userID, violationType string, since time.Time) (int, error) {
	t := schema.LibraryTrustViolation
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s
		WHERE %s = $1 AND %s = $2 AND %s > $3`,
		t.Table, t.UserID, t.ViolationType, t.CreatedAt,
	)
	var count int
	if err := repository.db.QueryRow(ctx, query, userID, violationType, since).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, "count_recent_violations")
	}
	return count, nil
}

func (repository *PostgresRepository) RecentReadTimes(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	t := schema.LibraryActivity
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = $1 AND %s = 'chapter_read'
		ORDER BY %s DESC
		LIMIT $2`,
		t.CreatedAt, t.Table, t.UserID, t.Action, t.CreatedAt,
	)
	rows, err := repository.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_recent_read_times")
	}
	defer rows.Close()

	var stamps []time.Time
	for rows.Next() {
		var stamp time.Time
		if err := rows.Scan(&stamp); err != nil {
			return nil, dberr.Wrap(err, "scan_read_time")
		}
		stamps = append(stamps, stamp)
	}
	return stamps, rows.Err()
}

// # Maintenance Jobs

// DecayTrustScores applies the daily +0.02 recovery toward the ceiling.
func (repository *PostgresRepository) DecayTrustScores(ctx context.Context) (int64, error) {
	t := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = LEAST(%g, %s + %g), %s = NOW()
		WHERE %s < %g AND %s IS NULL`,
		t.Table,
		t.TrustScore, TrustCeiling, t.TrustScore, TrustDecayPerDay, t.UpdatedAt,
		t.TrustScore, TrustCeiling, t.DeletedAt,
	)
	cmd, err := repository.db.Exec(ctx, query)
	if err != nil {
		return 0, dberr.Wrap(err, "decay_trust_scores")
	}
	return cmd.RowsAffected(), nil
}

// ReconcileReadCounts recomputes chapters_read from the read ledger for
// accounts whose counter drifted; the counter is approximate between
// runs because grants only increment it on XP-awarding calls.
func (repository *PostgresRepository) ReconcileReadCounts(ctx context.Context) (int64, error) {
	ua := schema.UserAccount
	cr := schema.LibraryChapterRead
	query := fmt.Sprintf(`
		UPDATE %s a
		SET %s = COALESCE(sub.cnt, 0), %s = NOW()
		FROM %s a2
		LEFT JOIN (
			SELECT %s, count(*) AS cnt FROM %s WHERE %s GROUP BY %s
		) sub ON sub.%s = a2.%s
		WHERE a.%s = a2.%s AND a.%s <> COALESCE(sub.cnt, 0)`,
		ua.Table,
		ua.ChaptersRead, ua.UpdatedAt,
		ua.Table,
		cr.UserID, cr.Table, cr.IsRead, cr.UserID,
		cr.UserID, ua.ID,
		ua.ID, ua.ID, ua.ChaptersRead,
	)
	cmd, err := repository.db.Exec(ctx, query)
	if err != nil {
		return 0, dberr.Wrap(err, "reconcile_read_counts")
	}
	return cmd.RowsAffected(), nil
}
