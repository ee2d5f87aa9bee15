// Copyright (c) 2026 MangaTrack. All rights reserved.

package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/postgres"
)

// PostgresRepository implements [Repository] using pgx. It also serves
// the resolver and sync workers, which write entry metadata and sync
// health through the same table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed library store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func entryColumns() string {
	t := schema.LibraryEntry
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		t.ID, t.UserID, t.SeriesID, t.Title, t.SourceURL, t.SourceName,
		t.PreferredSourceID, t.Status, t.LastReadChapter, t.MetadataStatus,
		t.MetadataSource, t.LastMetadataAttemptAt, t.SyncStatus,
		t.SyncPriority, t.CreatedAt, t.UpdatedAt, t.DeletedAt,
	)
}

func scanEntry(row pgx.Row, action string) (*Entry, error) {
	entity := &Entry{}
	err := row.Scan(
		&entity.ID, &entity.UserID, &entity.SeriesID, &entity.Title,
		&entity.SourceURL, &entity.SourceName, &entity.PreferredSourceID,
		&entity.Status, &entity.LastReadChapter, &entity.MetadataStatus,
		&entity.MetadataSource, &entity.LastMetadataAttemptAt,
		&entity.SyncStatus, &entity.SyncPriority,
		&entity.CreatedAt, &entity.UpdatedAt, &entity.DeletedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, action)
	}
	return entity, nil
}

// # Library CRUD

func (repository *PostgresRepository) Create(context context.Context, entity *Entry) error {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING %s, %s`,
		t.Table, t.ID, t.UserID, t.SeriesID, t.Title, t.SourceURL, t.SourceName,
		t.PreferredSourceID, t.Status, t.LastReadChapter, t.MetadataStatus,
		t.MetadataSource, t.SyncStatus, t.SyncPriority,
		t.CreatedAt, t.UpdatedAt,
		t.CreatedAt, t.UpdatedAt,
	)

	err := repository.db.QueryRow(context, query,
		entity.ID, entity.UserID, entity.SeriesID, entity.Title,
		entity.SourceURL, entity.SourceName, entity.PreferredSourceID,
		entity.Status, entity.LastReadChapter, entity.MetadataStatus,
		entity.MetadataSource, entity.SyncStatus, entity.SyncPriority,
	).Scan(&entity.CreatedAt, &entity.UpdatedAt)
	return dberr.Wrap(err, "create_entry")
}

func (repository *PostgresRepository) GetByID(context context.Context, userID, entryID string, includeDeleted bool) (*Entry, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s = $2`,
		entryColumns(), t.Table, t.ID, t.UserID,
	)
	if !includeDeleted {
		query += fmt.Sprintf(" AND %s IS NULL", t.DeletedAt)
	}
	return scanEntry(repository.db.QueryRow(context, query, entryID, userID), "get_entry")
}

func (repository *PostgresRepository) ListByUser(context context.Context, userID string, f Filter, limit, offset int) ([]*Entry, int, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		entryColumns(), t.Table, t.UserID, t.DeletedAt,
	)
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1 AND %s IS NULL`,
		t.Table, t.UserID, t.DeletedAt,
	)

	args := []any{userID}
	countArgs := []any{userID}

	if f.Status != "" {
		query += fmt.Sprintf(" AND %s = $2", t.Status)
		countQuery += fmt.Sprintf(" AND %s = $2", t.Status)
		args = append(args, f.Status)
		countArgs = append(countArgs, f.Status)
	}

	query += fmt.Sprintf(" ORDER BY %s DESC LIMIT $%d OFFSET $%d", t.UpdatedAt, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var total int
	if err := repository.db.QueryRow(context, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_entries")
	}

	rows, err := repository.db.Query(context, query, args...)
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_entries")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entity, err := scanEntry(rows, "scan_entry")
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entity)
	}
	return entries, total, nil
}

func (repository *PostgresRepository) UpdateStatus(context context.Context, userID, entryID, status string) (*Entry, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $3, %s = NOW()
		WHERE %s = $1 AND %s = $2 AND %s IS NULL
		RETURNING %s`,
		t.Table, t.Status, t.UpdatedAt,
		t.ID, t.UserID, t.DeletedAt,
		entryColumns(),
	)
	entity, err := scanEntry(repository.db.QueryRow(context, query, entryID, userID, status), "update_entry_status")
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("Library entry")
		}
		return nil, err
	}
	return entity, nil
}

func (repository *PostgresRepository) SoftDelete(context context.Context, userID, entryID string) error {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW(), %s = NOW() WHERE %s = $1 AND %s = $2 AND %s IS NULL`,
		t.Table, t.DeletedAt, t.UpdatedAt, t.ID, t.UserID, t.DeletedAt,
	)

	cmd, err := repository.db.Exec(context, query, entryID, userID)
	if err != nil {
		return dberr.Wrap(err, "delete_entry")
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("Library entry")
	}
	return nil
}

// # Add-or-Revive

/*
UpsertByUserAndSeries inserts entity, or revives an existing row for the
same (user, series) pair.

A revived row keeps its stored source binding and reading progress; only
the reading status and the tombstone change. The live row is preferred
when both a live and a soft-deleted row exist. On the insert path a
concurrent add can win the unique race, in which case the revive runs
once more against the winner.

Returns:
  - bool: true when a brand-new row was inserted.
  - error: CONFLICT only if the race retry also found nothing to revive.
*/
func (repository *PostgresRepository) UpsertByUserAndSeries(context context.Context, entity *Entry) (bool, error) {
	revived, err := repository.reviveByUserAndSeries(context, entity)
	if err != nil || revived {
		return false, err
	}

	if err := repository.Create(context, entity); err != nil {
		if apperr.IsConflict(err) {
			revived, retryErr := repository.reviveByUserAndSeries(context, entity)
			if retryErr == nil && revived {
				return false, nil
			}
			return false, err
		}
		return false, err
	}
	return true, nil
}

func (repository *PostgresRepository) reviveByUserAndSeries(context context.Context, entity *Entry) (bool, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = NULL, %s = $3, %s = NOW()
		WHERE %s = (
			SELECT %s FROM %s
			WHERE %s = $1 AND %s = $2
			ORDER BY (%s IS NULL) DESC, %s DESC
			LIMIT 1
		)
		RETURNING %s`,
		t.Table,
		t.DeletedAt, t.Status, t.UpdatedAt,
		t.ID,
		t.ID, t.Table,
		t.UserID, t.SeriesID,
		t.DeletedAt, t.UpdatedAt,
		entryColumns(),
	)

	stored, err := scanEntry(repository.db.QueryRow(context, query, entity.UserID, entity.SeriesID, entity.Status), "revive_entry")
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	*entity = *stored
	return true, nil
}

// # Metadata Resolution

// GetForResolution implements the resolver's entry contract. Metadata
// state is not filtered: the job itself decides whether there is work.
func (repository *PostgresRepository) GetForResolution(context context.Context, entryID string) (*resolver.PendingEntry, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		t.ID, t.UserID, t.Title, t.SourceURL, t.SourceName, t.MetadataStatus,
		t.Table, t.ID, t.DeletedAt,
	)

	pending := &resolver.PendingEntry{}
	err := repository.db.QueryRow(context, query, entryID).Scan(
		&pending.ID, &pending.UserID, &pending.Title,
		&pending.SourceURL, &pending.SourceName, &pending.MetadataStatus,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_entry_for_resolution")
	}
	return pending, nil
}

func (repository *PostgresRepository) BindResolution(context context.Context, entryID, seriesID, sourceID string) error {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = NOW(), %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		t.Table,
		t.SeriesID, t.PreferredSourceID, t.MetadataStatus,
		t.LastMetadataAttemptAt, t.UpdatedAt,
		t.ID, t.DeletedAt,
	)

	cmd, err := repository.db.Exec(context, query, entryID, seriesID, sourceID, constants.MetadataStatusEnriched)
	if err != nil {
		return dberr.Wrap(err, "bind_entry_resolution")
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("Library entry")
	}
	return nil
}

func (repository *PostgresRepository) MarkUnresolvable(context context.Context, entryID, status string) error {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = NOW(), %s = NOW()
		WHERE %s = $1 AND %s IS NULL`,
		t.Table,
		t.MetadataStatus, t.LastMetadataAttemptAt, t.UpdatedAt,
		t.ID, t.DeletedAt,
	)

	cmd, err := repository.db.Exec(context, query, entryID, status)
	if err != nil {
		return dberr.Wrap(err, "mark_entry_unresolvable")
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("Library entry")
	}
	return nil
}

/*
ResetMetadataForRetry flips the entry back to pending so resolution can
run again.

The row is locked NOWAIT inside a serializable transaction; a resolution
job holding the row surfaces as CONFLICT rather than blocking the
request. The locked state is authoritative:

  - already enriched rejects with BAD_REQUEST
  - a user metadata override rejects with BAD_REQUEST
  - an attempt inside the cooldown window rejects with RATE_LIMITED
*/
func (repository *PostgresRepository) ResetMetadataForRetry(ctx context.Context, userID, entryID string) error {
	t := schema.LibraryEntry
	return postgres.RunSerializable(ctx, repository.db, constants.DefaultTxTimeout, func(ctx context.Context, tx pgx.Tx) error {
		lockQuery := fmt.Sprintf(`
			SELECT %s, %s, %s
			FROM %s
			WHERE %s = $1 AND %s = $2 AND %s IS NULL
			FOR UPDATE NOWAIT`,
			t.MetadataStatus, t.MetadataSource, t.LastMetadataAttemptAt,
			t.Table, t.ID, t.UserID, t.DeletedAt,
		)

		var status, source string
		var lastAttempt *time.Time
		if err := tx.QueryRow(ctx, lockQuery, entryID, userID).Scan(&status, &source, &lastAttempt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("Library entry")
			}
			return dberr.Wrap(err, "lock_entry_for_retry")
		}

		if status == constants.MetadataStatusEnriched {
			return apperr.BadRequest("Metadata is already resolved")
		}
		if source == constants.MetadataSourceUserOverride {
			return apperr.BadRequest("Metadata is pinned by a manual override")
		}
		if lastAttempt != nil {
			elapsed := time.Since(*lastAttempt)
			if elapsed < constants.MetadataRetryCooldown {
				return apperr.RateLimited(int((constants.MetadataRetryCooldown - elapsed).Seconds()) + 1)
			}
		}

		updateQuery := fmt.Sprintf(`
			UPDATE %s
			SET %s = $2, %s = NOW(), %s = NOW()
			WHERE %s = $1`,
			t.Table,
			t.MetadataStatus, t.LastMetadataAttemptAt, t.UpdatedAt,
			t.ID,
		)
		_, err := tx.Exec(ctx, updateQuery, entryID, constants.MetadataStatusPending)
		return dberr.Wrap(err, "reset_entry_metadata")
	})
}

// # Sync Health Mirror

// SetSyncStatusBySource fans a source's health onto every live entry
// preferring that source. Returns the number of entries touched.
func (repository *PostgresRepository) SetSyncStatusBySource(context context.Context, sourceID, status string) (int64, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = NOW()
		WHERE %s = $1 AND %s IS NULL AND %s <> $2`,
		t.Table,
		t.SyncStatus, t.UpdatedAt,
		t.PreferredSourceID, t.DeletedAt, t.SyncStatus,
	)

	cmd, err := repository.db.Exec(context, query, sourceID, status)
	if err != nil {
		return 0, dberr.Wrap(err, "mirror_entry_sync_status")
	}
	return cmd.RowsAffected(), nil
}
