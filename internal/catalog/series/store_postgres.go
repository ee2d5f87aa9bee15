// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package series (Postgres) persists the catalog over four tables.

# Schema Table Mapping
  - catalog.series: canonical works and their aggregates.
  - catalog.seriessource: upstream bindings with crawl bookkeeping.
  - catalog.chapter: logical chapters keyed (seriesid, number).
  - catalog.chaptersource: per-source chapter copies.
*/
package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/postgres"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed catalog store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// # Series Retrieval

func (repository *PostgresRepository) GetSeries(ctx context.Context, id string, includeDeleted bool) (*Series, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.CatalogSeries.ID, schema.CatalogSeries.Title, schema.CatalogSeries.Type,
		schema.CatalogSeries.Status, schema.CatalogSeries.ContentRating, schema.CatalogSeries.Tier,
		schema.CatalogSeries.TotalFollows, schema.CatalogSeries.TotalViews, schema.CatalogSeries.AverageRating,
		schema.CatalogSeries.LastChapterAt, schema.CatalogSeries.LastActivityAt,
		schema.CatalogSeries.CreatedAt, schema.CatalogSeries.UpdatedAt, schema.CatalogSeries.DeletedAt,
		schema.CatalogSeries.Table,
		schema.CatalogSeries.ID,
	)
	if !includeDeleted {
		query += fmt.Sprintf(" AND %s IS NULL", schema.CatalogSeries.DeletedAt)
	}

	entity := &Series{}
	var tier string
	err := repository.db.QueryRow(ctx, query, id).Scan(
		&entity.ID, &entity.Title, &entity.Type, &entity.Status, &entity.ContentRating, &tier,
		&entity.TotalFollows, &entity.TotalViews, &entity.AverageRating,
		&entity.LastChapterAt, &entity.LastActivityAt,
		&entity.CreatedAt, &entity.UpdatedAt, &entity.DeletedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_series")
	}
	entity.Tier = ParseTier(tier)
	return entity, nil
}

// # Source Retrieval

func (repository *PostgresRepository) GetSource(ctx context.Context, id string) (*SeriesSource, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.CatalogSeriesSource.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.SourceName, schema.CatalogSeriesSource.ExternalID,
		schema.CatalogSeriesSource.SourceURL, schema.CatalogSeriesSource.SourceStatus,
		schema.CatalogSeriesSource.IsPrimaryCover, schema.CatalogSeriesSource.LastSuccessAt,
		schema.CatalogSeriesSource.NextCheckAt, schema.CatalogSeriesSource.ConsecutiveFailures,
		schema.CatalogSeriesSource.CreatedAt, schema.CatalogSeriesSource.UpdatedAt,
		schema.CatalogSeriesSource.Table,
		schema.CatalogSeriesSource.ID,
	)
	return repository.scanSource(repository.db.QueryRow(ctx, query, id), "get_source")
}

func (repository *PostgresRepository) FindSourceByURL(ctx context.Context, sourceURL string) (*SeriesSource, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.CatalogSeriesSource.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.SourceName, schema.CatalogSeriesSource.ExternalID,
		schema.CatalogSeriesSource.SourceURL, schema.CatalogSeriesSource.SourceStatus,
		schema.CatalogSeriesSource.IsPrimaryCover, schema.CatalogSeriesSource.LastSuccessAt,
		schema.CatalogSeriesSource.NextCheckAt, schema.CatalogSeriesSource.ConsecutiveFailures,
		schema.CatalogSeriesSource.CreatedAt, schema.CatalogSeriesSource.UpdatedAt,
		schema.CatalogSeriesSource.Table,
		schema.CatalogSeriesSource.SourceURL,
	)
	return repository.scanSource(repository.db.QueryRow(ctx, query, sourceURL), "find_source_by_url")
}

func (repository *PostgresRepository) scanSource(row pgx.Row, action string) (*SeriesSource, error) {
	source := &SeriesSource{}
	err := row.Scan(
		&source.ID, &source.SeriesID, &source.SourceName, &source.ExternalID,
		&source.SourceURL, &source.SourceStatus, &source.IsPrimaryCover,
		&source.LastSuccessAt, &source.NextCheckAt, &source.ConsecutiveFailures,
		&source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, action)
	}
	return source, nil
}

/*
GetCrawlInfo loads the admission-relevant slice of one source.

A missing row is reported as found=false, not an error: the gatekeeper
treats unknown sources as crawlable so that brand-new links can be synced
before their rows are fully visible.
*/
func (repository *PostgresRepository) GetCrawlInfo(ctx context.Context, sourceID string) (CrawlInfo, bool, error) {
	query := fmt.Sprintf(`
		SELECT source.%s, source.%s, series.%s, source.%s, source.%s
		FROM %s source
		JOIN %s series ON series.%s = source.%s
		WHERE source.%s = $1`,
		schema.CatalogSeriesSource.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeries.Tier,
		schema.CatalogSeriesSource.LastSuccessAt, schema.CatalogSeriesSource.SourceStatus,
		schema.CatalogSeriesSource.Table,
		schema.CatalogSeries.Table, schema.CatalogSeries.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.ID,
	)

	var info CrawlInfo
	var tier string
	err := repository.db.QueryRow(ctx, query, sourceID).Scan(
		&info.SourceID, &info.SeriesID, &tier, &info.LastSuccessAt, &info.SourceStatus,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return CrawlInfo{}, false, nil
	}
	if err != nil {
		return CrawlInfo{}, false, dberr.Wrap(err, "get_crawl_info")
	}
	info.Tier = ParseTier(tier)
	return info, true, nil
}

// # Creation

func (repository *PostgresRepository) CreateSeries(ctx context.Context, entity *Series) error {
	if entity.ID == "" {
		entity.ID = uuidv7.New()
	}
	if entity.Tier == "" {
		entity.Tier = TierC
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		schema.CatalogSeries.Table,
		schema.CatalogSeries.ID, schema.CatalogSeries.Title, schema.CatalogSeries.Type,
		schema.CatalogSeries.Status, schema.CatalogSeries.ContentRating, schema.CatalogSeries.Tier,
		schema.CatalogSeries.CreatedAt, schema.CatalogSeries.UpdatedAt,
	)
	_, err := repository.db.Exec(ctx, query,
		entity.ID, entity.Title, entity.Type, entity.Status, entity.ContentRating, string(entity.Tier),
	)
	return dberr.Wrap(err, "create_series")
}

/*
CreateSource links a series to an upstream site.

The first source of a series claims is_primary_cover via a NOT EXISTS
probe; concurrent first-links are settled by the partial unique index, one
of them surfacing as CONFLICT. next_check_at starts at now so the next
sweep picks the source up immediately.
*/
func (repository *PostgresRepository) CreateSource(ctx context.Context, source *SeriesSource) error {
	if source.ID == "" {
		source.ID = uuidv7.New()
	}
	if source.SourceStatus == "" {
		source.SourceStatus = SourceStatusActive
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6,
			NOT EXISTS (SELECT 1 FROM %s WHERE %s = $2 AND %s),
			now(), 0, now(), now())`,
		schema.CatalogSeriesSource.Table,
		schema.CatalogSeriesSource.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.SourceName, schema.CatalogSeriesSource.ExternalID,
		schema.CatalogSeriesSource.SourceURL, schema.CatalogSeriesSource.SourceStatus,
		schema.CatalogSeriesSource.IsPrimaryCover,
		schema.CatalogSeriesSource.NextCheckAt, schema.CatalogSeriesSource.ConsecutiveFailures,
		schema.CatalogSeriesSource.CreatedAt, schema.CatalogSeriesSource.UpdatedAt,
		schema.CatalogSeriesSource.Table, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.IsPrimaryCover,
	)
	_, err := repository.db.Exec(ctx, query,
		source.ID, source.SeriesID, source.SourceName, source.ExternalID,
		source.SourceURL, source.SourceStatus,
	)
	return dberr.Wrap(err, "create_source")
}

// # Sweep

// ListDueSources walks the partial index over (next_check_at) WHERE
// source_status != 'broken', oldest due first.
func (repository *PostgresRepository) ListDueSources(ctx context.Context, now time.Time, limit int) ([]DueSource, error) {
	query := fmt.Sprintf(`
		SELECT source.%s, source.%s, series.%s, source.%s
		FROM %s source
		JOIN %s series ON series.%s = source.%s
		WHERE source.%s <= $1
		  AND source.%s <> '%s'
		  AND series.%s IS NULL
		ORDER BY source.%s ASC
		LIMIT $2`,
		schema.CatalogSeriesSource.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeries.Tier, schema.CatalogSeriesSource.LastSuccessAt,
		schema.CatalogSeriesSource.Table,
		schema.CatalogSeries.Table, schema.CatalogSeries.ID, schema.CatalogSeriesSource.SeriesID,
		schema.CatalogSeriesSource.NextCheckAt,
		schema.CatalogSeriesSource.SourceStatus, SourceStatusBroken,
		schema.CatalogSeries.DeletedAt,
		schema.CatalogSeriesSource.NextCheckAt,
	)

	rows, err := repository.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_due_sources")
	}
	defer rows.Close()

	var due []DueSource
	for rows.Next() {
		var row DueSource
		var tier string
		if err := rows.Scan(&row.SourceID, &row.SeriesID, &tier, &row.LastSuccessAt); err != nil {
			return nil, dberr.Wrap(err, "scan_due_source")
		}
		row.Tier = ParseTier(tier)
		due = append(due, row)
	}
	return due, rows.Err()
}

// # Diff Transaction

/*
SyncChapters applies one source listing inside a single serializable
transaction:

 1. Take a per-source advisory lock without waiting. Job-id coalescing
    already keeps one job per source; the lock catches split enqueues
    that slip past it.
 2. Lock the source row FOR UPDATE NOWAIT — contention means another
    worker holds the source and surfaces as CONFLICT for requeue.
 3. Upsert each chapter by (series, number); the insert that actually
    creates the row marks the chapter as first-appearance.
 4. Upsert chapter sources with ON CONFLICT DO NOTHING so reuploads
    (same source_chapter_id) and duplicate links die silently.
 5. Reset failure accounting, stamp last_success_at, schedule the next
    check from the series tier.
 6. Refresh series aggregates when anything new landed.

Only chapters that were first-appearance AND actually linked are returned
for fan-out.
*/
func (repository *PostgresRepository) SyncChapters(ctx context.Context, sourceID string, incoming []IncomingChapter) (*SyncResult, error) {
	result := &SyncResult{}

	err := postgres.RunSerializable(ctx, repository.db, constants.DefaultTxTimeout, func(ctx context.Context, tx pgx.Tx) error {
		// Reset per attempt: the tx helper may re-run this closure.
		*result = SyncResult{}

		if err := acquireSourceLock(ctx, tx, sourceID); err != nil {
			return err
		}

		lockQuery := fmt.Sprintf(`
			SELECT source.%s, series.%s
			FROM %s source
			JOIN %s series ON series.%s = source.%s
			WHERE source.%s = $1
			FOR UPDATE OF source NOWAIT`,
			schema.CatalogSeriesSource.SeriesID, schema.CatalogSeries.Tier,
			schema.CatalogSeriesSource.Table,
			schema.CatalogSeries.Table, schema.CatalogSeries.ID, schema.CatalogSeriesSource.SeriesID,
			schema.CatalogSeriesSource.ID,
		)
		var seriesID, tier string
		if err := tx.QueryRow(ctx, lockQuery, sourceID).Scan(&seriesID, &tier); err != nil {
			return dberr.Wrap(err, "lock_series_source")
		}
		result.SeriesID = seriesID
		result.Tier = ParseTier(tier)

		insertChapter := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s, %s, %s)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (%s, %s) DO NOTHING
			RETURNING %s`,
			schema.CatalogChapter.Table,
			schema.CatalogChapter.ID, schema.CatalogChapter.SeriesID,
			schema.CatalogChapter.Number, schema.CatalogChapter.Title,
			schema.CatalogChapter.CreatedAt, schema.CatalogChapter.UpdatedAt,
			schema.CatalogChapter.SeriesID, schema.CatalogChapter.Number,
			schema.CatalogChapter.ID,
		)
		selectChapter := fmt.Sprintf(`
			SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
			schema.CatalogChapter.ID, schema.CatalogChapter.Table,
			schema.CatalogChapter.SeriesID, schema.CatalogChapter.Number,
		)
		insertChapterSource := fmt.Sprintf(`
			INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
			VALUES ($1, $2, $3, $4, $5, true, $6, now())
			ON CONFLICT DO NOTHING`,
			schema.CatalogChapterSource.Table,
			schema.CatalogChapterSource.ID, schema.CatalogChapterSource.SeriesSourceID,
			schema.CatalogChapterSource.ChapterID, schema.CatalogChapterSource.SourceChapterID,
			schema.CatalogChapterSource.ChapterURL, schema.CatalogChapterSource.IsAvailable,
			schema.CatalogChapterSource.DetectedAt, schema.CatalogChapterSource.CreatedAt,
		)

		for _, chapter := range incoming {
			chapterID := ""
			firstAppearance := true
			err := tx.QueryRow(ctx, insertChapter,
				uuidv7.New(), seriesID, chapter.Number, chapter.Title,
			).Scan(&chapterID)
			if errors.Is(err, pgx.ErrNoRows) {
				// Known chapter number: reuse its id.
				firstAppearance = false
				if err := tx.QueryRow(ctx, selectChapter, seriesID, chapter.Number).Scan(&chapterID); err != nil {
					return dberr.Wrap(err, "select_chapter")
				}
			} else if err != nil {
				return dberr.Wrap(err, "insert_chapter")
			}

			var sourceChapterID *string
			if chapter.SourceChapterID != "" {
				sourceChapterID = &chapter.SourceChapterID
			}
			detectedAt := chapter.DetectedAt
			if detectedAt.IsZero() {
				detectedAt = time.Now()
			}

			tag, err := tx.Exec(ctx, insertChapterSource,
				uuidv7.New(), sourceID, chapterID, sourceChapterID, chapter.URL, detectedAt,
			)
			if err != nil {
				return dberr.Wrap(err, "insert_chapter_source")
			}
			if tag.RowsAffected() == 0 {
				// Reupload or duplicate link: silently ignored.
				continue
			}

			if firstAppearance {
				result.NewChapters = append(result.NewChapters, NewChapter{ChapterID: chapterID, Number: chapter.Number})
			} else {
				result.LinkedExisting++
			}
		}

		now := time.Now()
		result.NextCheckAt = now.Add(ParseTier(tier).CheckInterval())

		successQuery := fmt.Sprintf(`
			UPDATE %s
			SET %s = $2, %s = $3, %s = 0, %s = '%s', %s = $2
			WHERE %s = $1`,
			schema.CatalogSeriesSource.Table,
			schema.CatalogSeriesSource.LastSuccessAt, schema.CatalogSeriesSource.NextCheckAt,
			schema.CatalogSeriesSource.ConsecutiveFailures,
			schema.CatalogSeriesSource.SourceStatus, SourceStatusActive,
			schema.CatalogSeriesSource.UpdatedAt,
			schema.CatalogSeriesSource.ID,
		)
		if _, err := tx.Exec(ctx, successQuery, sourceID, now, result.NextCheckAt); err != nil {
			return dberr.Wrap(err, "record_sync_success")
		}

		if len(result.NewChapters) > 0 {
			aggregateQuery := fmt.Sprintf(`
				UPDATE %s SET %s = $2, %s = $2, %s = $2 WHERE %s = $1`,
				schema.CatalogSeries.Table,
				schema.CatalogSeries.LastChapterAt, schema.CatalogSeries.LastActivityAt,
				schema.CatalogSeries.UpdatedAt,
				schema.CatalogSeries.ID,
			)
			if _, err := tx.Exec(ctx, aggregateQuery, seriesID, now); err != nil {
				return dberr.Wrap(err, "refresh_series_aggregates")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// acquireSourceLock takes a transaction-scoped advisory lock keyed on the
// source id. The try variant never blocks; a held lock means another
// worker owns this source right now and the caller requeues on the
// resulting conflict. Released automatically at transaction end.
func acquireSourceLock(ctx context.Context, tx pgx.Tx, sourceID string) error {
	var acquired bool
	err := tx.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`,
		sourceID,
	).Scan(&acquired)
	if err != nil {
		return dberr.Wrap(err, "advisory_lock_series_source")
	}
	if !acquired {
		return apperr.Conflict("Source sync already in progress")
	}
	return nil
}

/*
RecordSyncFailure books one failed sync attempt.

Permanent failures advance the consecutive counter; crossing
[BrokenThreshold] flips the source to broken, which removes it from the
sweep predicate. Transient failures leave the counter alone and only push
next_check_at out so the sweep does not hammer a struggling source.
*/
func (repository *PostgresRepository) RecordSyncFailure(ctx context.Context, sourceID string, permanent bool, nextCheckAt time.Time) (FailureState, error) {
	var query string
	if permanent {
		query = fmt.Sprintf(`
			UPDATE %s
			SET %s = %s + 1,
				%s = CASE WHEN %s + 1 >= $3 THEN '%s' ELSE %s END,
				%s = $2,
				%s = now()
			WHERE %s = $1
			RETURNING %s, %s`,
			schema.CatalogSeriesSource.Table,
			schema.CatalogSeriesSource.ConsecutiveFailures, schema.CatalogSeriesSource.ConsecutiveFailures,
			schema.CatalogSeriesSource.SourceStatus, schema.CatalogSeriesSource.ConsecutiveFailures,
			SourceStatusBroken, schema.CatalogSeriesSource.SourceStatus,
			schema.CatalogSeriesSource.NextCheckAt,
			schema.CatalogSeriesSource.UpdatedAt,
			schema.CatalogSeriesSource.ID,
			schema.CatalogSeriesSource.ConsecutiveFailures, schema.CatalogSeriesSource.SourceStatus,
		)
	} else {
		query = fmt.Sprintf(`
			UPDATE %s
			SET %s = $2, %s = now()
			WHERE %s = $1
			RETURNING %s, %s`,
			schema.CatalogSeriesSource.Table,
			schema.CatalogSeriesSource.NextCheckAt,
			schema.CatalogSeriesSource.UpdatedAt,
			schema.CatalogSeriesSource.ID,
			schema.CatalogSeriesSource.ConsecutiveFailures, schema.CatalogSeriesSource.SourceStatus,
		)
	}

	args := []any{sourceID, nextCheckAt}
	if permanent {
		args = append(args, BrokenThreshold)
	}

	var state FailureState
	var status string
	if err := repository.db.QueryRow(ctx, query, args...).Scan(&state.ConsecutiveFailures, &status); err != nil {
		return FailureState{}, dberr.Wrap(err, "record_sync_failure")
	}
	state.Broken = status == SourceStatusBroken
	return state, nil
}

// # Chapters

func (repository *PostgresRepository) ListChapters(ctx context.Context, seriesID string) ([]*Chapter, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s ASC`,
		schema.CatalogChapter.ID, schema.CatalogChapter.SeriesID, schema.CatalogChapter.Number,
		schema.CatalogChapter.Title, schema.CatalogChapter.CreatedAt, schema.CatalogChapter.UpdatedAt,
		schema.CatalogChapter.Table,
		schema.CatalogChapter.SeriesID,
		schema.CatalogChapter.Number,
	)

	rows, err := repository.db.Query(ctx, query, seriesID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_chapters")
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		chapter := &Chapter{}
		err := rows.Scan(
			&chapter.ID, &chapter.SeriesID, &chapter.Number,
			&chapter.Title, &chapter.CreatedAt, &chapter.UpdatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_chapter")
		}
		chapters = append(chapters, chapter)
	}
	return chapters, rows.Err()
}
