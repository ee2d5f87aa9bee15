// Copyright (c) 2026 MangaTrack. All rights reserved.

package series

import (
	"context"
	"time"
)

// Repository is the catalog storage contract consumed by the crawl and
// library layers.
type Repository interface {
	// GetSeries returns a series by id, excluding soft-deleted rows unless
	// includeDeleted is set.
	GetSeries(ctx context.Context, id string, includeDeleted bool) (*Series, error)

	// GetSource returns one upstream binding.
	GetSource(ctx context.Context, id string) (*SeriesSource, error)

	// FindSourceByURL resolves a normalized source URL to its binding.
	FindSourceByURL(ctx context.Context, sourceURL string) (*SeriesSource, error)

	// GetCrawlInfo returns the admission-relevant slice of a source.
	// A missing row returns found=false with a nil error: admission treats
	// unknown sources as crawlable.
	GetCrawlInfo(ctx context.Context, sourceID string) (info CrawlInfo, found bool, err error)

	// CreateSeries inserts a new canonical work.
	CreateSeries(ctx context.Context, series *Series) error

	// CreateSource links a series to an upstream site. The first source of
	// a series becomes its primary cover.
	CreateSource(ctx context.Context, source *SeriesSource) error

	// ListDueSources returns sweep candidates: next_check_at due and not
	// broken, oldest due first.
	ListDueSources(ctx context.Context, now time.Time, limit int) ([]DueSource, error)

	// SyncChapters runs the serializable diff transaction for one source:
	// lock source row (NOWAIT), upsert chapters by (series, number), upsert
	// chapter sources honoring compound identity, refresh success fields
	// and series aggregates. Reuploads are rejected silently.
	SyncChapters(ctx context.Context, sourceID string, incoming []IncomingChapter) (*SyncResult, error)

	// RecordSyncFailure books one failed sync. Permanent failures advance
	// the consecutive-failure counter and may break the source; transient
	// ones only push next_check_at out.
	RecordSyncFailure(ctx context.Context, sourceID string, permanent bool, nextCheckAt time.Time) (FailureState, error)

	// ListChapters returns the logical chapters of a series ascending by
	// number.
	ListChapters(ctx context.Context, seriesID string) ([]*Chapter, error)
}
