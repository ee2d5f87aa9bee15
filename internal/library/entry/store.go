// Copyright (c) 2026 MangaTrack. All rights reserved.

package entry

import "context"

// Filter narrows a library listing.
type Filter struct {
	// Status keeps only entries in one reading status when non-empty.
	Status string
}

// Repository is the library storage contract. All reads and writes are
// scoped to the owning user and exclude soft-deleted rows unless stated
// otherwise.
type Repository interface {
	// Create inserts a new entry. A live entry for the same (user, source
	// URL) surfaces as CONFLICT via the partial unique index.
	Create(ctx context.Context, entry *Entry) error

	// GetByID returns one entry owned by userID, including soft-deleted
	// rows only when includeDeleted is set.
	GetByID(ctx context.Context, userID, entryID string, includeDeleted bool) (*Entry, error)

	// ListByUser returns a page of the user's library ordered by most
	// recently updated, plus the unpaged total.
	ListByUser(ctx context.Context, userID string, f Filter, limit, offset int) ([]*Entry, int, error)

	// UpdateStatus sets the reading status and returns the updated row.
	UpdateStatus(ctx context.Context, userID, entryID, status string) (*Entry, error)

	// SoftDelete tombstones the entry. Deleting an already-deleted or
	// unknown entry returns NOT_FOUND; callers that need idempotent
	// deletes treat that as success.
	SoftDelete(ctx context.Context, userID, entryID string) error

	// UpsertByUserAndSeries inserts the entry, or revives and updates an
	// existing row for the same (user, series) pair even when it was
	// soft-deleted. The stored row's identity wins: entry.ID is rewritten
	// to the surviving row's id. Reports true when a new row was created.
	UpsertByUserAndSeries(ctx context.Context, entry *Entry) (bool, error)

	// ResetMetadataForRetry flips a failed or unavailable entry back to
	// pending and stamps the attempt time, locking the row NOWAIT so a
	// concurrent resolution never interleaves.
	ResetMetadataForRetry(ctx context.Context, userID, entryID string) error
}
