// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package reconcile applies replayed offline actions to server state.

Each action carries the client timestamp of the original intent and is
applied under last-writer-wins; the answer is a per-action verdict —
success, retryable or permanent — that tells the client whether to
dequeue, retry or drop. Handlers here must converge: applying the same
action twice yields the same state, and a stale action yields no change,
both reported as success.
*/
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
)

// # Payloads

// ChapterReadPayload marks one entry read up to a chapter.
type ChapterReadPayload struct {
	EntryID       string  `json:"entryId"`
	ChapterNumber float64 `json:"chapterNumber"`
	SourceID      string  `json:"sourceId,omitempty"`
}

// LibraryAddPayload tracks a catalog series picked while offline.
type LibraryAddPayload struct {
	SeriesID   string `json:"seriesId"`
	Title      string `json:"title"`
	SourceURL  string `json:"sourceUrl"`
	SourceName string `json:"sourceName"`
	Status     string `json:"status"`
}

// LibraryUpdatePayload changes an entry's reading status.
// LastReadChapter carries the client's local progress: a completed entry
// may only leave that status together with a progress advance.
type LibraryUpdatePayload struct {
	EntryID         string  `json:"entryId"`
	Status          string  `json:"status"`
	LastReadChapter float64 `json:"lastReadChapter"`
}

// LibraryDeletePayload removes an entry from the library.
type LibraryDeletePayload struct {
	EntryID string `json:"entryId"`
}

// SettingUpdatePayload replaces the user's settings blob.
type SettingUpdatePayload struct {
	Settings json.RawMessage `json:"settings"`
}

// # Dependencies

// Entries is the slice of the library entry store the reconciler uses.
type Entries interface {
	GetByID(ctx context.Context, userID, entryID string, includeDeleted bool) (*entry.Entry, error)
	UpdateStatus(ctx context.Context, userID, entryID, status string) (*entry.Entry, error)
	SoftDelete(ctx context.Context, userID, entryID string) error
	UpsertByUserAndSeries(ctx context.Context, entry *entry.Entry) (bool, error)
}

// Progress runs the read-state engine for replayed chapter reads.
type Progress interface {
	MarkProgress(ctx context.Context, input progress.MarkInput) (*progress.MarkResult, error)
}

// Settings persists the user settings blob under last-writer-wins.
type Settings interface {
	// ApplySettings replaces the settings blob unless the stored one
	// carries a newer stamp; a stale write is a silent no-op.
	ApplySettings(ctx context.Context, userID string, settings []byte, stamp time.Time) error
}
