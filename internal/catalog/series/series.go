// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package series is the canonical catalog: Series, their upstream bindings
(SeriesSource), logical Chapters, and per-source chapter copies
(ChapterSource).

A Series owns its sources; a source owns its chapter copies; the Chapter
itself is shared across sources and keyed by (series, number). Ingestion
maintains the aggregates, never user traffic.
*/
package series

import "time"

// # Catalog Tiers

// Tier is the catalog tier assigned by the ranking subsystem. It drives
// crawl cadence and admission priority.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// ParseTier maps stored tier values onto the closed set. Anything
// unrecognized behaves as Tier C.
func ParseTier(raw string) Tier {
	switch Tier(raw) {
	case TierA, TierB:
		return Tier(raw)
	default:
		return TierC
	}
}

// CheckInterval is the periodic crawl cadence for the tier. Tier A is
// crawled periodically exactly once, so its interval only matters until
// the first success.
func (tier Tier) CheckInterval() time.Duration {
	switch tier {
	case TierB:
		return 6 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// # Source Status

const (
	SourceStatusActive = "active"
	SourceStatusBroken = "broken"
)

// BrokenThreshold is the number of consecutive permanent failures after
// which a source stops being swept.
const BrokenThreshold = 3

// # Entities

// Series is a canonical work. Identity is immutable; aggregates are
// maintained by ingestion and library writes.
type Series struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	ContentRating  string     `json:"contentRating"`
	Tier           Tier       `json:"tier"`
	TotalFollows   int        `json:"totalFollows"`
	TotalViews     int64      `json:"totalViews"`
	AverageRating  float64    `json:"averageRating"`
	LastChapterAt  *time.Time `json:"lastChapterAt,omitempty"`
	LastActivityAt *time.Time `json:"lastActivityAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"-"`
}

// SeriesSource binds a Series to one upstream site.
type SeriesSource struct {
	ID                  string     `json:"id"`
	SeriesID            string     `json:"seriesId"`
	SourceName          string     `json:"sourceName"`
	ExternalID          string     `json:"externalId"`
	SourceURL           string     `json:"sourceUrl"`
	SourceStatus        string     `json:"sourceStatus"`
	IsPrimaryCover      bool       `json:"isPrimaryCover"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	NextCheckAt         *time.Time `json:"nextCheckAt,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Chapter is a logical chapter keyed by (series, number). Equivalent
// numbering across sources collapses to one row.
type Chapter struct {
	ID        string    `json:"id"`
	SeriesID  string    `json:"seriesId"`
	Number    float64   `json:"number"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChapterSource is one source's copy of a chapter.
type ChapterSource struct {
	ID              string    `json:"id"`
	SeriesSourceID  string    `json:"seriesSourceId"`
	ChapterID       string    `json:"chapterId"`
	SourceChapterID *string   `json:"sourceChapterId,omitempty"`
	ChapterURL      string    `json:"chapterUrl"`
	IsAvailable     bool      `json:"isAvailable"`
	DetectedAt      time.Time `json:"detectedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// # Sync Exchange Types

// IncomingChapter is one chapter listing as reported by a source adapter,
// normalized for the diff transaction.
type IncomingChapter struct {
	SourceChapterID string
	Number          float64
	Title           string
	URL             string
	DetectedAt      time.Time
}

// NewChapter is a chapter that appeared for the first time anywhere during
// a sync. These, and only these, feed the fan-out pipeline.
type NewChapter struct {
	ChapterID string
	Number    float64
}

// SyncResult summarizes one committed diff transaction.
type SyncResult struct {
	SeriesID string
	Tier     Tier
	// NewChapters lists first-appearance chapters, ascending by number.
	NewChapters []NewChapter
	// LinkedExisting counts new ChapterSources for already-known chapters.
	LinkedExisting int
	NextCheckAt    time.Time
}

// CrawlInfo is the slice of source state the admission decision needs.
type CrawlInfo struct {
	SourceID      string
	SeriesID      string
	Tier          Tier
	LastSuccessAt *time.Time
	SourceStatus  string
}

// HasSucceeded reports whether the source ever completed a sync.
func (info CrawlInfo) HasSucceeded() bool {
	return info.LastSuccessAt != nil
}

// DueSource is one row from the periodic sweep.
type DueSource struct {
	SourceID      string
	SeriesID      string
	Tier          Tier
	LastSuccessAt *time.Time
}

// FailureState reports the source's failure accounting after a recorded
// sync failure.
type FailureState struct {
	ConsecutiveFailures int
	Broken              bool
}
