// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package entry manages the user library: which series a user tracks, from
which upstream source, and how far along they are.

An entry starts life as little more than a pasted URL. Resolution binds
it to a catalog series and a preferred source afterwards, so SeriesID and
PreferredSourceID stay null until that happens. Deletes are soft: rows
keep their history and can be revived by a later add of the same series.
*/
package entry

import "time"

// # Reading Status

const (
	StatusReading   = "reading"
	StatusPlanning  = "planning"
	StatusCompleted = "completed"
	StatusPaused    = "paused"
	StatusDropped   = "dropped"
)

// Statuses is the closed set of reading statuses, in display order.
var Statuses = []string{StatusReading, StatusPlanning, StatusCompleted, StatusPaused, StatusDropped}

// ValidStatus reports whether raw is a recognized reading status.
func ValidStatus(raw string) bool {
	for _, s := range Statuses {
		if s == raw {
			return true
		}
	}
	return false
}

// StatusTransitionAllowed applies the completed-is-sticky rule: once an
// entry is completed, automated writers may only move it away from
// completed when the same write advances reading progress. Explicit user
// status changes always pass progressAdvanced = true.
func StatusTransitionAllowed(current, next string, progressAdvanced bool) bool {
	if current == StatusCompleted && next != StatusCompleted {
		return progressAdvanced
	}
	return true
}

// # Entity

// Entry is a tracked series in one user's library.
//
// SeriesID and PreferredSourceID are nil until metadata resolution has
// bound the entry to the catalog; until then Title and SourceURL are the
// only identity the user sees.
type Entry struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"userId"`
	SeriesID              *string    `json:"seriesId,omitempty"`
	Title                 string     `json:"title"`
	SourceURL             string     `json:"sourceUrl"`
	SourceName            string     `json:"sourceName"`
	PreferredSourceID     *string    `json:"preferredSourceId,omitempty"`
	Status                string     `json:"status"`
	LastReadChapter       float64    `json:"lastReadChapter"`
	MetadataStatus        string     `json:"metadataStatus"`
	MetadataSource        string     `json:"metadataSource"`
	LastMetadataAttemptAt *time.Time `json:"lastMetadataAttemptAt,omitempty"`
	SyncStatus            string     `json:"syncStatus"`
	SyncPriority          int        `json:"syncPriority"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	DeletedAt             *time.Time `json:"-"`
}

// Resolved reports whether the entry has been bound to a catalog series.
func (e *Entry) Resolved() bool {
	return e.SeriesID != nil
}
