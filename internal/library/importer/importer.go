// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package importer ingests library exports from other tracking sites.

A batch is accepted synchronously — schema validation, SSRF screening of
pasted URLs, in-batch dedup — then processed by a queue worker that
creates the entries and grants the one-time migration XP bonus. Clients
poll the job until it settles; imported + skipped + failed accounts for
every submitted row once it does.
*/
package importer

import (
	"fmt"
	"time"
)

// Batch limits enforced before a job is accepted.
const (
	// MaxEntries bounds one import batch.
	MaxEntries = 500

	// MaxBodyBytes caps the import request body.
	MaxBodyBytes = 1 << 20

	// MaxExternalIDLen bounds the optional upstream identifier.
	MaxExternalIDLen = 200
)

// # Job Status

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Entry is one accepted import row, stored on the job until the worker
// consumes it. SourceURL is already normalized; Status is already
// defaulted.
type Entry struct {
	Title           string  `json:"title"`
	SourceURL       string  `json:"sourceUrl,omitempty"`
	ExternalID      string  `json:"externalId,omitempty"`
	Status          string  `json:"status"`
	LastReadChapter float64 `json:"lastReadChapter,omitempty"`
}

// Job tracks one import batch through its lifecycle.
type Job struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Status string `json:"status"`

	// Entries is the accepted batch; loaded only by the worker claim,
	// never returned to clients.
	Entries []Entry `json:"-"`

	TotalEntries int    `json:"totalEntries"`
	Imported     int    `json:"imported"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	Error        string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Settled reports whether the job has reached a terminal status.
func (j *Job) Settled() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// QueueJobID derives the queue job id for an import so the enqueue path
// and the worker agree on it.
func QueueJobID(importID string) string {
	return fmt.Sprintf("import-%s", importID)
}
