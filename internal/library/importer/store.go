// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer

import "context"

// Identity is the dedup identity of one live library entry.
type Identity struct {
	Title     string
	SourceURL string
}

// Repository is the import job storage contract.
type Repository interface {
	// CreateJob persists an accepted batch, payload included.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns one job owned by userID, without its payload.
	GetJob(ctx context.Context, userID, jobID string) (*Job, error)

	// ClaimJob flips a pending or interrupted job to running and returns
	// it with the payload loaded. A settled job is returned as-is so a
	// redelivered queue job can no-op.
	ClaimJob(ctx context.Context, jobID string) (*Job, error)

	// FinishJob writes the terminal status and final counters.
	FinishJob(ctx context.Context, jobID, status string, imported, skipped, failed int, errMsg string) error

	// LibraryIdentity returns the live library's dedup identity for the
	// user: titles and normalized source URLs, soft-deleted rows excluded.
	LibraryIdentity(ctx context.Context, userID string) ([]Identity, error)
}
