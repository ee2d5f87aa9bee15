// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package audit persists the two operational ledgers: security-relevant
request events (system.auditlog) and terminally failed jobs
(system.workerfailure).

Worker failures are written once per dead job, never for retries, so the
table doubles as the dead-letter inspection surface.
*/
package audit

import (
	"context"
	"time"
)

// Event names recorded in the audit log.
const (
	EventLogin          = "auth.login"
	EventLoginBlocked   = "auth.login_blocked"
	EventRegister       = "auth.register"
	EventImportStarted  = "library.import_started"
	EventImportFinished = "library.import_finished"
	EventReplayApplied  = "library.replay_applied"
)

// Statuses attached to audit events.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// Entry is one audit log row.
type Entry struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	UserID    *string   `json:"userId,omitempty"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkerFailure is one dead job, kept for inspection and replay tooling.
type WorkerFailure struct {
	ID           string    `json:"id"`
	QueueName    string    `json:"queueName"`
	JobID        string    `json:"jobId"`
	ErrorMessage string    `json:"errorMessage"`
	AttemptsMade int       `json:"attemptsMade"`
	Payload      []byte    `json:"payload,omitempty"`
	FailedAt     time.Time `json:"failedAt"`
}

// Repository is the audit log store.
type Repository interface {
	Record(ctx context.Context, entry *Entry) error
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// FailureRepository is the dead-job store.
type FailureRepository interface {
	Insert(ctx context.Context, failure *WorkerFailure) error
	ListByQueue(ctx context.Context, queueName string, limit int) ([]*WorkerFailure, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
