// Copyright (c) 2026 MangaTrack. All rights reserved.

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed audit log store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (repository *PostgresRepository) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuidv7.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	metadata := entry.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		schema.SystemAuditLog.Table,
		schema.SystemAuditLog.ID, schema.SystemAuditLog.Event, schema.SystemAuditLog.Status,
		schema.SystemAuditLog.UserID, schema.SystemAuditLog.IP, schema.SystemAuditLog.UserAgent,
		schema.SystemAuditLog.Metadata, schema.SystemAuditLog.CreatedAt,
	)

	_, err := repository.db.Exec(ctx, query,
		entry.ID, entry.Event, entry.Status, entry.UserID,
		entry.IP, entry.UserAgent, metadata, entry.CreatedAt,
	)
	return dberr.Wrap(err, "record_audit_event")
}

func (repository *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Entry, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s DESC
		LIMIT $1`,
		schema.SystemAuditLog.ID, schema.SystemAuditLog.Event, schema.SystemAuditLog.Status,
		schema.SystemAuditLog.UserID, schema.SystemAuditLog.IP, schema.SystemAuditLog.UserAgent,
		schema.SystemAuditLog.Metadata, schema.SystemAuditLog.CreatedAt,
		schema.SystemAuditLog.Table,
		schema.SystemAuditLog.CreatedAt,
	)

	rows, err := repository.db.Query(ctx, query, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_audit_events")
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(
			&entry.ID, &entry.Event, &entry.Status, &entry.UserID,
			&entry.IP, &entry.UserAgent, &entry.Metadata, &entry.CreatedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_audit_event")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (repository *PostgresRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.SystemAuditLog.Table, schema.SystemAuditLog.CreatedAt)

	tag, err := repository.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, dberr.Wrap(err, "prune_audit_events")
	}
	return tag.RowsAffected(), nil
}

// # Worker Failures

// PostgresFailureRepository implements [FailureRepository] using pgx.
type PostgresFailureRepository struct {
	db *pgxpool.Pool
}

// NewPostgresFailureRepository constructs a PostgreSQL backed dead-job store.
func NewPostgresFailureRepository(db *pgxpool.Pool) *PostgresFailureRepository {
	return &PostgresFailureRepository{db: db}
}

func (repository *PostgresFailureRepository) Insert(ctx context.Context, failure *WorkerFailure) error {
	if failure.ID == "" {
		failure.ID = uuidv7.New()
	}
	if failure.FailedAt.IsZero() {
		failure.FailedAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		schema.SystemWorkerFailure.Table,
		schema.SystemWorkerFailure.ID, schema.SystemWorkerFailure.QueueName,
		schema.SystemWorkerFailure.JobID, schema.SystemWorkerFailure.ErrorMessage,
		schema.SystemWorkerFailure.AttemptsMade, schema.SystemWorkerFailure.Payload,
		schema.SystemWorkerFailure.FailedAt,
	)

	_, err := repository.db.Exec(ctx, query,
		failure.ID, failure.QueueName, failure.JobID, failure.ErrorMessage,
		failure.AttemptsMade, failure.Payload, failure.FailedAt,
	)
	return dberr.Wrap(err, "insert_worker_failure")
}

// RecordFailure adapts the repository to the worker pool's failure sink.
func (repository *PostgresFailureRepository) RecordFailure(ctx context.Context, job *queue.Job, errMsg string) error {
	return repository.Insert(ctx, &WorkerFailure{
		QueueName:    job.Queue,
		JobID:        job.ID,
		ErrorMessage: errMsg,
		AttemptsMade: job.Attempts,
		Payload:      job.Payload,
	})
}

func (repository *PostgresFailureRepository) ListByQueue(ctx context.Context, queueName string, limit int) ([]*WorkerFailure, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
		LIMIT $2`,
		schema.SystemWorkerFailure.ID, schema.SystemWorkerFailure.QueueName,
		schema.SystemWorkerFailure.JobID, schema.SystemWorkerFailure.ErrorMessage,
		schema.SystemWorkerFailure.AttemptsMade, schema.SystemWorkerFailure.Payload,
		schema.SystemWorkerFailure.FailedAt,
		schema.SystemWorkerFailure.Table,
		schema.SystemWorkerFailure.QueueName,
		schema.SystemWorkerFailure.FailedAt,
	)

	rows, err := repository.db.Query(ctx, query, queueName, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "list_worker_failures")
	}
	defer rows.Close()

	var failures []*WorkerFailure
	for rows.Next() {
		failure := &WorkerFailure{}
		err := rows.Scan(
			&failure.ID, &failure.QueueName, &failure.JobID, &failure.ErrorMessage,
			&failure.AttemptsMade, &failure.Payload, &failure.FailedAt,
		)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_worker_failure")
		}
		failures = append(failures, failure)
	}
	return failures, rows.Err()
}

func (repository *PostgresFailureRepository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.SystemWorkerFailure.Table, schema.SystemWorkerFailure.FailedAt)

	tag, err := repository.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, dberr.Wrap(err, "prune_worker_failures")
	}
	return tag.RowsAffected(), nil
}
