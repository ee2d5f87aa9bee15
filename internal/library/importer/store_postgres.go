// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
)

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository constructs a PostgreSQL backed import job store.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (repository *PostgresRepository) CreateJob(context context.Context, job *Job) error {
	payload, err := json.Marshal(job.Entries)
	if err != nil {
		return err
	}

	t := schema.LibraryImportJob
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING %s, %s`,
		t.Table, t.ID, t.UserID, t.Status, t.Payload, t.TotalEntries,
		t.Imported, t.Skipped, t.Failed, t.Error, t.CreatedAt, t.UpdatedAt,
		t.CreatedAt, t.UpdatedAt,
	)

	err = repository.db.QueryRow(context, query,
		job.ID, job.UserID, job.Status, payload, job.TotalEntries,
		job.Imported, job.Skipped, job.Failed, job.Error,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	return dberr.Wrap(err, "create_import_job")
}

func (repository *PostgresRepository) GetJob(context context.Context, userID, jobID string) (*Job, error) {
	t := schema.LibraryImportJob
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s = $2`,
		t.ID, t.UserID, t.Status, t.TotalEntries, t.Imported,
		t.Skipped, t.Failed, t.Error, t.CreatedAt, t.UpdatedAt,
		t.Table, t.ID, t.UserID,
	)

	job := &Job{}
	err := repository.db.QueryRow(context, query, jobID, userID).Scan(
		&job.ID, &job.UserID, &job.Status, &job.TotalEntries, &job.Imported,
		&job.Skipped, &job.Failed, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, dberr.Wrap(err, "get_import_job")
	}
	return job, nil
}

func (repository *PostgresRepository) ClaimJob(context context.Context, jobID string) (*Job, error) {
	t := schema.LibraryImportJob
	columns := fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s",
		t.ID, t.UserID, t.Status, t.Payload, t.TotalEntries,
		t.Imported, t.Skipped, t.Failed, t.Error,
	)

	claim := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = NOW()
		WHERE %s = $1 AND %s IN ($3, $2)
		RETURNING %s`,
		t.Table, t.Status, t.UpdatedAt,
		t.ID, t.Status,
		columns,
	)

	job, err := scanJob(repository.db.QueryRow(context, claim, jobID, JobRunning, JobPending))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, dberr.Wrap(err, "claim_import_job")
	}

	// No claimable row: the job already settled, or never existed.
	settled := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, columns, t.Table, t.ID)
	job, err = scanJob(repository.db.QueryRow(context, settled, jobID))
	if err != nil {
		return nil, dberr.Wrap(err, "claim_import_job")
	}
	return job, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	job := &Job{}
	var payload []byte
	err := row.Scan(
		&job.ID, &job.UserID, &job.Status, &payload, &job.TotalEntries,
		&job.Imported, &job.Skipped, &job.Failed, &job.Error,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Entries); err != nil {
			return nil, err
		}
	}
	return job, nil
}

func (repository *PostgresRepository) FinishJob(context context.Context, jobID, status string, imported, skipped, failed int, errMsg string) error {
	t := schema.LibraryImportJob
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6, %s = NOW()
		WHERE %s = $1`,
		t.Table, t.Status, t.Imported, t.Skipped, t.Failed, t.Error, t.UpdatedAt,
		t.ID,
	)

	_, err := repository.db.Exec(context, query, jobID, status, imported, skipped, failed, errMsg)
	return dberr.Wrap(err, "finish_import_job")
}

func (repository *PostgresRepository) LibraryIdentity(context context.Context, userID string) ([]Identity, error) {
	t := schema.LibraryEntry
	query := fmt.Sprintf(`
		SELECT %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		t.Title, t.SourceURL,
		t.Table,
		t.UserID, t.DeletedAt,
	)

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "list_library_identity")
	}
	defer rows.Close()

	var identities []Identity
	for rows.Next() {
		var identity Identity
		if err := rows.Scan(&identity.Title, &identity.SourceURL); err != nil {
			return nil, dberr.Wrap(err, "list_library_identity")
		}
		identities = append(identities, identity)
	}
	return identities, dberr.Wrap(rows.Err(), "list_library_identity")
}
