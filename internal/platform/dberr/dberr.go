// Copyright (c) 2026 MangaTrack. All rights reserved.

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
//
// Classification is driven by the Postgres SQLSTATE so that callers never
// string-match on driver messages:
//
//   - unique violations surface as CONFLICT
//   - lock contention (NOWAIT) surfaces as CONFLICT and is retryable
//   - serialization failures and deadlocks are retryable
//   - statement timeouts surface as TIMEOUT
package dberr

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Deadline overruns, either from the context or a statement timeout.
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Timeout(err)
	}

	// 3. SQLSTATE-based classification
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return apperr.Conflict("Resource already exists")
		case pgerrcode.LockNotAvailable:
			return apperr.Conflict("Resource is busy, retry shortly")
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return apperr.Conflict("Concurrent update detected, retry shortly")
		case pgerrcode.QueryCanceled:
			return apperr.Timeout(err)
		}
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// IsLockNotAvailable reports whether err comes from a FOR UPDATE NOWAIT or
// advisory lock that could not be acquired.
func IsLockNotAvailable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.LockNotAvailable
}

// IsRetryable reports whether err is transient: serialization failures,
// deadlocks, lock contention, and connection-class errors all qualify.
// Callers retry these with bounded backoff inside a single logical request.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure,
			pgerrcode.DeadlockDetected,
			pgerrcode.LockNotAvailable:
			return true
		}
		// Class 08 covers connection exceptions (loss, refusal, reset).
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	return false
}
