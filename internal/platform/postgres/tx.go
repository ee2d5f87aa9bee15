// Copyright (c) 2026 MangaTrack. All rights reserved.

package postgres

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
)

// TxOptions tunes a single logical transaction.
type TxOptions struct {
	// IsoLevel is the transaction isolation level. Defaults to ReadCommitted.
	IsoLevel pgx.TxIsoLevel
	// Timeout bounds the whole transaction. Defaults to [constants.DefaultTxTimeout].
	Timeout time.Duration
	// MaxAttempts bounds retries on transient failures (serialization,
	// deadlock, lock contention). Defaults to 3.
	MaxAttempts int
}

// RunInTx executes fn inside a transaction with a deadline budget.
//
// Transient failures (serialization conflicts, deadlocks, NOWAIT contention)
// are retried with a short jittered backoff up to MaxAttempts; every retry
// runs fn again from scratch, so fn must be safe to re-execute. All other
// errors roll back and return immediately.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if opts.Timeout == 0 {
		opts.Timeout = constants.DefaultTxTimeout
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		lastErr = runOnce(ctx, pool, opts, fn)
		if lastErr == nil {
			return nil
		}
		if !dberr.IsRetryable(lastErr) || attempt == opts.MaxAttempts {
			return lastErr
		}

		// Jittered linear backoff keeps colliding writers from re-colliding.
		backoff := time.Duration(attempt)*75*time.Millisecond + rand.N(50*time.Millisecond)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// RunSerializable is [RunInTx] at Serializable isolation, used for
// multi-table writes that must observe a consistent snapshot.
func RunSerializable(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return RunInTx(ctx, pool, TxOptions{IsoLevel: pgx.Serializable, Timeout: timeout}, fn)
}

func runOnce(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(ctx context.Context, tx pgx.Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	tx, err := pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	// Rollback is a no-op after a successful commit.
	defer tx.Rollback(txCtx) //nolint:errcheck

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
