// Copyright (c) 2026 MangaTrack. All rights reserved.

// Package migration applies the versioned SQL files in data/migrations at
// API startup. The worker binary never migrates; it assumes the API got
// there first.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Database driver, registers the "pgx5" URL scheme.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// Source driver, reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunUp applies every pending up migration from migrationsPath against
// dsn. A dirty version marker means an earlier run died mid-migration;
// that state needs an operator, so RunUp refuses to touch it.
func RunUp(dsn, migrationsPath string, logger *slog.Logger) error {
	migrator, err := migrate.New("file://"+migrationsPath, pgx5URL(dsn))
	if err != nil {
		return fmt.Errorf("migration: open: %w", err)
	}
	defer func() {
		if sourceErr, dbErr := migrator.Close(); sourceErr != nil || dbErr != nil {
			logger.Error("migration_close_failed",
				slog.Any("source_error", sourceErr),
				slog.Any("db_error", dbErr),
			)
		}
	}()
	migrator.Log = &slogBridge{logger: logger}

	version, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: read version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migration: schema is dirty at version %d, fix it manually before restarting", version)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migration_up_to_date", slog.Uint64("version", uint64(version)))
			return nil
		}
		return fmt.Errorf("migration: up: %w", err)
	}

	applied, _, _ := migrator.Version()
	logger.Info("migration_applied",
		slog.Uint64("from_version", uint64(version)),
		slog.Uint64("to_version", uint64(applied)),
	)
	return nil
}

// pgx5URL rewrites a postgres:// or postgresql:// URL to the pgx5://
// scheme golang-migrate uses to pick its pgx/v5 driver. Anything else is
// passed through untouched.
func pgx5URL(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "postgres://"); ok {
		return "pgx5://" + rest
	}
	if rest, ok := strings.CutPrefix(dsn, "postgresql://"); ok {
		return "pgx5://" + rest
	}
	return dsn
}

// slogBridge adapts golang-migrate's Logger to slog. Migration chatter is
// debug-level; the interesting outcomes get their own Info lines above.
type slogBridge struct {
	logger *slog.Logger
}

func (bridge *slogBridge) Printf(format string, args ...any) {
	bridge.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (bridge *slogBridge) Verbose() bool { return false }
