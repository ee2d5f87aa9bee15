// Copyright (c) 2026 MangaTrack. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/dberr"
)

// PostgresStore covers the reconciler's own storage need: the
// last-writer-wins settings blob on users.account.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL backed settings store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

/*
ApplySettings replaces the settings blob unless the stored stamp is
newer. Zero affected rows means the write arrived stale or lost a race —
either way the newest blob is already in place, so there is nothing to
report.
*/
func (store *PostgresStore) ApplySettings(ctx context.Context, userID string, settings []byte, stamp time.Time) error {
	t := schema.UserAccount
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = NOW()
		WHERE %s = $1 AND %s IS NULL AND (%s IS NULL OR %s <= $3)`,
		t.Table,
		t.Settings, t.SettingsUpdatedAt, t.UpdatedAt,
		t.ID, t.DeletedAt, t.SettingsUpdatedAt, t.SettingsUpdatedAt,
	)
	_, err := store.db.Exec(ctx, query, userID, settings, stamp)
	return dberr.Wrap(err, "apply_user_settings")
}
