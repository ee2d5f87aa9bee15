// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package account (Postgres) implements the storage layer for user meta-data.

It provides optimized PostgreSQL implementations for managing user profiles,
reading statistics, mapping reading preferences, and auditing active sessions.

# Schema Table Mapping
  - users.account: Master identity, profile data, gamification counters, and
    the device-settings sync blob.
  - users.readingpreference: 1:1 user settings configuration.
  - users.session: Active device sessions and security metadata.
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/database/schema"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

// # Repository Implementations

// PostgresAccountRepository implements [AccountRepository] using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new Postgres implementation for profile management.
func NewAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// PostgresStatsRepository implements [StatsRepository] using pgx.
type PostgresStatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new Postgres implementation for reading statistics.
func NewStatsRepository(pool *pgxpool.Pool) *PostgresStatsRepository {
	return &PostgresStatsRepository{pool: pool}
}

// PostgresPreferencesRepository implements [PreferencesRepository] using pgx.
type PostgresPreferencesRepository struct {
	pool *pgxpool.Pool
}

// NewPreferencesRepository creates a new Postgres implementation for user settings.
func NewPreferencesRepository(pool *pgxpool.Pool) *PostgresPreferencesRepository {
	return &PostgresPreferencesRepository{pool: pool}
}

// PostgresSessionRepository implements [SessionRepository] using pgx.
type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new Postgres implementation for session auditing.
func NewSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

// # AccountRepository Methods

/*
FindByID retrieves a user record from the users.account table.

Parameters:
  - context: context.Context
  - id: string (UUID)

Returns:
  - *auth.User: Hydrated identity entity
  - error: apperr.NotFound or database execution failure
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id string) (*auth.User, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.Email,
		schema.UserAccount.Password, schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL,
		schema.UserAccount.Bio, schema.UserAccount.Website, schema.UserAccount.Role,
		schema.UserAccount.IsVerified, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
		schema.UserAccount.Table, schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	user := &auth.User{}
	err := repository.pool.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarURL,
		&user.Bio,
		&user.Website,
		&user.Role,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
Update modifies the mutable profile metadata of a user.

Description: This method specifically syncs the DisplayName, AvatarURL, Bio,
and Website fields, while refreshing the updatedat timestamp.

Parameters:
  - context: context.Context
  - user: *auth.User

Returns:
  - error: Update failures
*/
func (repository *PostgresAccountRepository) Update(context context.Context, user *auth.User) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table,
		schema.UserAccount.DisplayName, schema.UserAccount.AvatarURL, schema.UserAccount.Bio,
		schema.UserAccount.Website, schema.UserAccount.UpdatedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	user.UpdatedAt = time.Now()
	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.DisplayName,
		user.AvatarURL,
		user.Bio,
		user.Website,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_failed: %w", err)
	}

	return nil
}

/*
SoftDelete flags a user account as logically destroyed.

Description: Already-deleted rows are skipped so the original deletion
timestamp is preserved on repeated calls.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - error: Execution failures
*/
func (repository *PostgresAccountRepository) SoftDelete(context context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Table, schema.UserAccount.DeletedAt,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	_, err := repository.pool.Exec(context, query, id)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_soft_delete_failed: %w", err)
	}

	return nil
}

/*
FindSettings reads the device-settings sync document for an account.

Description: The blob is maintained by the offline replay path; this read
exposes it together with the client timestamp of the winning write.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *SettingsDocument: Raw settings JSON and sync timestamp (nil before the
    first device sync)
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresAccountRepository) FindSettings(context context.Context, userID string) (*SettingsDocument, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(%s, '{}'::jsonb), %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.Settings, schema.UserAccount.SettingsUpdatedAt,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	document := &SettingsDocument{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&document.Settings,
		&document.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_settings_failed: %w", err)
	}

	return document, nil
}

// # StatsRepository Methods

/*
FindByUserID loads the gamification counters of a single account.

Description: The trust score is read only to derive effective XP; it is not
part of the returned entity.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Stats: Hydrated counters
  - error: apperr.NotFound or execution failures
*/
func (repository *PostgresStatsRepository) FindByUserID(context context.Context, userID string) (*Stats, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1 AND %s IS NULL`,
		schema.UserAccount.XP, schema.UserAccount.SeasonXP, schema.UserAccount.CurrentSeason,
		schema.UserAccount.Level, schema.UserAccount.ChaptersRead, schema.UserAccount.TrustScore,
		schema.UserAccount.StreakDays, schema.UserAccount.LastReadAt,
		schema.UserAccount.Table,
		schema.UserAccount.ID, schema.UserAccount.DeletedAt,
	)

	stats := &Stats{UserID: userID}
	var trustScore float64
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&stats.XP,
		&stats.SeasonXP,
		&stats.CurrentSeason,
		&stats.Level,
		&stats.ChaptersRead,
		&trustScore,
		&stats.StreakDays,
		&stats.LastReadAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Account")
		}
		return nil, fmt.Errorf("postgres_stats_repo_find_failed: %w", err)
	}

	stats.EffectiveXP = progress.EffectiveXP(stats.XP, trustScore)

	return stats, nil
}

/*
TopByEffectiveXP ranks accounts by trust-attenuated lifetime XP.

Description: The attenuation is computed inside the query with the same clamp
bounds the progress engine uses, so the ranking matches what per-user stats
report. Ties break on account ID for a stable ordering.

Parameters:
  - context: context.Context
  - limit: int

Returns:
  - []LeaderboardEntry: Ranked rows, rank starting at 1
  - error: Execution failures
*/
func (repository *PostgresStatsRepository) TopByEffectiveXP(context context.Context, limit int) ([]LeaderboardEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s,
			TRUNC(%s * LEAST($3, GREATEST($2, %s)))::BIGINT AS effectivexp
		FROM %s
		WHERE %s IS NULL
		ORDER BY effectivexp DESC, %s ASC
		LIMIT $1`,
		schema.UserAccount.ID, schema.UserAccount.Username, schema.UserAccount.DisplayName,
		schema.UserAccount.AvatarURL, schema.UserAccount.Level,
		schema.UserAccount.XP, schema.UserAccount.TrustScore,
		schema.UserAccount.Table,
		schema.UserAccount.DeletedAt,
		schema.UserAccount.ID,
	)

	rows, err := repository.pool.Query(context, query, limit, progress.TrustFloor, progress.TrustCeiling)
	if err != nil {
		return nil, fmt.Errorf("postgres_stats_repo_leaderboard_failed: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.Username,
			&entry.DisplayName,
			&entry.AvatarURL,
			&entry.Level,
			&entry.EffectiveXP,
		); err != nil {
			return nil, fmt.Errorf("postgres_stats_repo_leaderboard_scan_failed: %w", err)
		}
		entry.Rank = len(entries) + 1
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_stats_repo_leaderboard_rows_failed: %w", err)
	}

	return entries, nil
}

// # PreferencesRepository Methods

/*
FindByUserID retrieves the serialized reading settings for a specific user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Preferences: Hydrated setting entity
  - error: apperr.NotFound or retrieval failures
*/
func (repository *PostgresPreferencesRepository) FindByUserID(context context.Context, userID string) (*Preferences, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.UserPreferences.UserID, schema.UserPreferences.ReadingMode, schema.UserPreferences.PageFit,
		schema.UserPreferences.DoublePageOn, schema.UserPreferences.ShowPageBar,
		schema.UserPreferences.PreloadPages, schema.UserPreferences.HideNSFW, schema.UserPreferences.HideLanguages,
		schema.UserPreferences.DataSaver, schema.UserPreferences.UpdatedAt,
		schema.UserPreferences.Table,
		schema.UserPreferences.UserID,
	)

	prefs := &Preferences{}
	err := repository.pool.QueryRow(context, query, userID).Scan(
		&prefs.UserID,
		&prefs.ReadingMode,
		&prefs.PageFit,
		&prefs.DoublePageOn,
		&prefs.ShowPageBar,
		&prefs.PreloadPages,
		&prefs.HideNSFW,
		&prefs.HideLanguages,
		&prefs.DataSaver,
		&prefs.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Preferences")
		}
		return nil, fmt.Errorf("postgres_preference_repo_find_failed: %w", err)
	}

	return prefs, nil
}

/*
Upsert saves a user's preferences using an ON CONFLICT UPDATE strategy.

Parameters:
  - context: context.Context
  - prefs: *Preferences

Returns:
  - error: Synchronization failures
*/
func (repository *PostgresPreferencesRepository) Upsert(context context.Context, prefs *Preferences) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			%s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s`,
		schema.UserPreferences.Table,
		schema.UserPreferences.UserID, schema.UserPreferences.ReadingMode, schema.UserPreferences.PageFit,
		schema.UserPreferences.DoublePageOn, schema.UserPreferences.ShowPageBar,
		schema.UserPreferences.PreloadPages, schema.UserPreferences.HideNSFW, schema.UserPreferences.HideLanguages,
		schema.UserPreferences.DataSaver, schema.UserPreferences.UpdatedAt,
		schema.UserPreferences.UserID,
		schema.UserPreferences.ReadingMode, schema.UserPreferences.ReadingMode,
		schema.UserPreferences.PageFit, schema.UserPreferences.PageFit,
		schema.UserPreferences.DoublePageOn, schema.UserPreferences.DoublePageOn,
		schema.UserPreferences.ShowPageBar, schema.UserPreferences.ShowPageBar,
		schema.UserPreferences.PreloadPages, schema.UserPreferences.PreloadPages,
		schema.UserPreferences.HideNSFW, schema.UserPreferences.HideNSFW,
		schema.UserPreferences.HideLanguages, schema.UserPreferences.HideLanguages,
		schema.UserPreferences.DataSaver, schema.UserPreferences.DataSaver,
		schema.UserPreferences.UpdatedAt, schema.UserPreferences.UpdatedAt,
	)

	_, err := repository.pool.Exec(context, query,
		prefs.UserID,
		prefs.ReadingMode,
		prefs.PageFit,
		prefs.DoublePageOn,
		prefs.ShowPageBar,
		prefs.PreloadPages,
		prefs.HideNSFW,
		prefs.HideLanguages,
		prefs.DataSaver,
		prefs.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_preference_repo_upsert_failed: %w", err)
	}

	return nil
}

// # SessionRepository Methods

/*
FindActiveByUserID retrieves all valid device sessions for a user.

Description: The caller's own session is detected by comparing stored token
hashes against the presented refresh-token hash inside the query, so the raw
hash list never crosses the repository boundary.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string (Empty disables the IsCurrent flag)

Returns:
  - []SessionInfo: Collection of active devices, newest first
  - error: Database retrieval failures
*/
func (repository *PostgresSessionRepository) FindActiveByUserID(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, (%s = $2) AS iscurrent
		FROM %s
		WHERE %s = $1 AND %s = FALSE AND %s > NOW()
		ORDER BY %s DESC`,
		schema.UserSession.ID, schema.UserSession.DeviceName, schema.UserSession.IPAddress,
		schema.UserSession.UserAgent, schema.UserSession.CreatedAt, schema.UserSession.ExpiresAt,
		schema.UserSession.TokenHash,
		schema.UserSession.Table,
		schema.UserSession.UserID, schema.UserSession.IsRevoked, schema.UserSession.ExpiresAt,
		schema.UserSession.CreatedAt,
	)

	rows, err := repository.pool.Query(context, query, userID, currentTokenHash)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_active_failed: %w", err)
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var sess SessionInfo
		if err := rows.Scan(
			&sess.ID,
			&sess.DeviceName,
			&sess.IPAddress,
			&sess.UserAgent,
			&sess.CreatedAt,
			&sess.ExpiresAt,
			&sess.IsCurrent,
		); err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
Revoke marks a single session as permanently revoked.

Description: Both the boolean flag and the revocation timestamp are stamped;
the flag is what session validation checks, the timestamp records when the
device lost access.

Parameters:
  - context: context.Context
  - userID: string (Security: validation of ownership)
  - sessionID: string

Returns:
  - error: apperr.NotFound when no active session matched, or update failures
*/
func (repository *PostgresSessionRepository) Revoke(context context.Context, userID, sessionID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE, %s = NOW()
		WHERE %s = $1 AND %s = $2 AND %s = FALSE`,
		schema.UserSession.Table, schema.UserSession.IsRevoked, schema.UserSession.RevokedAt,
		schema.UserSession.ID, schema.UserSession.UserID, schema.UserSession.IsRevoked,
	)

	tag, err := repository.pool.Exec(context, query, sessionID, userID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Session")
	}

	return nil
}

/*
RevokeOthers marks all sessions except the current one as revoked.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string (The spared session; empty spares none)

Returns:
  - error: Batch update failures
*/
func (repository *PostgresSessionRepository) RevokeOthers(context context.Context, userID, currentTokenHash string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE, %s = NOW()
		WHERE %s = $1 AND %s != $2 AND %s = FALSE`,
		schema.UserSession.Table, schema.UserSession.IsRevoked, schema.UserSession.RevokedAt,
		schema.UserSession.UserID, schema.UserSession.TokenHash, schema.UserSession.IsRevoked,
	)

	_, err := repository.pool.Exec(context, query, userID, currentTokenHash)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_others_failed: %w", err)
	}

	return nil
}

/*
RevokeAll terminates every session for a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Batch update failures
*/
func (repository *PostgresSessionRepository) RevokeAll(context context.Context, userID string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = TRUE, %s = NOW()
		WHERE %s = $1 AND %s = FALSE`,
		schema.UserSession.Table, schema.UserSession.IsRevoked, schema.UserSession.RevokedAt,
		schema.UserSession.UserID, schema.UserSession.IsRevoked,
	)

	_, err := repository.pool.Exec(context, query, userID)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	return nil
}
