// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package account handles user profile management, preferences, and security settings.

It provides functionalities for users to view and update their private identity data,
configure their reading experience, inspect their reading statistics, and manage
their active device sessions.

# Architecture

  - Entities: Preferences, SessionInfo, Stats, PublicProfile (DTOs).
  - Domain: This package depends on the auth package for the User entity and on
    the progress package for the effective-XP attenuation rule.
  - Security: Provides session transparency and revocation mechanisms. Public
    surfaces (profile, leaderboard) never expose email, password material, or
    the raw trust score.
*/
package account

import (
	"context"
	"encoding/json"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

// # Domain Entities

// Preferences represents the customizable reader and UI settings for a user.
type Preferences struct {
	UserID        string    `json:"user_id"`
	ReadingMode   string    `json:"reading_mode"` // 'ltr', 'rtl', 'vertical', 'webtoon'
	PageFit       string    `json:"page_fit"`     // 'width', 'height', 'original', 'stretch'
	DoublePageOn  bool      `json:"double_page_on"`
	ShowPageBar   bool      `json:"show_page_bar"`
	PreloadPages  int       `json:"preload_pages"`  // Performance setting: 1-10 pages
	DataSaver     bool      `json:"data_saver"`     // If true, request optimized image assets
	HideNSFW      bool      `json:"hide_nsfw"`      // Global content filter
	HideLanguages []string  `json:"hide_languages"` // List of BCP-47 language codes to filter out
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionInfo provides a safety-mapped view of an active user session.
// It omits sensitive token hashes for transport.
type SessionInfo struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name"` // e.g. "Chrome on Windows"
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	IsCurrent  bool      `json:"is_current"` // True if this session belongs to the current request
}

// Stats is the reading-statistics view of an account.
//
// EffectiveXP is the lifetime XP attenuated by the internal trust score and is
// the only trust-derived value that leaves the system. The raw trust score is
// deliberately absent: exposing it would let abusers calibrate against the
// anti-abuse heuristics.
type Stats struct {
	UserID        string     `json:"user_id"`
	XP            int64      `json:"xp"`
	EffectiveXP   int64      `json:"effective_xp"`
	SeasonXP      int64      `json:"season_xp"`
	CurrentSeason string     `json:"current_season"`
	Level         int        `json:"level"`
	ChaptersRead  int64      `json:"chapters_read"`
	StreakDays    int        `json:"streak_days"`
	LastReadAt    *time.Time `json:"last_read_at,omitempty"`
}

// PublicProfile is the discovery-safe subset of an account. It is what any
// authenticated or anonymous caller may see about another user.
type PublicProfile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Website     string    `json:"website,omitempty"`
	Level       int       `json:"level"`
	EffectiveXP int64     `json:"effective_xp"`
	CreatedAt   time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the effective-XP ranking.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Level       int    `json:"level"`
	EffectiveXP int64  `json:"effective_xp"`
}

// SettingsDocument is the device-settings sync blob attached to an account.
//
// The blob is written exclusively through the offline replay path with
// last-write-wins semantics; this package only reads it back. UpdatedAt is nil
// until the first device sync lands.
type SettingsDocument struct {
	Settings  json.RawMessage `json:"settings"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// # Repository Contracts

// AccountRepository defines the persistence contract for user accounts.
type AccountRepository interface {
	/*
		FindByID retrieves a user record by their unique ID.

		Parameters:
		  - context: context.Context
		  - id: string (UUID)

		Returns:
		  - *User: Loaded account entity
		  - error: apperr.NotFound or storage failures
	*/
	FindByID(context context.Context, id string) (*auth.User, error)

	/*
		Update modifies the mutable profile fields of an existing user.

		Parameters:
		  - context: context.Context
		  - user: *User (Hydrated entity with changes)

		Returns:
		  - error: Storage or constraint failures
	*/
	Update(context context.Context, user *auth.User) error

	/*
		SoftDelete flags an account as logically deleted. Already-deleted
		accounts are left untouched so the original deletion time survives.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: Execution failures
	*/
	SoftDelete(context context.Context, id string) error

	/*
		FindSettings reads the device-settings sync document.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *SettingsDocument: The raw settings blob and its sync timestamp
		  - error: apperr.NotFound or storage failures
	*/
	FindSettings(context context.Context, userID string) (*SettingsDocument, error)
}

// StatsRepository defines the read contract for gamification counters.
type StatsRepository interface {
	/*
		FindByUserID loads the reading statistics of a single account.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *Stats: Counters with effective XP already computed
		  - error: apperr.NotFound or storage failures
	*/
	FindByUserID(context context.Context, userID string) (*Stats, error)

	/*
		TopByEffectiveXP returns the highest-ranked accounts ordered by
		trust-attenuated XP. Soft-deleted accounts never appear.

		Parameters:
		  - context: context.Context
		  - limit: int (Page size, already clamped by the caller)

		Returns:
		  - []LeaderboardEntry: Ranked rows, rank starting at 1
		  - error: Storage failures
	*/
	TopByEffectiveXP(context context.Context, limit int) ([]LeaderboardEntry, error)
}

// PreferencesRepository defines the persistence contract for reader settings.
type PreferencesRepository interface {
	/*
		FindByUserID retrieves reader preferences for a specific user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - *Preferences: Hydrated settings
		  - error: apperr.NotFound if not present
	*/
	FindByUserID(context context.Context, userID string) (*Preferences, error)

	/*
		Upsert saves or updates preferences for a user using an idempotent strategy.

		Parameters:
		  - context: context.Context
		  - prefs: *Preferences

		Returns:
		  - error: Storage failure errors
	*/
	Upsert(context context.Context, prefs *Preferences) error
}

// SessionRepository defines the visibility and revocation contract for user
// sessions.
//
// The current session is identified by its refresh-token hash rather than a
// session ID: access tokens are stateless and do not carry a session
// identifier, so the only proof of "this device" a request can present is the
// refresh cookie.
type SessionRepository interface {
	/*
		FindActiveByUserID lists all valid, non-expired sessions for a user.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentTokenHash: string (Hash of the caller's refresh token; rows
		    matching it are flagged IsCurrent. Empty disables the flag.)

		Returns:
		  - []SessionInfo: List of active devices, newest first
		  - error: Retrieval errors
	*/
	FindActiveByUserID(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error)

	/*
		Revoke marks a specific session as revoked.

		Parameters:
		  - context: context.Context
		  - userID: string (Security constraint: owner validation)
		  - sessionID: string

		Returns:
		  - error: apperr.NotFound when no active session matched, or
		    revocation failures
	*/
	Revoke(context context.Context, userID, sessionID string) error

	/*
		RevokeOthers revokes all active sessions except the one presenting
		the given refresh-token hash. An empty hash revokes everything.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - currentTokenHash: string (The spared session)

		Returns:
		  - error: Revocation failures
	*/
	RevokeOthers(context context.Context, userID, currentTokenHash string) error

	/*
		RevokeAll terminates every session for a user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Revocation failures
	*/
	RevokeAll(context context.Context, userID string) error
}
