// Copyright (c) 2026 MangaTrack. All rights reserved.

package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

// Leaderboard page bounds. The board is recomputed per request, so the cap
// keeps the ranking query cheap.
const (
	leaderboardDefaultLimit = 25
	leaderboardMaxLimit     = 100
)

// # Service Layer

// Service orchestrates business logic for user accounts, statistics, and
// preferences.
//
// It ensures that profile updates, preference persistence, and session
// security cleanup follow established business constraints.
type Service struct {
	accountRepository     AccountRepository
	statsRepository       StatsRepository
	preferencesRepository PreferencesRepository
	sessionRepository     SessionRepository
	logger                *slog.Logger
}

// NewService constructs a new [Service] with its repository dependencies.
func NewService(
	accountRepo AccountRepository,
	statsRepo StatsRepository,
	preferencesRepo PreferencesRepository,
	sessionRepo SessionRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		accountRepository:     accountRepo,
		statsRepository:       statsRepo,
		preferencesRepository: preferencesRepo,
		sessionRepository:     sessionRepo,
		logger:                logger,
	}
}

// # Profile Management

/*
GetProfile retrieves the full private identity of a user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *auth.User: The hydrated user profile
  - error: Not found or execution failures
*/
func (service *Service) GetProfile(context context.Context, userID string) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_profile_failed: %w", err)
	}
	return user, nil
}

/*
GetPublicProfile retrieves the discovery-safe view of any user.

Description: Strips private identity data (email, verification state) and
augments the profile with the public slice of the user's statistics.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *PublicProfile: Filtered profile
  - error: apperr.NotFound or execution failures
*/
func (service *Service) GetPublicProfile(context context.Context, userID string) (*PublicProfile, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_public_profile_failed: %w", err)
	}

	stats, err := service.statsRepository.FindByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_public_profile_stats_failed: %w", err)
	}

	return &PublicProfile{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		AvatarURL:   user.AvatarURL,
		Bio:         user.Bio,
		Website:     user.Website,
		Level:       stats.Level,
		EffectiveXP: stats.EffectiveXP,
		CreatedAt:   user.CreatedAt,
	}, nil
}

// UpdateProfileInput defines the mutable subset of user profile fields.
// Nil pointers leave the stored value untouched.
type UpdateProfileInput struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
	Website     *string
}

/*
UpdateProfile applies a partial set of changes to a user's account metadata.

Description: Fetches the existing user state, overlays the provided fields, and
synchronizes the change to persistent storage.

Parameters:
  - context: context.Context
  - userID: string
  - input: UpdateProfileInput

Returns:
  - *auth.User: The updated user profile
  - error: Update or storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (*auth.User, error) {
	user, err := service.accountRepository.FindByID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	if input.DisplayName != nil {
		user.DisplayName = *input.DisplayName
	}
	if input.AvatarURL != nil {
		user.AvatarURL = *input.AvatarURL
	}
	if input.Bio != nil {
		user.Bio = *input.Bio
	}
	if input.Website != nil {
		user.Website = *input.Website
	}

	if err := service.accountRepository.Update(context, user); err != nil {
		return nil, fmt.Errorf("account_service_update_failed: %w", err)
	}

	service.logger.Info("user_profile_updated", slog.String("user_id", userID))

	return user, nil
}

/*
DeleteAccount performs an idempotent soft-deletion of a user account.

Description: Flags the account as deleted and immediately terminates all active
security sessions to force a global sign-out. Session cleanup is best-effort:
a failed revocation must not resurrect the deletion.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Execution failures
*/
func (service *Service) DeleteAccount(context context.Context, userID string) error {
	if err := service.accountRepository.SoftDelete(context, userID); err != nil {
		return fmt.Errorf("account_service_delete_failed: %w", err)
	}

	if err := service.sessionRepository.RevokeAll(context, userID); err != nil {
		service.logger.Error("user_delete_session_sweep_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	service.logger.Warn("user_account_deleted", slog.String("user_id", userID))

	return nil
}

// # Statistics & Settings

/*
GetStats retrieves the reading statistics of the authenticated user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Stats: Counters including trust-attenuated effective XP
  - error: Not found or execution failures
*/
func (service *Service) GetStats(context context.Context, userID string) (*Stats, error) {
	stats, err := service.statsRepository.FindByUserID(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_stats_failed: %w", err)
	}
	return stats, nil
}

/*
GetSettings reads back the device-settings sync document.

Description: Returns the last-write-wins settings blob applied by the offline
replay path, along with the client timestamp of the winning write. Clients use
the timestamp to decide whether their local copy is stale.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *SettingsDocument: The raw blob and sync timestamp
  - error: Not found or execution failures
*/
func (service *Service) GetSettings(context context.Context, userID string) (*SettingsDocument, error) {
	document, err := service.accountRepository.FindSettings(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_settings_failed: %w", err)
	}
	return document, nil
}

/*
Leaderboard returns the top accounts ranked by effective XP.

Description: Effective XP is lifetime XP attenuated by the internal trust
score; the raw score itself never leaves the ranking query.

Parameters:
  - context: context.Context
  - limit: int (Requested page size; zero or negative falls back to the
    default, values above the cap are clamped)

Returns:
  - []LeaderboardEntry: Ranked rows
  - error: Execution failures
*/
func (service *Service) Leaderboard(context context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = leaderboardDefaultLimit
	}
	if limit > leaderboardMaxLimit {
		limit = leaderboardMaxLimit
	}

	entries, err := service.statsRepository.TopByEffectiveXP(context, limit)
	if err != nil {
		return nil, fmt.Errorf("account_service_leaderboard_failed: %w", err)
	}

	return entries, nil
}

// # Preferences Management

/*
GetPreferences retrieves the reader settings for a specific user ID.

Description: Attempts a database lookup. If no explicit preferences exist,
it falls back to system-wide default settings.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *Preferences: Current or default settings
  - error: Storage failures
*/
func (service *Service) GetPreferences(context context.Context, userID string) (*Preferences, error) {
	prefs, err := service.preferencesRepository.FindByUserID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return &Preferences{
				UserID:       userID,
				ReadingMode:  "ltr",
				PageFit:      "width",
				PreloadPages: 3,
				UpdatedAt:    time.Now(),
			}, nil
		}
		return nil, fmt.Errorf("account_service_get_preferences_failed: %w", err)
	}

	return prefs, nil
}

/*
UpdatePreferences persists new reader and UI settings for the user.

Parameters:
  - context: context.Context
  - prefs: *Preferences

Returns:
  - error: Storage failures
*/
func (service *Service) UpdatePreferences(context context.Context, prefs *Preferences) error {
	prefs.UpdatedAt = time.Now()
	if err := service.preferencesRepository.Upsert(context, prefs); err != nil {
		return fmt.Errorf("account_service_save_preferences_failed: %w", err)
	}

	service.logger.Info("user_preferences_updated", slog.String("user_id", prefs.UserID))

	return nil
}

// # Session Security

/*
ListSessions provides a list of all active device sessions for the user.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string (Hash of the caller's refresh token, used to flag
    the current device; empty when the caller presented no refresh cookie)

Returns:
  - []SessionInfo: List of active devices
  - error: Retrieval failures
*/
func (service *Service) ListSessions(context context.Context, userID, currentTokenHash string) ([]SessionInfo, error) {
	sessions, err := service.sessionRepository.FindActiveByUserID(context, userID, currentTokenHash)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_sessions_failed: %w", err)
	}

	return sessions, nil
}

/*
RevokeSession terminates a specific user session by its ID.

Parameters:
  - context: context.Context
  - userID: string
  - sessionID: string

Returns:
  - error: apperr.NotFound when the session does not exist, is already
    revoked, or belongs to another user; otherwise revocation failures
*/
func (service *Service) RevokeSession(context context.Context, userID, sessionID string) error {
	if err := service.sessionRepository.Revoke(context, userID, sessionID); err != nil {
		if apperr.IsNotFound(err) {
			return err
		}
		return fmt.Errorf("account_service_revoke_session_failed: %w", err)
	}

	service.logger.Info("user_session_revoked",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)

	return nil
}

/*
RevokeOtherSessions terminates all sessions except for the current active one.

Parameters:
  - context: context.Context
  - userID: string
  - currentTokenHash: string (The session to spare; empty revokes everything)

Returns:
  - error: Revocation failures
*/
func (service *Service) RevokeOtherSessions(context context.Context, userID, currentTokenHash string) error {
	if err := service.sessionRepository.RevokeOthers(context, userID, currentTokenHash); err != nil {
		return fmt.Errorf("account_service_revoke_others_failed: %w", err)
	}

	service.logger.Info("user_other_sessions_revoked", slog.String("user_id", userID))

	return nil
}
