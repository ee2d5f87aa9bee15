// Copyright (c) 2026 MangaTrack. All rights reserved.

package account_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/account"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

// # Test Doubles

type fakeAccountRepo struct {
	users    map[string]*auth.User
	settings map[string]*account.SettingsDocument
	updated  []*auth.User
	deleted  []string
	findErr  error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{
		users:    make(map[string]*auth.User),
		settings: make(map[string]*account.SettingsDocument),
	}
}

func (fake *fakeAccountRepo) FindByID(_ context.Context, id string) (*auth.User, error) {
	if fake.findErr != nil {
		return nil, fake.findErr
	}
	user, ok := fake.users[id]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	copied := *user
	return &copied, nil
}

func (fake *fakeAccountRepo) Update(_ context.Context, user *auth.User) error {
	fake.updated = append(fake.updated, user)
	fake.users[user.ID] = user
	return nil
}

func (fake *fakeAccountRepo) SoftDelete(_ context.Context, id string) error {
	fake.deleted = append(fake.deleted, id)
	return nil
}

func (fake *fakeAccountRepo) FindSettings(_ context.Context, userID string) (*account.SettingsDocument, error) {
	document, ok := fake.settings[userID]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return document, nil
}

type fakeStatsRepo struct {
	stats     map[string]*account.Stats
	board     []account.LeaderboardEntry
	lastLimit int
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{stats: make(map[string]*account.Stats)}
}

func (fake *fakeStatsRepo) FindByUserID(_ context.Context, userID string) (*account.Stats, error) {
	stats, ok := fake.stats[userID]
	if !ok {
		return nil, apperr.NotFound("Account")
	}
	return stats, nil
}

func (fake *fakeStatsRepo) TopByEffectiveXP(_ context.Context, limit int) ([]account.LeaderboardEntry, error) {
	fake.lastLimit = limit
	if limit < len(fake.board) {
		return fake.board[:limit], nil
	}
	return fake.board, nil
}

type fakePrefsRepo struct {
	prefs   map[string]*account.Preferences
	findErr error
}

func newFakePrefsRepo() *fakePrefsRepo {
	return &fakePrefsRepo{prefs: make(map[string]*account.Preferences)}
}

func (fake *fakePrefsRepo) FindByUserID(_ context.Context, userID string) (*account.Preferences, error) {
	if fake.findErr != nil {
		return nil, fake.findErr
	}
	prefs, ok := fake.prefs[userID]
	if !ok {
		return nil, apperr.NotFound("Preferences")
	}
	return prefs, nil
}

func (fake *fakePrefsRepo) Upsert(_ context.Context, prefs *account.Preferences) error {
	fake.prefs[prefs.UserID] = prefs
	return nil
}

type fakeSessionRepo struct {
	sessions       []account.SessionInfo
	listHash       string
	revoked        []string
	revokeErr      error
	othersHash     string
	revokeAllUsers []string
	revokeAllErr   error
}

func (fake *fakeSessionRepo) FindActiveByUserID(_ context.Context, _, currentTokenHash string) ([]account.SessionInfo, error) {
	fake.listHash = currentTokenHash
	marked := make([]account.SessionInfo, len(fake.sessions))
	copy(marked, fake.sessions)
	return marked, nil
}

func (fake *fakeSessionRepo) Revoke(_ context.Context, userID, sessionID string) error {
	if fake.revokeErr != nil {
		return fake.revokeErr
	}
	fake.revoked = append(fake.revoked, sessionID)
	return nil
}

func (fake *fakeSessionRepo) RevokeOthers(_ context.Context, _, currentTokenHash string) error {
	fake.othersHash = currentTokenHash
	return nil
}

func (fake *fakeSessionRepo) RevokeAll(_ context.Context, userID string) error {
	fake.revokeAllUsers = append(fake.revokeAllUsers, userID)
	return fake.revokeAllErr
}

// # Harness

type serviceDeps struct {
	accounts *fakeAccountRepo
	stats    *fakeStatsRepo
	prefs    *fakePrefsRepo
	sessions *fakeSessionRepo
}

func newService(t *testing.T) (*account.Service, *serviceDeps) {
	t.Helper()

	deps := &serviceDeps{
		accounts: newFakeAccountRepo(),
		stats:    newFakeStatsRepo(),
		prefs:    newFakePrefsRepo(),
		sessions: &fakeSessionRepo{},
	}
	service := account.NewService(
		deps.accounts,
		deps.stats,
		deps.prefs,
		deps.sessions,
		slog.New(slog.DiscardHandler),
	)
	return service, deps
}

const testUserID = "018f3a70-aaaa-7aaa-8aaa-000000000001"

func seedUser(deps *serviceDeps) *auth.User {
	user := &auth.User{
		ID:          testUserID,
		Username:    "rin",
		Email:       "rin@example.org",
		DisplayName: "Rin",
		Bio:         "Seinen completionist",
		Website:     "https://rin.example.org",
		CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	deps.accounts.users[user.ID] = user
	deps.stats.stats[user.ID] = &account.Stats{
		UserID:       user.ID,
		XP:           1000,
		EffectiveXP:  800,
		SeasonXP:     120,
		Level:        7,
		ChaptersRead: 342,
		StreakDays:   5,
	}
	return user
}

// # Profile

func TestGetPublicProfile_StripsPrivateIdentity(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	profile, err := service.GetPublicProfile(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, "rin", profile.Username)
	assert.Equal(t, "Rin", profile.DisplayName)
	assert.Equal(t, "https://rin.example.org", profile.Website)
	assert.Equal(t, 7, profile.Level)
	assert.Equal(t, int64(800), profile.EffectiveXP)
}

func TestGetPublicProfile_UnknownUser(t *testing.T) {
	service, _ := newService(t)

	_, err := service.GetPublicProfile(context.Background(), "018f3a70-bbbb-7bbb-8bbb-000000000002")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdateProfile_AppliesOnlyProvidedFields(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	bio := "Now reading webtoons"
	updated, err := service.UpdateProfile(context.Background(), testUserID, account.UpdateProfileInput{
		Bio: &bio,
	})
	require.NoError(t, err)

	assert.Equal(t, "Now reading webtoons", updated.Bio)
	// Untouched fields keep their stored values.
	assert.Equal(t, "Rin", updated.DisplayName)
	assert.Equal(t, "https://rin.example.org", updated.Website)

	require.Len(t, deps.accounts.updated, 1)
	assert.Equal(t, "Now reading webtoons", deps.accounts.updated[0].Bio)
}

func TestUpdateProfile_CanClearFields(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	empty := ""
	updated, err := service.UpdateProfile(context.Background(), testUserID, account.UpdateProfileInput{
		Website: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Website)
	assert.Equal(t, "Seinen completionist", updated.Bio)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	service, _ := newService(t)

	name := "Ghost"
	_, err := service.UpdateProfile(context.Background(), testUserID, account.UpdateProfileInput{
		DisplayName: &name,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteAccount_RevokesEverySession(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	err := service.DeleteAccount(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, []string{testUserID}, deps.accounts.deleted)
	assert.Equal(t, []string{testUserID}, deps.sessions.revokeAllUsers)
}

func TestDeleteAccount_SessionSweepFailureDoesNotResurrect(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)
	deps.sessions.revokeAllErr = errors.New("connection reset")

	// The deletion itself stands even when the sweep fails.
	err := service.DeleteAccount(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, []string{testUserID}, deps.accounts.deleted)
}

// # Statistics & Settings

func TestGetStats(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	stats, err := service.GetStats(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), stats.XP)
	assert.Equal(t, int64(800), stats.EffectiveXP)
	assert.Equal(t, int64(342), stats.ChaptersRead)
	assert.Equal(t, 5, stats.StreakDays)
}

func TestGetSettings_ReturnsSyncDocument(t *testing.T) {
	service, deps := newService(t)
	seedUser(deps)

	syncedAt := time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC)
	deps.accounts.settings[testUserID] = &account.SettingsDocument{
		Settings:  []byte(`{"theme":"dark"}`),
		UpdatedAt: &syncedAt,
	}

	document, err := service.GetSettings(context.Background(), testUserID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(document.Settings))
	require.NotNil(t, document.UpdatedAt)
	assert.True(t, document.UpdatedAt.Equal(syncedAt))
}

func TestLeaderboard_ClampsLimit(t *testing.T) {
	service, deps := newService(t)

	_, err := service.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 25, deps.stats.lastLimit)

	_, err = service.Leaderboard(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, deps.stats.lastLimit)

	_, err = service.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, deps.stats.lastLimit)
}

func TestLeaderboard_ReturnsRankedRows(t *testing.T) {
	service, deps := newService(t)
	deps.stats.board = []account.LeaderboardEntry{
		{Rank: 1, Username: "rin", EffectiveXP: 800},
		{Rank: 2, Username: "kenji", EffectiveXP: 650},
	}

	entries, err := service.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rin", entries[0].Username)
	assert.Greater(t, entries[0].EffectiveXP, entries[1].EffectiveXP)
}

// # Preferences

func TestGetPreferences_DefaultsWhenUnset(t *testing.T) {
	service, _ := newService(t)

	prefs, err := service.GetPreferences(context.Background(), testUserID)
	require.NoError(t, err)

	assert.Equal(t, "ltr", prefs.ReadingMode)
	assert.Equal(t, "width", prefs.PageFit)
	assert.Equal(t, 3, prefs.PreloadPages)
}

func TestGetPreferences_SurfacesStorageErrors(t *testing.T) {
	service, deps := newService(t)
	deps.prefs.findErr = errors.New("connection refused")

	_, err := service.GetPreferences(context.Background(), testUserID)
	require.Error(t, err)
	assert.False(t, apperr.IsNotFound(err))
}

func TestUpdatePreferences_StampsUpdatedAt(t *testing.T) {
	service, deps := newService(t)

	prefs := &account.Preferences{
		UserID:      testUserID,
		ReadingMode: "webtoon",
		PageFit:     "width",
	}
	err := service.UpdatePreferences(context.Background(), prefs)
	require.NoError(t, err)

	stored := deps.prefs.prefs[testUserID]
	require.NotNil(t, stored)
	assert.Equal(t, "webtoon", stored.ReadingMode)
	assert.False(t, stored.UpdatedAt.IsZero())
}

// # Sessions

func TestListSessions_PassesCurrentTokenHash(t *testing.T) {
	service, deps := newService(t)
	deps.sessions.sessions = []account.SessionInfo{
		{ID: "s1", DeviceName: "Chrome on Windows", IsCurrent: true},
		{ID: "s2", DeviceName: "Android App"},
	}

	sessions, err := service.ListSessions(context.Background(), testUserID, "hash-of-current")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "hash-of-current", deps.sessions.listHash)
	assert.True(t, sessions[0].IsCurrent)
}

func TestRevokeSession_NotFoundPassesThrough(t *testing.T) {
	service, deps := newService(t)
	deps.sessions.revokeErr = apperr.NotFound("Session")

	err := service.RevokeSession(context.Background(), testUserID, "missing-session")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRevokeOtherSessions_SparesCurrentHash(t *testing.T) {
	service, deps := newService(t)

	err := service.RevokeOtherSessions(context.Background(), testUserID, "hash-of-current")
	require.NoError(t, err)
	assert.Equal(t, "hash-of-current", deps.sessions.othersHash)
}
