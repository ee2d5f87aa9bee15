// Copyright (c) 2026 MangaTrack. All rights reserved.

package reconcile_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/outbox"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/reconcile"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
)

const (
	userID    = "018f3a70-aaaa-7aaa-8aaa-000000000001"
	otherUser = "018f3a70-aaaa-7aaa-8aaa-000000000002"
	entryA    = "018f3a70-bbbb-7bbb-8bbb-00000000000a"
	entryB    = "018f3a70-bbbb-7bbb-8bbb-00000000000b"
	entryC    = "018f3a70-bbbb-7bbb-8bbb-00000000000c"
	seriesA   = "018f3a70-cccc-7ccc-8ccc-00000000000a"
)

// # Fakes

type fakeEntries struct {
	entries     map[string]*entry.Entry
	upserts     []*entry.Entry
	statusCalls []string
	deleted     []string
	deleteErr   error
}

func (fake *fakeEntries) GetByID(_ context.Context, owner, entryID string, _ bool) (*entry.Entry, error) {
	e, ok := fake.entries[entryID]
	if !ok || e.UserID != owner {
		return nil, apperr.NotFound("Library entry")
	}
	return e, nil
}

func (fake *fakeEntries) UpdateStatus(_ context.Context, owner, entryID, status string) (*entry.Entry, error) {
	e, ok := fake.entries[entryID]
	if !ok || e.UserID != owner {
		return nil, apperr.NotFound("Library entry")
	}
	e.Status = status
	fake.statusCalls = append(fake.statusCalls, entryID+"="+status)
	return e, nil
}

func (fake *fakeEntries) SoftDelete(_ context.Context, _, entryID string) error {
	fake.deleted = append(fake.deleted, entryID)
	return fake.deleteErr
}

func (fake *fakeEntries) UpsertByUserAndSeries(_ context.Context, entity *entry.Entry) (bool, error) {
	fake.upserts = append(fake.upserts, entity)
	return true, nil
}

type fakeProgress struct {
	inputs []progress.MarkInput
	err    error
}

func (fake *fakeProgress) MarkProgress(_ context.Context, input progress.MarkInput) (*progress.MarkResult, error) {
	fake.inputs = append(fake.inputs, input)
	if fake.err != nil {
		return nil, fake.err
	}
	return &progress.MarkResult{}, nil
}

type fakeSettings struct {
	users  []string
	blobs  []string
	stamps []time.Time
}

func (fake *fakeSettings) ApplySettings(_ context.Context, owner string, settings []byte, stamp time.Time) error {
	fake.users = append(fake.users, owner)
	fake.blobs = append(fake.blobs, string(settings))
	fake.stamps = append(fake.stamps, stamp)
	return nil
}

// # Fixtures

func resolvedEntry(id, owner string) *entry.Entry {
	seriesID := seriesA
	return &entry.Entry{
		ID:              id,
		UserID:          owner,
		SeriesID:        &seriesID,
		Title:           "Tower of Dawn",
		SourceURL:       "https://example.org/series/9",
		SourceName:      "example",
		Status:          entry.StatusReading,
		LastReadChapter: 50,
	}
}

func newService(entries *fakeEntries, engine *fakeProgress, settings *fakeSettings) *reconcile.Service {
	if entries.entries == nil {
		entries.entries = map[string]*entry.Entry{}
	}
	return reconcile.NewService(entries, engine, settings, slog.New(slog.DiscardHandler))
}

func mustJSON(t *testing.T, payload any) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(payload)
	require.NoError(t, err)
	return encoded
}

func replayAction(t *testing.T, actionType string, payload any, timestamp int64) outbox.Action {
	t.Helper()
	action, err := outbox.NewAction(actionType, payload, "device-1")
	require.NoError(t, err)
	action.Timestamp = timestamp
	return action
}

// # Ordering

func TestReplay_AppliesInClientTimestampOrder(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{
		entryA: resolvedEntry(entryA, userID),
		entryB: resolvedEntry(entryB, userID),
		entryC: resolvedEntry(entryC, userID),
	}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	late := replayAction(t, outbox.TypeLibraryDelete, map[string]any{"entryId": entryA}, 300)
	early := replayAction(t, outbox.TypeLibraryDelete, map[string]any{"entryId": entryB}, 100)
	middle := replayAction(t, outbox.TypeLibraryDelete, map[string]any{"entryId": entryC}, 200)

	results := service.Replay(context.Background(), userID, []outbox.Action{late, early, middle})

	assert.Equal(t, []string{entryB, entryC, entryA}, entries.deleted)
	require.Len(t, results, 3)
	assert.Equal(t, early.ID, results[0].ID)
	assert.Equal(t, middle.ID, results[1].ID)
	assert.Equal(t, late.ID, results[2].ID)
}

func TestReplay_TimestampTiesBreakOnActionID(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{
		entryA: resolvedEntry(entryA, userID),
		entryB: resolvedEntry(entryB, userID),
	}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	second := outbox.Action{ID: "bbbb", Type: outbox.TypeLibraryDelete, Payload: mustJSON(t, map[string]any{"entryId": entryA}), Timestamp: 100, DeviceID: "d"}
	first := outbox.Action{ID: "aaaa", Type: outbox.TypeLibraryDelete, Payload: mustJSON(t, map[string]any{"entryId": entryB}), Timestamp: 100, DeviceID: "d"}

	service.Replay(context.Background(), userID, []outbox.Action{second, first})
	assert.Equal(t, []string{entryB, entryA}, entries.deleted)
}

// # Chapter Reads

func TestReplay_ChapterRead_RunsProgressEngine(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: resolvedEntry(entryA, userID)}}
	engine := &fakeProgress{}
	service := newService(entries, engine, &fakeSettings{})

	action := replayAction(t, outbox.TypeChapterRead, map[string]any{
		"entryId":       entryA,
		"chapterNumber": 42,
		"sourceId":      seriesA,
	}, 1700000000000)

	results := service.Replay(context.Background(), userID, []outbox.Action{action})
	require.Len(t, results, 1)
	assert.Equal(t, outbox.StatusSuccess, results[0].Status)

	require.Len(t, engine.inputs, 1)
	input := engine.inputs[0]
	assert.Equal(t, userID, input.UserID)
	assert.Equal(t, entryA, input.EntryID)
	assert.Equal(t, float64(42), input.ChapterNumber)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), input.Timestamp)
	assert.Equal(t, "device-1", input.DeviceID)
	assert.True(t, input.Now.IsZero(), "server clock is the store's call")
}

func TestReplay_ChapterRead_UnresolvedEntryIsRetryable(t *testing.T) {
	unresolved := resolvedEntry(entryA, userID)
	unresolved.SeriesID = nil
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: unresolved}}
	engine := &fakeProgress{}
	service := newService(entries, engine, &fakeSettings{})

	action := replayAction(t, outbox.TypeChapterRead, map[string]any{"entryId": entryA, "chapterNumber": 3}, 100)
	results := service.Replay(context.Background(), userID, []outbox.Action{action})

	assert.Equal(t, outbox.StatusRetryable, results[0].Status)
	assert.Empty(t, engine.inputs)
}

func TestReplay_ChapterRead_ForeignEntryIsPermanent(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: resolvedEntry(entryA, otherUser)}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	action := replayAction(t, outbox.TypeChapterRead, map[string]any{"entryId": entryA, "chapterNumber": 3}, 100)
	results := service.Replay(context.Background(), userID, []outbox.Action{action})

	assert.Equal(t, outbox.StatusPermanent, results[0].Status)
}

func TestReplay_ChapterRead_InfraFailureIsRetryable(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: resolvedEntry(entryA, userID)}}
	engine := &fakeProgress{err: assert.AnError}
	service := newService(entries, engine, &fakeSettings{})

	action := replayAction(t, outbox.TypeChapterRead, map[string]any{"entryId": entryA, "chapterNumber": 3}, 100)
	results := service.Replay(context.Background(), userID, []outbox.Action{action})

	assert.Equal(t, outbox.StatusRetryable, results[0].Status)
}

// # Library Adds

func TestReplay_LibraryAdd_BindsKnownSeries(t *testing.T) {
	entries := &fakeEntries{}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	action := replayAction(t, outbox.TypeLibraryAdd, map[string]any{
		"seriesId":   seriesA,
		"title":      "Tower of Dawn",
		"sourceUrl":  "https://Example.ORG/series/9/?utm_source=share",
		"sourceName": "example",
	}, 100)

	results := service.Replay(context.Background(), userID, []outbox.Action{action})
	assert.Equal(t, outbox.StatusSuccess, results[0].Status)

	require.Len(t, entries.upserts, 1)
	created := entries.upserts[0]
	assert.Equal(t, userID, created.UserID)
	require.NotNil(t, created.SeriesID)
	assert.Equal(t, seriesA, *created.SeriesID)
	assert.Equal(t, "https://example.org/series/9", created.SourceURL)
	assert.Equal(t, entry.StatusPlanning, created.Status)
	assert.Equal(t, constants.MetadataStatusEnriched, created.MetadataStatus)
}

func TestReplay_LibraryAdd_MissingSeriesIsPermanent(t *testing.T) {
	entries := &fakeEntries{}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	action := replayAction(t, outbox.TypeLibraryAdd, map[string]any{
		"title":      "Tower of Dawn",
		"sourceUrl":  "https://example.org/series/9",
		"sourceName": "example",
	}, 100)

	results := service.Replay(context.Background(), userID, []outbox.Action{action})
	assert.Equal(t, outbox.StatusPermanent, results[0].Status)
	assert.Empty(t, entries.upserts)
}

// # Library Updates

func TestReplay_LibraryUpdate_CompletedStaysSticky(t *testing.T) {
	completed := resolvedEntry(entryA, userID)
	completed.Status = entry.StatusCompleted
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: completed}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	stale := replayAction(t, outbox.TypeLibraryUpdate, map[string]any{
		"entryId":         entryA,
		"status":          entry.StatusReading,
		"lastReadChapter": 50,
	}, 100)

	results := service.Replay(context.Background(), userID, []outbox.Action{stale})
	assert.Equal(t, outbox.StatusSuccess, results[0].Status, "stale downgrade settles as a no-op")
	assert.Empty(t, entries.statusCalls)
	assert.Equal(t, entry.StatusCompleted, completed.Status)
}

func TestReplay_LibraryUpdate_DowngradeWithProgressApplies(t *testing.T) {
	completed := resolvedEntry(entryA, userID)
	completed.Status = entry.StatusCompleted
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: completed}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	advance := replayAction(t, outbox.TypeLibraryUpdate, map[string]any{
		"entryId":         entryA,
		"status":          entry.StatusReading,
		"lastReadChapter": 51,
	}, 100)

	results := service.Replay(context.Background(), userID, []outbox.Action{advance})
	assert.Equal(t, outbox.StatusSuccess, results[0].Status)
	assert.Equal(t, []string{entryA + "=" + entry.StatusReading}, entries.statusCalls)
}

func TestReplay_LibraryUpdate_SameStatusIsNoOp(t *testing.T) {
	entries := &fakeEntries{entries: map[string]*entry.Entry{entryA: resolvedEntry(entryA, userID)}}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	repeat := replayAction(t, outbox.TypeLibraryUpdate, map[string]any{
		"entryId": entryA,
		"status":  entry.StatusReading,
	}, 100)

	results := service.Replay(context.Background(), userID, []outbox.Action{repeat})
	assert.Equal(t, outbox.StatusSuccess, results[0].Status)
	assert.Empty(t, entries.statusCalls)
}

// # Deletes, Settings, Garbage

func TestReplay_LibraryDelete_MissingEntryIsSuccess(t *testing.T) {
	entries := &fakeEntries{deleteErr: apperr.NotFound("Library entry")}
	service := newService(entries, &fakeProgress{}, &fakeSettings{})

	action := replayAction(t, outbox.TypeLibraryDelete, map[string]any{"entryId": entryA}, 100)
	results := service.Replay(context.Background(), userID, []outbox.Action{action})

	assert.Equal(t, outbox.StatusSuccess, results[0].Status)
}

func TestReplay_SettingUpdate_CarriesClientStamp(t *testing.T) {
	settings := &fakeSettings{}
	service := newService(&fakeEntries{}, &fakeProgress{}, settings)

	action := replayAction(t, outbox.TypeSettingUpdate, map[string]any{
		"settings": map[string]any{"theme": "dark"},
	}, 1700000000000)

	results := service.Replay(context.Background(), userID, []outbox.Action{action})
	assert.Equal(t, outbox.StatusSuccess, results[0].Status)

	require.Len(t, settings.blobs, 1)
	assert.Equal(t, []string{userID}, settings.users)
	assert.JSONEq(t, `{"theme":"dark"}`, settings.blobs[0])
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), settings.stamps[0])
}

func TestReplay_UnknownActionTypeIsPermanent(t *testing.T) {
	service := newService(&fakeEntries{}, &fakeProgress{}, &fakeSettings{})

	bogus := outbox.Action{ID: "x", Type: "CHAPTER_UNREAD", Payload: mustJSON(t, map[string]any{}), Timestamp: 100}
	results := service.Replay(context.Background(), userID, []outbox.Action{bogus})

	assert.Equal(t, outbox.StatusPermanent, results[0].Status)
}

func TestReplay_MalformedPayloadIsPermanent(t *testing.T) {
	service := newService(&fakeEntries{}, &fakeProgress{}, &fakeSettings{})

	broken := outbox.Action{ID: "x", Type: outbox.TypeChapterRead, Payload: json.RawMessage("{"), Timestamp: 100}
	results := service.Replay(context.Background(), userID, []outbox.Action{broken})

	assert.Equal(t, outbox.StatusPermanent, results[0].Status)
}
