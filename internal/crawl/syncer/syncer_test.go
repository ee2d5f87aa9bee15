// Copyright (c) 2026 MangaTrack. All rights reserved.

package syncer_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/gatekeeper"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/syncer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// # Fakes

type fakeAdapter struct {
	name     string
	chapters []adapter.Chapter
	err      error
}

func (fake *fakeAdapter) Name() string { return fake.name }

func (fake *fakeAdapter) ListChapters(_ context.Context, _ *series.SeriesSource) ([]adapter.Chapter, error) {
	return fake.chapters, fake.err
}

type fakeCatalog struct {
	source    *series.SeriesSource
	sourceErr error

	syncResult *series.SyncResult
	syncErr    error
	gotSync    []series.IncomingChapter

	failureState series.FailureState
	failures     []recordedFailure
}

type recordedFailure struct {
	sourceID  string
	permanent bool
}

func (fake *fakeCatalog) GetSource(_ context.Context, id string) (*series.SeriesSource, error) {
	if fake.sourceErr != nil {
		return nil, fake.sourceErr
	}
	return fake.source, nil
}

func (fake *fakeCatalog) SyncChapters(_ context.Context, sourceID string, incoming []series.IncomingChapter) (*series.SyncResult, error) {
	fake.gotSync = incoming
	if fake.syncErr != nil {
		return nil, fake.syncErr
	}
	return fake.syncResult, nil
}

func (fake *fakeCatalog) RecordSyncFailure(_ context.Context, sourceID string, permanent bool, _ time.Time) (series.FailureState, error) {
	fake.failures = append(fake.failures, recordedFailure{sourceID: sourceID, permanent: permanent})
	return fake.failureState, nil
}

type fakeEntries struct {
	statuses []string
}

func (fake *fakeEntries) SetSyncStatusBySource(_ context.Context, _, status string) (int64, error) {
	fake.statuses = append(fake.statuses, status)
	return 1, nil
}

type announcedChapter struct {
	seriesID  string
	tier      series.Tier
	chapterID string
	number    float64
}

type fakeAnnouncer struct {
	events []announcedChapter
}

func (fake *fakeAnnouncer) ChapterDetected(_ context.Context, seriesID string, tier series.Tier, chapterID string, number float64) error {
	fake.events = append(fake.events, announcedChapter{seriesID, tier, chapterID, number})
	return nil
}

func activeSource() *series.SeriesSource {
	return &series.SeriesSource{
		ID:           "src-1",
		SeriesID:     "ser-1",
		SourceName:   "alpha",
		ExternalID:   "ext-42",
		SourceStatus: series.SourceStatusActive,
	}
}

func newService(catalog *fakeCatalog, upstream *fakeAdapter, entries *fakeEntries, announce *fakeAnnouncer) *syncer.Service {
	return syncer.NewService(catalog, adapter.NewRegistry(upstream), entries, announce, slog.New(slog.DiscardHandler))
}

func syncJob(payload string) *queue.Job {
	return &queue.Job{
		ID:          "sync-src-1",
		Queue:       constants.QueueSyncSource,
		Payload:     []byte(payload),
		Attempts:    1,
		MaxAttempts: 5,
	}
}

// # Handler

func TestHandleSyncJob_Success(t *testing.T) {
	published := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	upstream := &fakeAdapter{name: "alpha", chapters: []adapter.Chapter{
		{SourceChapterID: "c-10", Number: 10, Title: "Ten", URL: "https://alpha.example/c/10", PublishedAt: published},
		{SourceChapterID: "c-11", Number: 11, URL: "https://alpha.example/c/11"},
	}}
	catalog := &fakeCatalog{
		source: activeSource(),
		syncResult: &series.SyncResult{
			SeriesID:       "ser-1",
			Tier:           series.TierB,
			NewChapters:    []series.NewChapter{{ChapterID: "ch-11", Number: 11}},
			LinkedExisting: 1,
			NextCheckAt:    time.Now().Add(6 * time.Hour),
		},
	}
	entries := &fakeEntries{}
	announce := &fakeAnnouncer{}

	service := newService(catalog, upstream, entries, announce)
	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1","reason":"PERIODIC"}`))
	require.NoError(t, err)

	require.Len(t, catalog.gotSync, 2)
	assert.Equal(t, "c-10", catalog.gotSync[0].SourceChapterID)
	assert.Equal(t, published, catalog.gotSync[0].DetectedAt)
	assert.Equal(t, 11.0, catalog.gotSync[1].Number)

	// Only the first-appearance chapter fans out.
	require.Len(t, announce.events, 1)
	assert.Equal(t, announcedChapter{"ser-1", series.TierB, "ch-11", 11}, announce.events[0])

	assert.Equal(t, []string{constants.SyncStatusHealthy}, entries.statuses)
	assert.Empty(t, catalog.failures)
}

func TestHandleSyncJob_MalformedPayload(t *testing.T) {
	service := newService(&fakeCatalog{source: activeSource()}, &fakeAdapter{name: "alpha"}, nil, nil)

	err := service.HandleSyncJob(context.Background(), syncJob(`{not json`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	err = service.HandleSyncJob(context.Background(), syncJob(`{}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleSyncJob_SourceGone(t *testing.T) {
	catalog := &fakeCatalog{sourceErr: apperr.NotFound("series source")}
	service := newService(catalog, &fakeAdapter{name: "alpha"}, nil, nil)

	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1"}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleSyncJob_UnknownAdapter(t *testing.T) {
	source := activeSource()
	source.SourceName = "unregistered"
	service := newService(&fakeCatalog{source: source}, &fakeAdapter{name: "alpha"}, nil, nil)

	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1"}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleSyncJob_TransientError(t *testing.T) {
	upstream := &fakeAdapter{name: "alpha", err: &adapter.UpstreamError{Source: "alpha", Status: 503}}
	catalog := &fakeCatalog{source: activeSource()}
	entries := &fakeEntries{}

	service := newService(catalog, upstream, entries, nil)
	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1"}`))

	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err), "transient errors must ride the queue retry")
	assert.Empty(t, catalog.failures, "source row untouched while attempts remain")
	assert.Empty(t, entries.statuses, "transient failures are invisible to entries")
}

func TestHandleSyncJob_TransientErrorFinalAttempt(t *testing.T) {
	upstream := &fakeAdapter{name: "alpha", err: &adapter.UpstreamError{Source: "alpha", Status: 503}}
	catalog := &fakeCatalog{source: activeSource()}

	service := newService(catalog, upstream, nil, nil)
	job := syncJob(`{"seriesSourceId":"src-1"}`)
	job.Attempts = job.MaxAttempts

	err := service.HandleSyncJob(context.Background(), job)
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	require.Len(t, catalog.failures, 1)
	assert.Equal(t, recordedFailure{sourceID: "src-1", permanent: false}, catalog.failures[0])
}

func TestHandleSyncJob_PermanentErrorDegrades(t *testing.T) {
	upstream := &fakeAdapter{name: "alpha", err: &adapter.UpstreamError{Source: "alpha", Status: 404}}
	catalog := &fakeCatalog{
		source:       activeSource(),
		failureState: series.FailureState{ConsecutiveFailures: 1},
	}
	entries := &fakeEntries{}

	service := newService(catalog, upstream, entries, nil)
	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1"}`))

	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err), "permanent upstream errors must not retry")
	require.Len(t, catalog.failures, 1)
	assert.True(t, catalog.failures[0].permanent)
	assert.Equal(t, []string{constants.SyncStatusDegraded}, entries.statuses)
}

func TestHandleSyncJob_PermanentErrorBreaks(t *testing.T) {
	upstream := &fakeAdapter{name: "alpha", err: &adapter.UpstreamError{Source: "alpha", Status: 410}}
	catalog := &fakeCatalog{
		source:       activeSource(),
		failureState: series.FailureState{ConsecutiveFailures: series.BrokenThreshold, Broken: true},
	}
	entries := &fakeEntries{}

	service := newService(catalog, upstream, entries, nil)
	err := service.HandleSyncJob(context.Background(), syncJob(`{"seriesSourceId":"src-1"}`))

	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
	assert.Equal(t, []string{constants.SyncStatusFailed}, entries.statuses)
}

// # Sweeper

type fakeDueLister struct {
	due []series.DueSource
	err error
}

func (fake *fakeDueLister) ListDueSources(_ context.Context, _ time.Time, _ int) ([]series.DueSource, error) {
	return fake.due, fake.err
}

type fakeAdmitter struct {
	allow   map[string]bool
	enqErr  map[string]error
	offered []string
}

func (fake *fakeAdmitter) EnqueueIfAllowed(_ context.Context, sourceID string, _ series.Tier, reason gatekeeper.Reason, _ map[string]any) (bool, error) {
	if reason != gatekeeper.ReasonPeriodic {
		panic("sweeper must offer with reason PERIODIC")
	}
	fake.offered = append(fake.offered, sourceID)
	if err := fake.enqErr[sourceID]; err != nil {
		return false, err
	}
	return fake.allow[sourceID], nil
}

func TestSweepOnce(t *testing.T) {
	lister := &fakeDueLister{due: []series.DueSource{
		{SourceID: "src-a", Tier: series.TierA},
		{SourceID: "src-b", Tier: series.TierB},
		{SourceID: "src-c", Tier: series.TierC},
	}}
	gate := &fakeAdmitter{
		allow:  map[string]bool{"src-a": true, "src-c": true},
		enqErr: map[string]error{"src-b": assert.AnError},
	}

	sweeper := syncer.NewSweeper(lister, gate, nil, slog.New(slog.DiscardHandler))
	enqueued, err := sweeper.SweepOnce(context.Background(), time.Now())

	require.NoError(t, err)
	assert.Equal(t, 2, enqueued)
	assert.Equal(t, []string{"src-a", "src-b", "src-c"}, gate.offered,
		"an enqueue failure must not starve the rest of the batch")
}

func TestSweepOnce_EmptyBatch(t *testing.T) {
	sweeper := syncer.NewSweeper(&fakeDueLister{}, &fakeAdmitter{}, nil, slog.New(slog.DiscardHandler))
	enqueued, err := sweeper.SweepOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, enqueued)
}

type staticLeader bool

func (leader staticLeader) IsLeader() bool { return bool(leader) }

func TestSweeper_RunRespectsLeadership(t *testing.T) {
	lister := &fakeDueLister{due: []series.DueSource{{SourceID: "src-a", Tier: series.TierB}}}
	gate := &fakeAdmitter{allow: map[string]bool{"src-a": true}}

	sweeper := syncer.NewSweeper(lister, gate, staticLeader(false), slog.New(slog.DiscardHandler))
	sweeper.SetInterval(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	err := sweeper.Run(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, gate.offered, "a follower never sweeps")
}
