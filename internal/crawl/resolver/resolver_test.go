// Copyright (c) 2026 MangaTrack. All rights reserved.

package resolver_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/gatekeeper"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// # Fakes

type fakeEntries struct {
	entry    *resolver.PendingEntry
	entryErr error

	bound  []string // entryID, seriesID, sourceID triples flattened
	parked []string // entryID, status pairs flattened
}

func (fake *fakeEntries) GetForResolution(_ context.Context, entryID string) (*resolver.PendingEntry, error) {
	if fake.entryErr != nil {
		return nil, fake.entryErr
	}
	return fake.entry, nil
}

func (fake *fakeEntries) BindResolution(_ context.Context, entryID, seriesID, sourceID string) error {
	fake.bound = append(fake.bound, entryID, seriesID, sourceID)
	return nil
}

func (fake *fakeEntries) MarkUnresolvable(_ context.Context, entryID, status string) error {
	fake.parked = append(fake.parked, entryID, status)
	return nil
}

type fakeCatalog struct {
	existing  *series.SeriesSource
	createdSe []*series.Series
	createdSo []*series.SeriesSource
	conflict  bool
}

func (fake *fakeCatalog) FindSourceByURL(_ context.Context, _ string) (*series.SeriesSource, error) {
	if fake.existing == nil {
		return nil, apperr.NotFound("series source")
	}
	return fake.existing, nil
}

func (fake *fakeCatalog) CreateSeries(_ context.Context, entity *series.Series) error {
	fake.createdSe = append(fake.createdSe, entity)
	return nil
}

func (fake *fakeCatalog) CreateSource(_ context.Context, source *series.SeriesSource) error {
	if fake.conflict {
		// Simulate the partial-unique race: someone else won the insert.
		fake.conflict = false
		fake.existing = &series.SeriesSource{ID: "src-race", SeriesID: "ser-race"}
		return apperr.Conflict("duplicate source")
	}
	fake.createdSo = append(fake.createdSo, source)
	return nil
}

type fakeGate struct {
	offered []gatekeeper.Reason
}

func (fake *fakeGate) EnqueueIfAllowed(_ context.Context, _ string, _ series.Tier, reason gatekeeper.Reason, _ map[string]any) (bool, error) {
	fake.offered = append(fake.offered, reason)
	return true, nil
}

func pendingEntry() *resolver.PendingEntry {
	return &resolver.PendingEntry{
		ID:             "ent-1",
		UserID:         "usr-1",
		Title:          "Solo Farming",
		SourceURL:      "https://Alpha.example/series/ext-99/?utm_source=share",
		SourceName:     "alpha",
		MetadataStatus: constants.MetadataStatusPending,
	}
}

func resolutionJob(payload string) *queue.Job {
	return &queue.Job{
		ID:          resolver.JobID("ent-1"),
		Queue:       constants.QueueSeriesResolution,
		Payload:     []byte(payload),
		Attempts:    1,
		MaxAttempts: 5,
	}
}

func newService(entries *fakeEntries, catalog *fakeCatalog, gate *fakeGate) *resolver.Service {
	registry := adapter.NewRegistry(adapter.NewFeedAdapter("alpha", "https://alpha.example", 0))
	return resolver.NewService(entries, catalog, registry, gate, slog.New(slog.DiscardHandler))
}

// # Tests

func TestJobID(t *testing.T) {
	assert.Equal(t, "retry-resolution-ent-1", resolver.JobID("ent-1"))
}

func TestHandleResolutionJob_ExistingSource(t *testing.T) {
	entries := &fakeEntries{entry: pendingEntry()}
	catalog := &fakeCatalog{existing: &series.SeriesSource{ID: "src-1", SeriesID: "ser-1"}}
	gate := &fakeGate{}

	service := newService(entries, catalog, gate)
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.NoError(t, err)
	assert.Equal(t, []string{"ent-1", "ser-1", "src-1"}, entries.bound)
	assert.Empty(t, catalog.createdSe, "existing sources must be reused")
	assert.Empty(t, gate.offered, "no discovery crawl for an already tracked source")
}

func TestHandleResolutionJob_CreatesCatalogRows(t *testing.T) {
	entries := &fakeEntries{entry: pendingEntry()}
	catalog := &fakeCatalog{}
	gate := &fakeGate{}

	service := newService(entries, catalog, gate)
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))
	require.NoError(t, err)

	require.Len(t, catalog.createdSe, 1)
	assert.Equal(t, "Solo Farming", catalog.createdSe[0].Title)
	assert.Equal(t, series.TierC, catalog.createdSe[0].Tier)

	require.Len(t, catalog.createdSo, 1)
	created := catalog.createdSo[0]
	assert.Equal(t, catalog.createdSe[0].ID, created.SeriesID)
	assert.Equal(t, "alpha", created.SourceName)
	assert.Equal(t, "ext-99", created.ExternalID, "external id comes from the normalized URL")
	assert.Equal(t, "https://alpha.example/series/ext-99", created.SourceURL,
		"tracking params and casing must be normalized away")

	require.Len(t, entries.bound, 3)
	assert.Equal(t, created.ID, entries.bound[2])
	assert.Equal(t, []gatekeeper.Reason{gatekeeper.ReasonDiscovery}, gate.offered)
}

func TestHandleResolutionJob_UnsupportedSource(t *testing.T) {
	entry := pendingEntry()
	entry.SourceName = "nobody-wrote-this-adapter"
	entries := &fakeEntries{entry: entry}

	service := newService(entries, &fakeCatalog{}, &fakeGate{})
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.NoError(t, err, "an unsupported site is a terminal entry state, not a job failure")
	assert.Equal(t, []string{"ent-1", constants.MetadataStatusUnavailable}, entries.parked)
	assert.Empty(t, entries.bound)
}

func TestHandleResolutionJob_BadURL(t *testing.T) {
	entry := pendingEntry()
	entry.SourceURL = "::not a url::"
	entries := &fakeEntries{entry: entry}

	service := newService(entries, &fakeCatalog{}, &fakeGate{})
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.NoError(t, err)
	assert.Equal(t, []string{"ent-1", constants.MetadataStatusFailed}, entries.parked)
}

func TestHandleResolutionJob_AlreadyEnriched(t *testing.T) {
	entry := pendingEntry()
	entry.MetadataStatus = constants.MetadataStatusEnriched
	entries := &fakeEntries{entry: entry}

	service := newService(entries, &fakeCatalog{}, &fakeGate{})
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.NoError(t, err)
	assert.Empty(t, entries.bound)
	assert.Empty(t, entries.parked)
}

func TestHandleResolutionJob_EntryGone(t *testing.T) {
	entries := &fakeEntries{entryErr: apperr.NotFound("library entry")}

	service := newService(entries, &fakeCatalog{}, &fakeGate{})
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleResolutionJob_SourceRaceReusesWinner(t *testing.T) {
	entries := &fakeEntries{entry: pendingEntry()}
	catalog := &fakeCatalog{conflict: true}
	gate := &fakeGate{}

	service := newService(entries, catalog, gate)
	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{"entryId":"ent-1"}`))

	require.NoError(t, err)
	assert.Equal(t, []string{"ent-1", "ser-race", "src-race"}, entries.bound)
	assert.Empty(t, gate.offered, "the race loser must not enqueue discovery")
}

func TestHandleResolutionJob_MalformedPayload(t *testing.T) {
	service := newService(&fakeEntries{entry: pendingEntry()}, &fakeCatalog{}, &fakeGate{})

	err := service.HandleResolutionJob(context.Background(), resolutionJob(`{]`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))

	err = service.HandleResolutionJob(context.Background(), resolutionJob(`{}`))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}
