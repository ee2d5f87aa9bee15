// Copyright (c) 2026 MangaTrack. All rights reserved.

package entry_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// # Fakes

type fakeRepo struct {
	created  []*entry.Entry
	entries  map[string]*entry.Entry
	resetErr error
	resets   []string
}

func (fake *fakeRepo) Create(_ context.Context, entity *entry.Entry) error {
	fake.created = append(fake.created, entity)
	return nil
}

func (fake *fakeRepo) GetByID(_ context.Context, userID, entryID string, _ bool) (*entry.Entry, error) {
	entity, ok := fake.entries[entryID]
	if !ok || entity.UserID != userID {
		return nil, apperr.NotFound("Library entry")
	}
	return entity, nil
}

func (fake *fakeRepo) ListByUser(_ context.Context, userID string, f entry.Filter, _, _ int) ([]*entry.Entry, int, error) {
	var page []*entry.Entry
	for _, entity := range fake.entries {
		if entity.UserID != userID {
			continue
		}
		if f.Status != "" && entity.Status != f.Status {
			continue
		}
		page = append(page, entity)
	}
	return page, len(page), nil
}

func (fake *fakeRepo) UpdateStatus(_ context.Context, userID, entryID, status string) (*entry.Entry, error) {
	entity, ok := fake.entries[entryID]
	if !ok || entity.UserID != userID {
		return nil, apperr.NotFound("Library entry")
	}
	entity.Status = status
	return entity, nil
}

func (fake *fakeRepo) SoftDelete(_ context.Context, userID, entryID string) error {
	entity, ok := fake.entries[entryID]
	if !ok || entity.UserID != userID {
		return apperr.NotFound("Library entry")
	}
	delete(fake.entries, entryID)
	return nil
}

func (fake *fakeRepo) UpsertByUserAndSeries(_ context.Context, entity *entry.Entry) (bool, error) {
	fake.created = append(fake.created, entity)
	return true, nil
}

func (fake *fakeRepo) ResetMetadataForRetry(_ context.Context, _, entryID string) error {
	if fake.resetErr != nil {
		return fake.resetErr
	}
	fake.resets = append(fake.resets, entryID)
	return nil
}

// failingQueue rejects every enqueue, simulating a broker outage.
type failingQueue struct {
	*queue.MemoryQueue
}

func (fake *failingQueue) Enqueue(_ context.Context, _ *queue.Job) (bool, error) {
	return false, assert.AnError
}

func newService(repo *fakeRepo, jobs queue.Queue) *entry.Service {
	return entry.NewService(repo, jobs, slog.New(slog.DiscardHandler))
}

// # Status Rules

func TestValidStatus(t *testing.T) {
	for _, status := range entry.Statuses {
		assert.True(t, entry.ValidStatus(status), status)
	}
	assert.False(t, entry.ValidStatus("rereading"))
	assert.False(t, entry.ValidStatus(""))
}

func TestStatusTransitionAllowed(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		next     string
		advanced bool
		want     bool
	}{
		{"completed stays sticky without progress", entry.StatusCompleted, entry.StatusReading, false, false},
		{"completed downgrades with progress", entry.StatusCompleted, entry.StatusReading, true, true},
		{"completed to completed is a no-op", entry.StatusCompleted, entry.StatusCompleted, false, true},
		{"reading upgrades freely", entry.StatusReading, entry.StatusCompleted, false, true},
		{"planning moves freely", entry.StatusPlanning, entry.StatusDropped, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, entry.StatusTransitionAllowed(tt.current, tt.next, tt.advanced))
		})
	}
}

// # Add

func TestAdd_NormalizesURLAndSchedulesResolution(t *testing.T) {
	repo := &fakeRepo{}
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs)

	entity, err := service.Add(context.Background(), "user-1", entry.AddInput{
		Title:      "Solo Farming",
		SourceURL:  "https://Alpha.Example/series/ext-7/?utm_source=share#latest",
		SourceName: "alphascans",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)

	assert.NotEmpty(t, entity.ID)
	assert.Equal(t, "user-1", entity.UserID)
	assert.Equal(t, "https://alpha.example/series/ext-7", entity.SourceURL)
	assert.Equal(t, entry.StatusPlanning, entity.Status)
	assert.Equal(t, constants.MetadataStatusPending, entity.MetadataStatus)
	assert.Equal(t, constants.MetadataSourceAuto, entity.MetadataSource)
	assert.Nil(t, entity.SeriesID)

	state, err := jobs.State(context.Background(), constants.QueueSeriesResolution, resolver.JobID(entity.ID))
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, state)
}

func TestAdd_ValidationFailures(t *testing.T) {
	service := newService(&fakeRepo{}, queue.NewMemoryQueue())

	tests := []struct {
		name  string
		input entry.AddInput
	}{
		{"missing title", entry.AddInput{SourceURL: "https://a.example/x", SourceName: "alpha"}},
		{"missing source url", entry.AddInput{Title: "T", SourceName: "alpha"}},
		{"missing source name", entry.AddInput{Title: "T", SourceURL: "https://a.example/x"}},
		{"unknown status", entry.AddInput{Title: "T", SourceURL: "https://a.example/x", SourceName: "alpha", Status: "rereading"}},
		{"ftp url", entry.AddInput{Title: "T", SourceURL: "ftp://a.example/x", SourceName: "alpha"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Add(context.Background(), "user-1", tt.input)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
		})
	}
}

func TestAdd_SurvivesQueueOutage(t *testing.T) {
	repo := &fakeRepo{}
	service := newService(repo, &failingQueue{queue.NewMemoryQueue()})

	entity, err := service.Add(context.Background(), "user-1", entry.AddInput{
		Title:      "Solo Farming",
		SourceURL:  "https://alpha.example/series/ext-7",
		SourceName: "alphascans",
	})
	require.NoError(t, err)
	assert.Len(t, repo.created, 1)
	assert.Equal(t, constants.MetadataStatusPending, entity.MetadataStatus)
}

// # Status Updates

func TestUpdateStatus(t *testing.T) {
	repo := &fakeRepo{entries: map[string]*entry.Entry{
		"ent-1": {ID: "ent-1", UserID: "user-1", Status: entry.StatusPlanning},
	}}
	service := newService(repo, queue.NewMemoryQueue())

	entity, err := service.UpdateStatus(context.Background(), "user-1", "ent-1", entry.StatusReading)
	require.NoError(t, err)
	assert.Equal(t, entry.StatusReading, entity.Status)

	_, err = service.UpdateStatus(context.Background(), "user-1", "ent-1", "rereading")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)

	_, err = service.UpdateStatus(context.Background(), "user-2", "ent-1", entry.StatusReading)
	assert.True(t, apperr.IsNotFound(err))
}

func TestList_RejectsUnknownStatusFilter(t *testing.T) {
	service := newService(&fakeRepo{}, queue.NewMemoryQueue())

	_, _, err := service.List(context.Background(), "user-1", entry.Filter{Status: "rereading"}, 20, 0)
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

// # Metadata Retry

func TestRetryMetadata_EnqueuesFreshJob(t *testing.T) {
	repo := &fakeRepo{}
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs)

	require.NoError(t, service.RetryMetadata(context.Background(), "user-1", "ent-1"))
	assert.Equal(t, []string{"ent-1"}, repo.resets)

	state, err := jobs.State(context.Background(), constants.QueueSeriesResolution, resolver.JobID("ent-1"))
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, state)
}

func TestRetryMetadata_LeavesInFlightJobAlone(t *testing.T) {
	repo := &fakeRepo{}
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs)

	payload, err := json.Marshal(map[string]string{"entryId": "ent-1"})
	require.NoError(t, err)
	_, err = jobs.Enqueue(context.Background(), &queue.Job{
		ID:      resolver.JobID("ent-1"),
		Queue:   constants.QueueSeriesResolution,
		Payload: payload,
	})
	require.NoError(t, err)

	require.NoError(t, service.RetryMetadata(context.Background(), "user-1", "ent-1"))

	counts, err := jobs.Counts(context.Background(), constants.QueueSeriesResolution)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Waiting)
}

func TestRetryMetadata_ReplacesTerminallyFailedJob(t *testing.T) {
	repo := &fakeRepo{}
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs)
	jobID := resolver.JobID("ent-1")

	_, err := jobs.Enqueue(context.Background(), &queue.Job{
		ID:    jobID,
		Queue: constants.QueueSeriesResolution,
	})
	require.NoError(t, err)
	_, err = jobs.Dequeue(context.Background(), constants.QueueSeriesResolution)
	require.NoError(t, err)
	require.NoError(t, jobs.FailPermanent(context.Background(), constants.QueueSeriesResolution, jobID, "site unsupported"))

	require.NoError(t, service.RetryMetadata(context.Background(), "user-1", "ent-1"))

	state, err := jobs.State(context.Background(), constants.QueueSeriesResolution, jobID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, state)

	counts, err := jobs.Counts(context.Background(), constants.QueueSeriesResolution)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Failed)
}

func TestRetryMetadata_StoreRejectionStopsEnqueue(t *testing.T) {
	repo := &fakeRepo{resetErr: apperr.BadRequest("Metadata is already resolved")}
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs)

	err := service.RetryMetadata(context.Background(), "user-1", "ent-1")
	require.Error(t, err)
	assert.Equal(t, "BAD_REQUEST", apperr.As(err).Code)

	counts, err := jobs.Counts(context.Background(), constants.QueueSeriesResolution)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Waiting+counts.Delayed)
}
