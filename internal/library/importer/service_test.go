// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/importer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// # Fakes

type finishCall struct {
	jobID    string
	status   string
	imported int
	skipped  int
	failed   int
	errMsg   string
}

type fakeRepo struct {
	jobs        map[string]*importer.Job
	finishes    []finishCall
	identities  []importer.Identity
	identityErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[string]*importer.Job{}}
}

func (fake *fakeRepo) CreateJob(_ context.Context, job *importer.Job) error {
	stored := *job
	fake.jobs[job.ID] = &stored
	return nil
}

func (fake *fakeRepo) GetJob(_ context.Context, userID, jobID string) (*importer.Job, error) {
	job, ok := fake.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, apperr.NotFound("Import job")
	}
	return job, nil
}

func (fake *fakeRepo) ClaimJob(_ context.Context, jobID string) (*importer.Job, error) {
	job, ok := fake.jobs[jobID]
	if !ok {
		return nil, apperr.NotFound("Import job")
	}
	if !job.Settled() {
		job.Status = importer.JobRunning
	}
	claimed := *job
	return &claimed, nil
}

func (fake *fakeRepo) FinishJob(_ context.Context, jobID, status string, imported, skipped, failed int, errMsg string) error {
	fake.finishes = append(fake.finishes, finishCall{jobID, status, imported, skipped, failed, errMsg})
	if job, ok := fake.jobs[jobID]; ok {
		job.Status = status
		job.Imported, job.Skipped, job.Failed = imported, skipped, failed
		job.Error = errMsg
	}
	return nil
}

func (fake *fakeRepo) LibraryIdentity(_ context.Context, _ string) ([]importer.Identity, error) {
	return fake.identities, fake.identityErr
}

// fakeGuard denies listed hosts and counts lookups so host-level caching
// is observable.
type fakeGuard struct {
	denied map[string]bool
	calls  int
}

func (fake *fakeGuard) CheckURL(_ context.Context, raw string) error {
	fake.calls++
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if fake.denied[parsed.Hostname()] {
		return fmt.Errorf("sec: host %q resolves to non-public address", parsed.Hostname())
	}
	return nil
}

type failingQueue struct {
	*queue.MemoryQueue
}

func (fake *failingQueue) Enqueue(_ context.Context, _ *queue.Job) (bool, error) {
	return false, assert.AnError
}

func newService(repo *fakeRepo, jobs queue.Queue, guard *fakeGuard) *importer.Service {
	if guard == nil {
		guard = &fakeGuard{}
	}
	return importer.NewService(repo, jobs, guard, slog.New(slog.DiscardHandler))
}

// # Start

func TestStart_AcceptsBatchAndEnqueues(t *testing.T) {
	repo := newFakeRepo()
	jobs := queue.NewMemoryQueue()
	service := newService(repo, jobs, nil)

	job, err := service.Start(context.Background(), "user-1", importer.StartInput{
		Entries: []importer.EntryInput{
			{Title: "Solo Farming", SourceURL: "https://Alpha.Example/series/7/?utm_source=share", Status: entry.StatusReading, LastReadChapter: 120},
			{Title: "Blue Lock", ExternalID: "mal-4321", LastReadChapter: 80},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, importer.JobPending, job.Status)
	assert.Equal(t, 2, job.TotalEntries)
	assert.Zero(t, job.Skipped)
	assert.Zero(t, job.Failed)

	stored := repo.jobs[job.ID]
	require.NotNil(t, stored)
	require.Len(t, stored.Entries, 2)
	assert.Equal(t, "https://alpha.example/series/7", stored.Entries[0].SourceURL)
	assert.Equal(t, entry.StatusReading, stored.Entries[0].Status)
	assert.Equal(t, entry.StatusPlanning, stored.Entries[1].Status, "missing status defaults")
	assert.Equal(t, "mal-4321", stored.Entries[1].ExternalID)

	state, err := jobs.State(context.Background(), constants.QueueImport, importer.QueueJobID(job.ID))
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, state)
}

func TestStart_ValidationFailures(t *testing.T) {
	service := newService(newFakeRepo(), queue.NewMemoryQueue(), nil)

	oversized := make([]importer.EntryInput, importer.MaxEntries+1)
	for i := range oversized {
		oversized[i] = importer.EntryInput{Title: fmt.Sprintf("Series %d", i)}
	}

	tests := []struct {
		name  string
		input importer.StartInput
	}{
		{"empty batch", importer.StartInput{}},
		{"too many entries", importer.StartInput{Entries: oversized}},
		{"missing title", importer.StartInput{Entries: []importer.EntryInput{{SourceURL: "https://a.example/s/1"}}}},
		{"unparsable url", importer.StartInput{Entries: []importer.EntryInput{{Title: "T", SourceURL: "ftp://a.example/s/1"}}}},
		{"negative progress", importer.StartInput{Entries: []importer.EntryInput{{Title: "T", LastReadChapter: -1}}}},
		{"unknown status", importer.StartInput{Entries: []importer.EntryInput{{Title: "T", Status: "rereading"}}}},
		{"oversized external id", importer.StartInput{Entries: []importer.EntryInput{{Title: "T", ExternalID: strings.Repeat("x", importer.MaxExternalIDLen+1)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Start(context.Background(), "user-1", tt.input)
			require.Error(t, err)
			assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
		})
	}
}

func TestStart_DropsUnreachableURLs(t *testing.T) {
	repo := newFakeRepo()
	guard := &fakeGuard{denied: map[string]bool{"intranet.example": true}}
	service := newService(repo, queue.NewMemoryQueue(), guard)

	job, err := service.Start(context.Background(), "user-1", importer.StartInput{
		Entries: []importer.EntryInput{
			{Title: "A", SourceURL: "https://intranet.example/s/1"},
			{Title: "B", SourceURL: "https://intranet.example/s/2"},
			{Title: "C", SourceURL: "https://public.example/s/3"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, job.Failed)
	assert.Len(t, repo.jobs[job.ID].Entries, 1)
	assert.Equal(t, 2, guard.calls, "one verdict per host, cached")
}

func TestStart_DedupsWithinBatch(t *testing.T) {
	repo := newFakeRepo()
	service := newService(repo, queue.NewMemoryQueue(), nil)

	job, err := service.Start(context.Background(), "user-1", importer.StartInput{
		Entries: []importer.EntryInput{
			{Title: "Solo Farming", SourceURL: "https://a.example/s/1"},
			{Title: "Solo Farming again", SourceURL: "https://A.EXAMPLE/s/1/"},
			{Title: "Blue Lock"},
			{Title: "blue  lock"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, job.Skipped)
	require.Len(t, repo.jobs[job.ID].Entries, 2)
	assert.Equal(t, "https://a.example/s/1", repo.jobs[job.ID].Entries[0].SourceURL)
	assert.Equal(t, "Blue Lock", repo.jobs[job.ID].Entries[1].Title)
}

func TestStart_QueueOutageSettlesJob(t *testing.T) {
	repo := newFakeRepo()
	service := newService(repo, &failingQueue{queue.NewMemoryQueue()}, nil)

	_, err := service.Start(context.Background(), "user-1", importer.StartInput{
		Entries: []importer.EntryInput{{Title: "Solo Farming"}},
	})
	require.Error(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, importer.JobFailed, repo.finishes[0].status)
	assert.NotEmpty(t, repo.finishes[0].errMsg)
}

// # Polling

func TestGetJob(t *testing.T) {
	repo := newFakeRepo()
	repo.jobs["018f3a70-0000-7000-8000-000000000001"] = &importer.Job{
		ID:     "018f3a70-0000-7000-8000-000000000001",
		UserID: "user-1",
		Status: importer.JobCompleted,
	}
	service := newService(repo, queue.NewMemoryQueue(), nil)

	job, err := service.GetJob(context.Background(), "user-1", "018f3a70-0000-7000-8000-000000000001")
	require.NoError(t, err)
	assert.Equal(t, importer.JobCompleted, job.Status)

	_, err = service.GetJob(context.Background(), "user-2", "018f3a70-0000-7000-8000-000000000001")
	assert.True(t, apperr.IsNotFound(err))

	_, err = service.GetJob(context.Background(), "user-1", "not-a-uuid")
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}
