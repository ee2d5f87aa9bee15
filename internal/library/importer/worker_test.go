// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/importer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// # Fakes

type fakeEntries struct {
	created      []*entry.Entry
	conflictURLs map[string]bool
	rejectTitles map[string]bool
	infraErr     error
}

func (fake *fakeEntries) Create(_ context.Context, entity *entry.Entry) error {
	if fake.infraErr != nil {
		return fake.infraErr
	}
	if fake.conflictURLs[entity.SourceURL] {
		return apperr.Conflict("Resource already exists")
	}
	if fake.rejectTitles[entity.Title] {
		return apperr.Unprocessable("Entry cannot be stored")
	}
	fake.created = append(fake.created, entity)
	return nil
}

type grant struct {
	userID   string
	chapters int
}

type fakeEngine struct {
	grants []grant
	err    error
}

func (fake *fakeEngine) GrantMigrationBonus(_ context.Context, userID string, importedChapters int) (*progress.BonusResult, error) {
	fake.grants = append(fake.grants, grant{userID, importedChapters})
	if fake.err != nil {
		return nil, fake.err
	}
	return &progress.BonusResult{Granted: true, Amount: 50}, nil
}

// # Helpers

const importJobID = "018f3a70-1111-7111-8111-000000000001"

func seedJob(repo *fakeRepo, entries []importer.Entry, skipped, failed int) {
	repo.jobs[importJobID] = &importer.Job{
		ID:           importJobID,
		UserID:       "user-1",
		Status:       importer.JobPending,
		Entries:      entries,
		TotalEntries: len(entries) + skipped + failed,
		Skipped:      skipped,
		Failed:       failed,
	}
}

func queueJob(t *testing.T) *queue.Job {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"jobId": importJobID})
	require.NoError(t, err)
	return &queue.Job{
		ID:          importer.QueueJobID(importJobID),
		Queue:       constants.QueueImport,
		Payload:     payload,
		Attempts:    1,
		MaxAttempts: 5,
	}
}

func newWorker(repo *fakeRepo, entries *fakeEntries, engine *fakeEngine, jobs queue.Queue) *importer.Worker {
	return importer.NewWorker(repo, entries, engine, jobs, "https://mangatrack.app/", slog.New(slog.DiscardHandler))
}

// # Handler

func TestHandleImportJob_CreatesEntriesAndGrantsBonus(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Solo Farming", SourceURL: "https://alpha.example/series/7", Status: entry.StatusReading, LastReadChapter: 120},
		{Title: "Blue Lock", ExternalID: "mal-4321", Status: entry.StatusPlanning, LastReadChapter: 80.5},
	}, 0, 0)
	entries := &fakeEntries{}
	engine := &fakeEngine{}
	jobs := queue.NewMemoryQueue()

	err := newWorker(repo, entries, engine, jobs).HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, entries.created, 2)
	withURL, titleOnly := entries.created[0], entries.created[1]

	assert.Equal(t, "user-1", withURL.UserID)
	assert.Equal(t, "alpha.example", withURL.SourceName)
	assert.Equal(t, constants.MetadataStatusPending, withURL.MetadataStatus)
	assert.Equal(t, float64(120), withURL.LastReadChapter)

	assert.Equal(t, "https://mangatrack.app/library/imported/mal-4321", titleOnly.SourceURL)
	assert.Equal(t, importer.ImportSourceName, titleOnly.SourceName)
	assert.Equal(t, constants.MetadataStatusUnavailable, titleOnly.MetadataStatus)

	// Only the URL-bearing row gets a resolution job.
	state, err := jobs.State(context.Background(), constants.QueueSeriesResolution, resolver.JobID(withURL.ID))
	require.NoError(t, err)
	assert.Equal(t, queue.StateWaiting, state)
	state, err = jobs.State(context.Background(), constants.QueueSeriesResolution, resolver.JobID(titleOnly.ID))
	require.NoError(t, err)
	assert.Equal(t, queue.StateNone, state)

	require.Len(t, engine.grants, 1)
	assert.Equal(t, grant{"user-1", 200}, engine.grants[0], "fractional chapters floor")

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, finishCall{importJobID, importer.JobCompleted, 2, 0, 0, ""}, repo.finishes[0])
}

func TestHandleImportJob_PlaceholderFallsBackToTitleSlug(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Ōkami & Friends!", Status: entry.StatusPlanning},
	}, 0, 0)
	entries := &fakeEntries{}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, entries.created, 1)
	assert.Equal(t, "https://mangatrack.app/library/imported/okami-friends", entries.created[0].SourceURL)
}

func TestHandleImportJob_SkipsLibraryDuplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.identities = []importer.Identity{
		{Title: "Something Else", SourceURL: "https://alpha.example/series/7"},
		{Title: "Blue Lock", SourceURL: "https://beta.example/series/9"},
	}
	seedJob(repo, []importer.Entry{
		{Title: "Solo Farming", SourceURL: "https://alpha.example/series/7", Status: entry.StatusReading, LastReadChapter: 40},
		{Title: "blue lock", Status: entry.StatusPlanning, LastReadChapter: 10},
	}, 0, 0)
	entries := &fakeEntries{}
	engine := &fakeEngine{}

	err := newWorker(repo, entries, engine, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	assert.Empty(t, entries.created)
	assert.Empty(t, engine.grants, "nothing imported, nothing to compensate")
	require.Len(t, repo.finishes, 1)
	assert.Equal(t, finishCall{importJobID, importer.JobCompleted, 0, 2, 0, ""}, repo.finishes[0])
}

func TestHandleImportJob_ConflictCountsAsSkipped(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Solo Farming", SourceURL: "https://alpha.example/series/7", Status: entry.StatusReading, LastReadChapter: 40},
		{Title: "Tower of Dawn", SourceURL: "https://beta.example/series/2", Status: entry.StatusReading, LastReadChapter: 5},
	}, 0, 0)
	entries := &fakeEntries{conflictURLs: map[string]bool{"https://alpha.example/series/7": true}}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, finishCall{importJobID, importer.JobCompleted, 1, 1, 0, ""}, repo.finishes[0])
}

func TestHandleImportJob_BadRowCountsAsFailed(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Cursed Row", Status: entry.StatusPlanning},
		{Title: "Fine Row", SourceURL: "https://beta.example/series/2", Status: entry.StatusReading},
	}, 0, 0)
	entries := &fakeEntries{rejectTitles: map[string]bool{"Cursed Row": true}}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, finishCall{importJobID, importer.JobCompleted, 1, 0, 1, ""}, repo.finishes[0])
}

func TestHandleImportJob_CarriesAcceptTimeSeeds(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Solo Farming", SourceURL: "https://alpha.example/series/7", Status: entry.StatusReading},
	}, 3, 1)
	entries := &fakeEntries{}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, finishCall{importJobID, importer.JobCompleted, 1, 3, 1, ""}, repo.finishes[0])
}

func TestHandleImportJob_SettledJobIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{{Title: "Solo Farming", Status: entry.StatusPlanning}}, 0, 0)
	repo.jobs[importJobID].Status = importer.JobCompleted
	entries := &fakeEntries{}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	assert.Empty(t, entries.created)
	assert.Empty(t, repo.finishes)
}

func TestHandleImportJob_MalformedPayloadIsPermanent(t *testing.T) {
	worker := newWorker(newFakeRepo(), &fakeEntries{}, &fakeEngine{}, queue.NewMemoryQueue())

	err := worker.HandleImportJob(context.Background(), &queue.Job{
		ID: "import-x", Queue: constants.QueueImport, Payload: []byte("{"),
	})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleImportJob_MissingJobIsPermanent(t *testing.T) {
	worker := newWorker(newFakeRepo(), &fakeEntries{}, &fakeEngine{}, queue.NewMemoryQueue())

	err := worker.HandleImportJob(context.Background(), queueJob(t))
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

func TestHandleImportJob_InfraErrorRetries(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{{Title: "Solo Farming", Status: entry.StatusPlanning}}, 0, 0)
	entries := &fakeEntries{infraErr: apperr.Internal(assert.AnError)}

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.Error(t, err)
	assert.False(t, queue.IsPermanent(err))
	assert.Empty(t, repo.finishes, "non-final attempt leaves the job open for retry")
}

func TestHandleImportJob_FinalAttemptSettlesAsFailed(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{{Title: "Solo Farming", Status: entry.StatusPlanning}}, 0, 0)
	entries := &fakeEntries{infraErr: apperr.Internal(assert.AnError)}

	job := queueJob(t)
	job.Attempts = job.MaxAttempts

	err := newWorker(repo, entries, &fakeEngine{}, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), job)
	require.Error(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, importer.JobFailed, repo.finishes[0].status)
	assert.NotEmpty(t, repo.finishes[0].errMsg)
}

func TestHandleImportJob_BonusFailureDoesNotFailJob(t *testing.T) {
	repo := newFakeRepo()
	seedJob(repo, []importer.Entry{
		{Title: "Solo Farming", SourceURL: "https://alpha.example/series/7", Status: entry.StatusReading, LastReadChapter: 40},
	}, 0, 0)
	engine := &fakeEngine{err: assert.AnError}

	err := newWorker(repo, &fakeEntries{}, engine, queue.NewMemoryQueue()).
		HandleImportJob(context.Background(), queueJob(t))
	require.NoError(t, err)

	require.Len(t, repo.finishes, 1)
	assert.Equal(t, importer.JobCompleted, repo.finishes[0].status)
}
