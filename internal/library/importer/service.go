// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/validate"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/slug"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/urlnorm"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// FieldEntries is the validation field for batch-level failures.
const FieldEntries = "entries"

// URLGuard screens user-pasted URLs before acceptance. Satisfied by
// [sec.SSRFGuard].
type URLGuard interface {
	CheckURL(ctx context.Context, raw string) error
}

// Service accepts import batches and answers job polls.
type Service struct {
	repo   Repository
	jobs   queue.Queue
	guard  URLGuard
	logger *slog.Logger
}

// NewService wires the import service.
func NewService(repo Repository, jobs queue.Queue, guard URLGuard, logger *slog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, guard: guard, logger: logger}
}

// EntryInput is one row of the import request body.
type EntryInput struct {
	Title           string  `json:"title"`
	SourceURL       string  `json:"sourceUrl"`
	ExternalID      string  `json:"externalId"`
	Status          string  `json:"status"`
	LastReadChapter float64 `json:"lastReadChapter"`
}

// StartInput is the import request body.
type StartInput struct {
	Entries []EntryInput `json:"entries"`
}

/*
Start validates an import batch and schedules it for processing.

Schema violations anywhere in the batch reject the whole request with a
VALIDATION_ERROR carrying per-row details. Rows that pass the schema but
fail the SSRF screen are dropped and pre-counted as failed; in-batch
duplicates are pre-counted as skipped. The surviving rows are stored on
the job and the worker takes over.

Parameters:
  - context: request context.
  - userID: importing user.
  - input: up to [MaxEntries] rows of title + optional URL + optional
    external id.

Returns:
  - *Job: the pending job to poll.
  - error: VALIDATION_ERROR on schema failures, infrastructure errors
    from storage or the queue.
*/
func (service *Service) Start(context context.Context, userID string, input StartInput) (*Job, error) {
	validator := &validate.Validator{}
	validator.Custom(FieldEntries, len(input.Entries) == 0, "At least one entry is required")
	validator.Custom(FieldEntries, len(input.Entries) > MaxEntries,
		fmt.Sprintf("Maximum %d entries per import", MaxEntries))
	if err := validator.Err(); err != nil {
		return nil, err
	}

	normalized := make([]string, len(input.Entries))
	for i, row := range input.Entries {
		field := func(name string) string { return fmt.Sprintf("entries[%d].%s", i, name) }

		validator.Required(field("title"), row.Title).
			MaxLen(field("title"), row.Title, entry.MaxTitleLen)
		validator.MaxLen(field("externalId"), row.ExternalID, MaxExternalIDLen)
		validator.Custom(field("lastReadChapter"), row.LastReadChapter < 0, "Must not be negative")
		if row.Status != "" {
			validator.OneOf(field("status"), row.Status, entry.Statuses...)
		}
		if row.SourceURL != "" {
			canonical, err := urlnorm.Normalize(row.SourceURL)
			validator.Custom(field("sourceUrl"), err != nil, "Must be a valid http(s) URL")
			normalized[i] = canonical
		}
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// One SSRF verdict per host: exports come from one or two sites, so
	// this collapses hundreds of rows into a handful of DNS lookups.
	hostVerdicts := map[string]error{}
	seen := map[string]bool{}
	var accepted []Entry
	var skipped, failed int

	for i, row := range input.Entries {
		canonical := normalized[i]
		if canonical != "" {
			host := hostOf(canonical)
			verdict, checked := hostVerdicts[host]
			if !checked {
				verdict = service.guard.CheckURL(context, canonical)
				hostVerdicts[host] = verdict
			}
			if verdict != nil {
				failed++
				service.logger.Warn("import_url_rejected",
					slog.String("user_id", userID),
					slog.String("host", host),
					slog.Any("error", verdict),
				)
				continue
			}
		}

		key := dedupKey(row.Title, canonical)
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		status := row.Status
		if status == "" {
			status = entry.StatusPlanning
		}
		accepted = append(accepted, Entry{
			Title:           strings.TrimSpace(row.Title),
			SourceURL:       canonical,
			ExternalID:      row.ExternalID,
			Status:          status,
			LastReadChapter: row.LastReadChapter,
		})
	}

	job := &Job{
		ID:           uuidv7.New(),
		UserID:       userID,
		Status:       JobPending,
		Entries:      accepted,
		TotalEntries: len(input.Entries),
		Skipped:      skipped,
		Failed:       failed,
	}
	if err := service.repo.CreateJob(context, job); err != nil {
		return nil, err
	}

	if err := service.enqueue(context, job.ID); err != nil {
		// Without a queue job the row would sit pending forever; settle it
		// so polling tells the truth, then surface the failure.
		if finishErr := service.repo.FinishJob(context, job.ID, JobFailed,
			0, skipped, failed, "import could not be scheduled"); finishErr != nil {
			service.logger.Error("import_job_orphaned",
				slog.String("job_id", job.ID),
				slog.Any("error", finishErr),
			)
		}
		return nil, err
	}

	service.logger.Info("import_accepted",
		slog.String("job_id", job.ID),
		slog.String("user_id", userID),
		slog.Int("entries", len(accepted)),
		slog.Int("skipped", skipped),
		slog.Int("rejected", failed),
	)
	return job, nil
}

// GetJob returns one import job owned by the user, for polling.
func (service *Service) GetJob(context context.Context, userID, jobID string) (*Job, error) {
	validator := &validate.Validator{}
	validator.Required("id", jobID).UUID("id", jobID)
	if err := validator.Err(); err != nil {
		return nil, err
	}
	return service.repo.GetJob(context, userID, jobID)
}

func (service *Service) enqueue(context context.Context, importID string) error {
	payload, err := json.Marshal(map[string]string{"jobId": importID})
	if err != nil {
		return err
	}
	_, err = service.jobs.Enqueue(context, &queue.Job{
		ID:      QueueJobID(importID),
		Queue:   constants.QueueImport,
		Payload: payload,
	})
	return err
}

// dedupKey identifies a row for duplicate detection: by canonical URL
// when one is present, otherwise by slugged title.
func dedupKey(title, canonicalURL string) string {
	if canonicalURL != "" {
		return "url:" + canonicalURL
	}
	return "title:" + slug.From(title)
}

func hostOf(canonicalURL string) string {
	parsed, err := url.Parse(canonicalURL)
	if err != nil {
		return canonicalURL
	}
	return parsed.Hostname()
}
