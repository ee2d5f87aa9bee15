// Copyright (c) 2026 MangaTrack. All rights reserved.

package entry

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/validate"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/urlnorm"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// Validation field names surfaced in VALIDATION_ERROR details.
const (
	FieldTitle      = "title"
	FieldSourceURL  = "source_url"
	FieldSourceName = "source_name"
	FieldStatus     = "status"
)

// MaxTitleLen bounds user-supplied entry titles.
const MaxTitleLen = 500

// Service owns library entry workflows: adding, listing, status changes
// and the manual metadata-retry path.
type Service struct {
	repo   Repository
	jobs   queue.Queue
	logger *slog.Logger
}

// NewService wires the library entry service.
func NewService(repo Repository, jobs queue.Queue, logger *slog.Logger) *Service {
	return &Service{repo: repo, jobs: jobs, logger: logger}
}

// AddInput is the add-to-library request body.
type AddInput struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceUrl"`
	SourceName string `json:"sourceName"`
	Status     string `json:"status"`
}

/*
Add creates a library entry from a pasted source URL and schedules its
metadata resolution.

The entry is stored immediately in metadata status pending; resolution
runs asynchronously. A failed enqueue does not fail the add — the entry
stays pending and the retry endpoint recovers it.

Parameters:
  - context: request context.
  - userID: owning user.
  - input: title, source URL, source site name, optional status
    (defaults to planning).

Returns:
  - *Entry: the stored entry.
  - error: VALIDATION_ERROR on bad input, CONFLICT when the same source
    URL is already tracked.
*/
func (service *Service) Add(context context.Context, userID string, input AddInput) (*Entry, error) {
	if input.Status == "" {
		input.Status = StatusPlanning
	}

	validator := &validate.Validator{}
	validator.Required(FieldTitle, input.Title).MaxLen(FieldTitle, input.Title, MaxTitleLen)
	validator.Required(FieldSourceURL, input.SourceURL)
	validator.Required(FieldSourceName, input.SourceName)
	validator.OneOf(FieldStatus, input.Status, Statuses...)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	normalized, err := urlnorm.Normalize(input.SourceURL)
	if err != nil {
		validator.Custom(FieldSourceURL, true, "Must be a valid http(s) URL")
		return nil, validator.Err()
	}

	entity := &Entry{
		ID:             uuidv7.New(),
		UserID:         userID,
		Title:          input.Title,
		SourceURL:      normalized,
		SourceName:     input.SourceName,
		Status:         input.Status,
		MetadataStatus: constants.MetadataStatusPending,
		MetadataSource: constants.MetadataSourceAuto,
		SyncStatus:     constants.SyncStatusHealthy,
	}
	if err := service.repo.Create(context, entity); err != nil {
		return nil, err
	}

	if err := service.enqueueResolution(context, entity.ID); err != nil {
		// The entry is already stored; resolution is recoverable via the
		// retry endpoint, so a queue outage must not fail the add.
		service.logger.Warn("resolution_enqueue_failed",
			slog.String("entry_id", entity.ID),
			slog.Any("error", err),
		)
	}

	service.logger.Info("entry_added",
		slog.String("entry_id", entity.ID),
		slog.String("user_id", userID),
		slog.String("source_name", entity.SourceName),
	)
	return entity, nil
}

// Get returns one library entry owned by the user.
func (service *Service) Get(context context.Context, userID, entryID string) (*Entry, error) {
	return service.repo.GetByID(context, userID, entryID, false)
}

// List returns a page of the user's library plus the unpaged total.
func (service *Service) List(context context.Context, userID string, f Filter, limit, offset int) ([]*Entry, int, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		validator := &validate.Validator{}
		validator.OneOf(FieldStatus, f.Status, Statuses...)
		return nil, 0, validator.Err()
	}
	return service.repo.ListByUser(context, userID, f, limit, offset)
}

/*
UpdateStatus sets the reading status of an entry.

An explicit user action always passes the completed-is-sticky gate, so
any valid status is accepted here.
*/
func (service *Service) UpdateStatus(context context.Context, userID, entryID, status string) (*Entry, error) {
	validator := &validate.Validator{}
	validator.OneOf(FieldStatus, status, Statuses...)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	entity, err := service.repo.UpdateStatus(context, userID, entryID, status)
	if err != nil {
		return nil, err
	}

	service.logger.Info("entry_status_updated",
		slog.String("entry_id", entryID),
		slog.String("user_id", userID),
		slog.String("status", status),
	)
	return entity, nil
}

// Delete soft-deletes an entry.
func (service *Service) Delete(context context.Context, userID, entryID string) error {
	if err := service.repo.SoftDelete(context, userID, entryID); err != nil {
		return err
	}

	service.logger.Info("entry_deleted",
		slog.String("entry_id", entryID),
		slog.String("user_id", userID),
	)
	return nil
}

/*
RetryMetadata re-runs metadata resolution for a stuck entry.

The store performs the authoritative checks under a row lock (already
enriched, user override, cooldown window); on success the resolution job
is enqueued under its idempotent id. An in-flight job is left alone, a
terminally failed one is cleared first so the fresh attempt can run.

Returns:
  - error: NOT_FOUND, BAD_REQUEST, RATE_LIMITED or CONFLICT from the
    store checks; infrastructure errors from the queue.
*/
func (service *Service) RetryMetadata(context context.Context, userID, entryID string) error {
	if err := service.repo.ResetMetadataForRetry(context, userID, entryID); err != nil {
		return err
	}

	jobID := resolver.JobID(entryID)
	state, err := service.jobs.State(context, constants.QueueSeriesResolution, jobID)
	if err != nil {
		return err
	}

	switch state {
	case queue.StateWaiting, queue.StateActive, queue.StateDelayed:
		// Already on its way; the reset alone is enough.
		service.logger.Info("metadata_retry_coalesced",
			slog.String("entry_id", entryID),
			slog.String("job_state", string(state)),
		)
		return nil
	case queue.StateFailed:
		if err := service.jobs.Remove(context, constants.QueueSeriesResolution, jobID); err != nil {
			return err
		}
	}

	if err := service.enqueueResolution(context, entryID); err != nil {
		return err
	}

	service.logger.Info("metadata_retry_enqueued",
		slog.String("entry_id", entryID),
		slog.String("user_id", userID),
	)
	return nil
}

func (service *Service) enqueueResolution(context context.Context, entryID string) error {
	payload, err := json.Marshal(map[string]string{"entryId": entryID})
	if err != nil {
		return err
	}
	_, err = service.jobs.Enqueue(context, &queue.Job{
		ID:      resolver.JobID(entryID),
		Queue:   constants.QueueSeriesResolution,
		Payload: payload,
	})
	return err
}
