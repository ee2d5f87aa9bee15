// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package syncer drains the sync-source queue: fetch a source's chapter
listing, diff it against the catalog in one serializable transaction, and
announce first-appearance chapters to the fan-out pipeline.

Failure handling follows the adapter error classes. Transient errors ride
the queue's retry backoff and leave the source row alone; permanent errors
advance the consecutive-failure counter and, at the threshold, flip the
source to broken so the periodic sweep stops picking it up. Library
entries bound to the source mirror its health (healthy, degraded, failed)
but mirroring is auxiliary: a committed sync is never rolled back because
the mirror write failed.
*/
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// failureRecheck is how far next_check_at moves out after a failed sync,
// so a down upstream is not hammered every sweep tick.
const failureRecheck = 30 * time.Minute

// Catalog is the slice of the series repository the syncer writes through.
type Catalog interface {
	GetSource(context context.Context, id string) (*series.SeriesSource, error)
	SyncChapters(context context.Context, sourceID string, incoming []series.IncomingChapter) (*series.SyncResult, error)
	RecordSyncFailure(context context.Context, sourceID string, permanent bool, nextCheckAt time.Time) (series.FailureState, error)
}

// EntryHealth propagates source health onto subscribed library entries.
type EntryHealth interface {
	SetSyncStatusBySource(context context.Context, sourceID, status string) (int64, error)
}

// Announcer receives first-appearance chapters for fan-out.
type Announcer interface {
	ChapterDetected(context context.Context, seriesID string, tier series.Tier, chapterID string, number float64) error
}

// Service is the sync-source job handler.
type Service struct {
	catalog  Catalog
	adapters *adapter.Registry
	entries  EntryHealth
	announce Announcer
	logger   *slog.Logger
}

/*
NewService creates the sync worker service.

Parameters:
  - catalog: catalog storage.
  - adapters: registered source adapters.
  - entries: library-entry health mirror. May be nil in tools that only
    backfill the catalog.
  - announce: fan-out intake. May be nil for the same reason.
  - logger: structured logger.

Returns:
  - *Service: ready to be registered on a worker pool.
*/
func NewService(catalog Catalog, adapters *adapter.Registry, entries EntryHealth, announce Announcer, logger *slog.Logger) *Service {
	return &Service{
		catalog:  catalog,
		adapters: adapters,
		entries:  entries,
		announce: announce,
		logger:   logger,
	}
}

// syncPayload is the sync-source job body.
type syncPayload struct {
	SeriesSourceID string `json:"seriesSourceId"`
	Reason         string `json:"reason,omitempty"`
	RequestedBy    string `json:"requestedBy,omitempty"`
}

/*
HandleSyncJob processes one sync-source job.

The returned error drives the queue: nil completes the job, a plain error
schedules a backoff retry, and a permanent error goes terminal immediately
(landing in the worker-failure archive).

Parameters:
  - context: worker context, canceled on shutdown.
  - job: the dequeued job; payload carries {seriesSourceId, reason}.

Returns:
  - error: classified as above.
*/
func (service *Service) HandleSyncJob(context context.Context, job *queue.Job) error {
	var payload syncPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed sync payload: %w", err))
	}
	if payload.SeriesSourceID == "" {
		return queue.Permanent(fmt.Errorf("sync payload missing seriesSourceId"))
	}

	source, err := service.catalog.GetSource(context, payload.SeriesSourceID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// The source was deleted between enqueue and execution.
			return queue.Permanent(err)
		}
		return err
	}

	upstream, err := service.adapters.Get(source.SourceName)
	if err != nil {
		return queue.Permanent(err)
	}

	listing, err := upstream.ListChapters(context, source)
	if err != nil {
		return service.recordFailure(context, job, source, err)
	}

	incoming := make([]series.IncomingChapter, 0, len(listing))
	for _, chapter := range listing {
		incoming = append(incoming, series.IncomingChapter{
			SourceChapterID: chapter.SourceChapterID,
			Number:          chapter.Number,
			Title:           chapter.Title,
			URL:             chapter.URL,
			DetectedAt:      chapter.PublishedAt,
		})
	}

	result, err := service.catalog.SyncChapters(context, source.ID, incoming)
	if err != nil {
		if apperr.IsNotFound(err) {
			return queue.Permanent(err)
		}
		// Lock contention and serialization residue come back as
		// conflicts; ride the queue backoff.
		return err
	}

	metrics.SourceSyncs.WithLabelValues("success").Inc()
	metrics.ChaptersDetected.Add(float64(len(result.NewChapters)))

	service.mirrorEntryStatus(context, source.ID, constants.SyncStatusHealthy)

	for _, chapter := range result.NewChapters {
		if service.announce == nil {
			break
		}
		if err := service.announce.ChapterDetected(context, result.SeriesID, result.Tier, chapter.ChapterID, chapter.Number); err != nil {
			// A lost announcement costs a notification, never the chapter.
			service.logger.Warn("chapter_announce_failed",
				slog.String("series_id", result.SeriesID),
				slog.String("chapter_id", chapter.ChapterID),
				slog.Any("error", err))
		}
	}

	service.logger.Info("source_synced",
		slog.String("source_id", source.ID),
		slog.String("series_id", result.SeriesID),
		slog.String("reason", payload.Reason),
		slog.Int("listed", len(incoming)),
		slog.Int("new_chapters", len(result.NewChapters)),
		slog.Int("linked_existing", result.LinkedExisting),
		slog.Time("next_check_at", result.NextCheckAt))
	return nil
}

/*
recordFailure books one failed fetch and shapes the error for the queue.

Transient failures leave the source row alone while attempts remain, so
the live job keeps its retry cadence; on the final attempt the next check
is pushed out to stop the sweep from re-enqueueing a down upstream every
tick. Permanent failures advance the consecutive-failure counter, may
break the source, and short-circuit the queue's retries.
*/
func (service *Service) recordFailure(context context.Context, job *queue.Job, source *series.SeriesSource, cause error) error {
	permanent := adapter.Classify(cause) == adapter.ClassPermanent
	nextCheckAt := time.Now().Add(failureRecheck)

	if !permanent {
		metrics.SourceSyncs.WithLabelValues("transient_error").Inc()
		if job.Attempts >= job.MaxAttempts {
			if _, err := service.catalog.RecordSyncFailure(context, source.ID, false, nextCheckAt); err != nil {
				service.logger.Error("sync_failure_bookkeeping_failed",
					slog.String("source_id", source.ID), slog.Any("error", err))
			}
		}
		return cause
	}

	metrics.SourceSyncs.WithLabelValues("permanent_error").Inc()
	state, err := service.catalog.RecordSyncFailure(context, source.ID, true, nextCheckAt)
	if err != nil {
		service.logger.Error("sync_failure_bookkeeping_failed",
			slog.String("source_id", source.ID), slog.Any("error", err))
		return cause
	}

	status := constants.SyncStatusDegraded
	if state.Broken {
		status = constants.SyncStatusFailed
		metrics.SourceSyncs.WithLabelValues("broken").Inc()
		service.logger.Error("source_marked_broken",
			slog.String("source_id", source.ID),
			slog.String("source_name", source.SourceName),
			slog.Int("consecutive_failures", state.ConsecutiveFailures),
			slog.Any("error", cause))
	}
	service.mirrorEntryStatus(context, source.ID, status)

	return queue.Permanent(cause)
}

// mirrorEntryStatus is auxiliary: failures are logged, never propagated.
func (service *Service) mirrorEntryStatus(context context.Context, sourceID, status string) {
	if service.entries == nil {
		return
	}
	updated, err := service.entries.SetSyncStatusBySource(context, sourceID, status)
	if err != nil {
		service.logger.Warn("entry_status_mirror_failed",
			slog.String("source_id", sourceID),
			slog.String("status", status),
			slog.Any("error", err))
		return
	}
	if updated > 0 {
		service.logger.Debug("entry_status_mirrored",
			slog.String("source_id", sourceID),
			slog.String("status", status),
			slog.Int64("entries", updated))
	}
}
