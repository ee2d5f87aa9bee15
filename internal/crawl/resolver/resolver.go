// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package resolver turns a library entry's pasted source URL into catalog
rows. A pending entry names a page somewhere upstream; resolution
normalizes the URL, finds or creates the Series and SeriesSource behind
it, binds the entry, and advances metadata_status.

Outcomes are terminal entry states, not job failures: an unsupported site
marks the entry unavailable and completes the job. Only infrastructure
errors ride the queue's retry backoff. Newly created sources are offered
to the gatekeeper with reason DISCOVERY so their chapter backlog fills in.
*/
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/gatekeeper"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/urlnorm"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// JobID derives the idempotent resolution job id for an entry. The retry
// endpoint and the initial add enqueue under the same id, so at most one
// resolution per entry is ever in flight.
func JobID(entryID string) string {
	return "retry-resolution-" + entryID
}

// PendingEntry is the slice of a library entry resolution works on.
type PendingEntry struct {
	ID             string
	UserID         string
	Title          string
	SourceURL      string
	SourceName     string
	MetadataStatus string
}

// Entries is the library-entry contract the resolver writes through.
type Entries interface {
	// GetForResolution loads an entry regardless of metadata state,
	// excluding soft-deleted rows.
	GetForResolution(context context.Context, entryID string) (*PendingEntry, error)

	// BindResolution attaches the resolved catalog rows and marks the
	// entry enriched.
	BindResolution(context context.Context, entryID, seriesID, sourceID string) error

	// MarkUnresolvable parks the entry in a terminal metadata status
	// (unavailable or failed).
	MarkUnresolvable(context context.Context, entryID, status string) error
}

// Catalog is the catalog slice resolution reads and creates rows in.
type Catalog interface {
	FindSourceByURL(context context.Context, sourceURL string) (*series.SeriesSource, error)
	CreateSeries(context context.Context, entity *series.Series) error
	CreateSource(context context.Context, source *series.SeriesSource) error
}

// Admitter offers a freshly created source to crawl admission.
type Admitter interface {
	EnqueueIfAllowed(context context.Context, sourceID string, tier series.Tier, reason gatekeeper.Reason, extra map[string]any) (bool, error)
}

// Service is the series-resolution job handler.
type Service struct {
	entries  Entries
	catalog  Catalog
	adapters *adapter.Registry
	gate     Admitter
	logger   *slog.Logger
}

func NewService(entries Entries, catalog Catalog, adapters *adapter.Registry, gate Admitter, logger *slog.Logger) *Service {
	return &Service{
		entries:  entries,
		catalog:  catalog,
		adapters: adapters,
		gate:     gate,
		logger:   logger,
	}
}

type resolutionPayload struct {
	EntryID string `json:"entryId"`
}

/*
HandleResolutionJob resolves one entry.

Parameters:
  - context: worker context.
  - job: payload carries {entryId}.

Returns:
  - error: nil when the entry reached a terminal metadata status
    (enriched, unavailable or failed); a retryable error only on
    infrastructure failures.
*/
func (service *Service) HandleResolutionJob(context context.Context, job *queue.Job) error {
	var payload resolutionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed resolution payload: %w", err))
	}
	if payload.EntryID == "" {
		return queue.Permanent(fmt.Errorf("resolution payload missing entryId"))
	}

	entry, err := service.entries.GetForResolution(context, payload.EntryID)
	if err != nil {
		if apperr.IsNotFound(err) {
			// Entry deleted between enqueue and execution.
			return queue.Permanent(err)
		}
		return err
	}
	if entry.MetadataStatus == constants.MetadataStatusEnriched {
		return nil
	}

	normalized, err := urlnorm.Normalize(entry.SourceURL)
	if err != nil {
		service.logger.Warn("resolution_bad_source_url",
			slog.String("entry_id", entry.ID),
			slog.String("source_url", entry.SourceURL),
			slog.Any("error", err))
		return service.entries.MarkUnresolvable(context, entry.ID, constants.MetadataStatusFailed)
	}

	source, err := service.catalog.FindSourceByURL(context, normalized)
	switch {
	case err == nil:
		return service.bind(context, entry, source, false)
	case apperr.IsNotFound(err):
		return service.createAndBind(context, entry, normalized)
	default:
		return err
	}
}

// bind attaches the entry to an existing or just-created source.
func (service *Service) bind(context context.Context, entry *PendingEntry, source *series.SeriesSource, created bool) error {
	if err := service.entries.BindResolution(context, entry.ID, source.SeriesID, source.ID); err != nil {
		return err
	}
	service.logger.Info("entry_resolved",
		slog.String("entry_id", entry.ID),
		slog.String("series_id", source.SeriesID),
		slog.String("source_id", source.ID),
		slog.Bool("source_created", created))

	if created && service.gate != nil {
		// New sources have no chapter backlog yet; offer a discovery
		// crawl. Denial under load is fine, the sweep catches up later.
		if _, err := service.gate.EnqueueIfAllowed(context, source.ID, series.TierC, gatekeeper.ReasonDiscovery, nil); err != nil {
			service.logger.Warn("discovery_enqueue_failed",
				slog.String("source_id", source.ID),
				slog.Any("error", err))
		}
	}
	return nil
}

// createAndBind materializes catalog rows for a URL nobody tracks yet.
func (service *Service) createAndBind(context context.Context, entry *PendingEntry, normalized string) error {
	upstream, err := service.adapters.Get(entry.SourceName)
	if err != nil {
		service.logger.Info("resolution_unsupported_source",
			slog.String("entry_id", entry.ID),
			slog.String("source_name", entry.SourceName))
		return service.entries.MarkUnresolvable(context, entry.ID, constants.MetadataStatusUnavailable)
	}

	parser, ok := upstream.(adapter.ExternalIDParser)
	if !ok {
		return service.entries.MarkUnresolvable(context, entry.ID, constants.MetadataStatusUnavailable)
	}
	externalID, err := parser.ParseExternalID(normalized)
	if err != nil {
		service.logger.Warn("resolution_external_id_failed",
			slog.String("entry_id", entry.ID),
			slog.String("source_url", normalized),
			slog.Any("error", err))
		return service.entries.MarkUnresolvable(context, entry.ID, constants.MetadataStatusFailed)
	}

	title := entry.Title
	if title == "" {
		title = normalized
	}
	newSeries := &series.Series{
		ID:     uuidv7.New(),
		Title:  title,
		Type:   "manga",
		Status: "ongoing",
		Tier:   series.TierC,
	}
	if err := service.catalog.CreateSeries(context, newSeries); err != nil {
		return err
	}

	source := &series.SeriesSource{
		ID:           uuidv7.New(),
		SeriesID:     newSeries.ID,
		SourceName:   upstream.Name(),
		ExternalID:   externalID,
		SourceURL:    normalized,
		SourceStatus: series.SourceStatusActive,
	}
	if err := service.catalog.CreateSource(context, source); err != nil {
		if apperr.IsConflict(err) {
			// A concurrent resolution created the same source; reuse it.
			existing, findErr := service.catalog.FindSourceByURL(context, normalized)
			if findErr != nil {
				return findErr
			}
			return service.bind(context, entry, existing, false)
		}
		return err
	}
	return service.bind(context, entry, source, true)
}
