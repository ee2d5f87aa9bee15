// Copyright (c) 2026 MangaTrack. All rights reserved.

package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/outbox"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/validate"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/urlnorm"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// Validation field names surfaced in VALIDATION_ERROR details.
const (
	FieldEntryID       = "entry_id"
	FieldSeriesID      = "series_id"
	FieldChapterNumber = "chapter_number"
	FieldTitle         = "title"
	FieldSourceURL     = "source_url"
	FieldSourceName    = "source_name"
	FieldStatus        = "status"
	FieldSettings      = "settings"
)

// Service applies replayed actions for one authenticated user.
type Service struct {
	entries  Entries
	progress Progress
	settings Settings
	logger   *slog.Logger
}

// NewService wires the reconciler.
func NewService(entries Entries, progress Progress, settings Settings, logger *slog.Logger) *Service {
	return &Service{entries: entries, progress: progress, settings: settings, logger: logger}
}

/*
Replay applies a batch of offline actions and returns one verdict per
action.

Actions run in client timestamp order with ties broken by action id,
regardless of how the client ordered the array. A failing action never
aborts the batch: its verdict tells the client what to do with it, and
the remaining actions still run.
*/
func (service *Service) Replay(context context.Context, userID string, actions []outbox.Action) []outbox.Result {
	ordered := make([]outbox.Action, len(actions))
	copy(ordered, actions)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	results := make([]outbox.Result, 0, len(ordered))
	for _, action := range ordered {
		err := service.apply(context, userID, action)
		status := classify(err)
		if status != outbox.StatusSuccess {
			service.logger.Warn("replay_action_failed",
				slog.String("action_id", action.ID),
				slog.String("action_type", action.Type),
				slog.String("verdict", status),
				slog.Any("error", err),
			)
		}
		metricType := action.Type
		if !outbox.ValidType(metricType) {
			// Client-supplied garbage must not mint metric label values.
			metricType = "unknown"
		}
		metrics.ReplayActions.WithLabelValues(metricType, status).Inc()
		results = append(results, outbox.Result{ID: action.ID, Status: status})
	}
	return results
}

func (service *Service) apply(context context.Context, userID string, action outbox.Action) error {
	switch action.Type {
	case outbox.TypeChapterRead:
		return service.applyChapterRead(context, userID, action)
	case outbox.TypeLibraryAdd:
		return service.applyLibraryAdd(context, userID, action)
	case outbox.TypeLibraryUpdate:
		return service.applyLibraryUpdate(context, userID, action)
	case outbox.TypeLibraryDelete:
		return service.applyLibraryDelete(context, userID, action)
	case outbox.TypeSettingUpdate:
		return service.applySettingUpdate(context, userID, action)
	default:
		return apperr.BadRequest("Unknown action type")
	}
}

// # Action Handlers

// applyChapterRead hands the read to the progress engine with the
// client's stamp, so re-marks and stale replays settle as no-ops there.
func (service *Service) applyChapterRead(context context.Context, userID string, action outbox.Action) error {
	var payload ChapterReadPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return apperr.BadRequest("Malformed action payload")
	}

	validator := &validate.Validator{}
	validator.Required(FieldEntryID, payload.EntryID).UUID(FieldEntryID, payload.EntryID)
	validator.Custom(FieldChapterNumber, payload.ChapterNumber <= 0, "Chapter number must be positive")
	if err := validator.Err(); err != nil {
		return err
	}

	entity, err := service.entries.GetByID(context, userID, payload.EntryID, false)
	if err != nil {
		return err
	}
	if !entity.Resolved() {
		// Resolution may still land; the client retries within its cap.
		return apperr.Conflict("Entry is not resolved yet")
	}

	_, err = service.progress.MarkProgress(context, progress.MarkInput{
		UserID:        userID,
		EntryID:       payload.EntryID,
		ChapterNumber: payload.ChapterNumber,
		SourceID:      payload.SourceID,
		Timestamp:     action.Time(),
		DeviceID:      action.DeviceID,
	})
	return err
}

// applyLibraryAdd upserts by (user, series): a soft-deleted row for the
// same series is revived, a live one keeps its identity, so duplicate
// replays converge on one entry. The series is already known, so the
// entry binds directly instead of riding the resolution queue.
func (service *Service) applyLibraryAdd(context context.Context, userID string, action outbox.Action) error {
	var payload LibraryAddPayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return apperr.BadRequest("Malformed action payload")
	}
	if payload.Status == "" {
		payload.Status = entry.StatusPlanning
	}

	validator := &validate.Validator{}
	validator.Required(FieldSeriesID, payload.SeriesID).UUID(FieldSeriesID, payload.SeriesID)
	validator.Required(FieldTitle, payload.Title).MaxLen(FieldTitle, payload.Title, entry.MaxTitleLen)
	validator.Required(FieldSourceURL, payload.SourceURL)
	validator.Required(FieldSourceName, payload.SourceName)
	validator.OneOf(FieldStatus, payload.Status, entry.Statuses...)
	if err := validator.Err(); err != nil {
		return err
	}

	normalized, err := urlnorm.Normalize(payload.SourceURL)
	if err != nil {
		validator.Custom(FieldSourceURL, true, "Must be a valid http(s) URL")
		return validator.Err()
	}

	seriesID := payload.SeriesID
	entity := &entry.Entry{
		ID:             uuidv7.New(),
		UserID:         userID,
		SeriesID:       &seriesID,
		Title:          payload.Title,
		SourceURL:      normalized,
		SourceName:     payload.SourceName,
		Status:         payload.Status,
		MetadataStatus: constants.MetadataStatusEnriched,
		MetadataSource: constants.MetadataSourceAuto,
		SyncStatus:     constants.SyncStatusHealthy,
	}
	_, err = service.entries.UpsertByUserAndSeries(context, entity)
	return err
}

// applyLibraryUpdate applies a status change under the completed-is-
// sticky rule: a downgrade away from completed needs the same action to
// advance progress, otherwise it settles as a no-op success — the server
// state is simply newer than the client's.
func (service *Service) applyLibraryUpdate(context context.Context, userID string, action outbox.Action) error {
	var payload LibraryUpdatePayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return apperr.BadRequest("Malformed action payload")
	}

	validator := &validate.Validator{}
	validator.Required(FieldEntryID, payload.EntryID).UUID(FieldEntryID, payload.EntryID)
	validator.OneOf(FieldStatus, payload.Status, entry.Statuses...)
	if err := validator.Err(); err != nil {
		return err
	}

	current, err := service.entries.GetByID(context, userID, payload.EntryID, false)
	if err != nil {
		return err
	}

	progressAdvanced := payload.LastReadChapter > current.LastReadChapter
	if !entry.StatusTransitionAllowed(current.Status, payload.Status, progressAdvanced) {
		service.logger.Info("replay_status_downgrade_ignored",
			slog.String("entry_id", payload.EntryID),
			slog.String("from", current.Status),
			slog.String("to", payload.Status),
		)
		return nil
	}
	if current.Status == payload.Status {
		return nil
	}

	_, err = service.entries.UpdateStatus(context, userID, payload.EntryID, payload.Status)
	return err
}

// applyLibraryDelete tombstones the entry; deleting what is already gone
// is success, replaying a delete must not error.
func (service *Service) applyLibraryDelete(context context.Context, userID string, action outbox.Action) error {
	var payload LibraryDeletePayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return apperr.BadRequest("Malformed action payload")
	}

	validator := &validate.Validator{}
	validator.Required(FieldEntryID, payload.EntryID).UUID(FieldEntryID, payload.EntryID)
	if err := validator.Err(); err != nil {
		return err
	}

	err := service.entries.SoftDelete(context, userID, payload.EntryID)
	if apperr.IsNotFound(err) {
		return nil
	}
	return err
}

func (service *Service) applySettingUpdate(context context.Context, userID string, action outbox.Action) error {
	var payload SettingUpdatePayload
	if err := json.Unmarshal(action.Payload, &payload); err != nil {
		return apperr.BadRequest("Malformed action payload")
	}

	validator := &validate.Validator{}
	validator.Custom(FieldSettings, len(payload.Settings) == 0, "Settings blob is required")
	if err := validator.Err(); err != nil {
		return err
	}

	return service.settings.ApplySettings(context, userID, payload.Settings, action.Time())
}

// # Verdicts

// classify maps an application error onto the client verdict: what can
// never succeed is permanent, what might succeed later — contention,
// rate limits, timeouts, plumbing failures — is retryable.
func classify(err error) string {
	if err == nil {
		return outbox.StatusSuccess
	}
	ae := apperr.As(err)
	if ae == nil {
		return outbox.StatusRetryable
	}
	switch ae.HTTPStatus {
	case http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusBadRequest, http.StatusUnprocessableEntity:
		return outbox.StatusPermanent
	default:
		return outbox.StatusRetryable
	}
}
