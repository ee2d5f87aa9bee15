// Copyright (c) 2026 MangaTrack. All rights reserved.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/uuidv7"
)

// Per-user caps. Both drop delivery, never the read filter: a capped user
// simply sees the chapter in their library instead of their inbox.
const (
	// perUserLimit caps notifications per user across all series.
	perUserLimit  = 30
	perUserWindow = time.Hour

	// perSeriesLimit caps notifications per (user, series); rapid-release
	// series otherwise dominate the inbox.
	perSeriesLimit  = 5
	perSeriesWindow = time.Hour
)

/*
HandleDeliveryJob is the delivery stage for one batch.

Each recipient passes the per-user caps, then the whole batch is written
in one statement; the (user, chapter) unique key swallows duplicates from
retried or overlapping batches.

Parameters:
  - context: worker context.
  - job: payload carries {seriesId, chapterId, number, userIds}.

Returns:
  - error: retryable on storage failures; the idempotent insert makes
    retries safe.
*/
func (pipeline *Pipeline) HandleDeliveryJob(context context.Context, job *queue.Job) error {
	var payload deliveryPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed delivery payload: %w", err))
	}
	if payload.ChapterID == "" || len(payload.UserIDs) == 0 {
		return queue.Permanent(fmt.Errorf("delivery payload missing chapter or recipients"))
	}

	rows := make([]*Notification, 0, len(payload.UserIDs))
	throttled := 0
	for _, userID := range payload.UserIDs {
		if !pipeline.shouldDeliver(context, userID, payload.SeriesID) {
			throttled++
			continue
		}
		rows = append(rows, &Notification{
			ID:        uuidv7.New(),
			UserID:    userID,
			SeriesID:  payload.SeriesID,
			ChapterID: payload.ChapterID,
		})
	}
	if throttled > 0 {
		metrics.Notifications.WithLabelValues("throttled").Add(float64(throttled))
	}
	if len(rows) == 0 {
		return nil
	}

	inserted, err := pipeline.repo.InsertNotifications(context, rows)
	if err != nil {
		return err
	}
	metrics.Notifications.WithLabelValues("delivered").Add(float64(inserted))
	if duplicates := len(rows) - inserted; duplicates > 0 {
		metrics.Notifications.WithLabelValues("duplicate").Add(float64(duplicates))
	}

	pipeline.logger.Info("notifications_delivered",
		slog.String("chapter_id", payload.ChapterID),
		slog.Int("recipients", len(payload.UserIDs)),
		slog.Int("inserted", inserted),
		slog.Int("throttled", throttled))
	return nil
}

// shouldDeliver applies the per-series cap, then the per-user cap. When no
// limiter is wired (tests, minimal deploys) every delivery passes.
func (pipeline *Pipeline) shouldDeliver(context context.Context, userID, seriesID string) bool {
	if pipeline.limiter == nil {
		return true
	}
	seriesCap := pipeline.limiter.Check(context, "notify:series:"+userID+":"+seriesID, perSeriesLimit, perSeriesWindow)
	if !seriesCap.Allowed {
		return false
	}
	userCap := pipeline.limiter.Check(context, "notify:user:"+userID, perUserLimit, perUserWindow)
	return userCap.Allowed
}
