// Copyright (c) 2026 MangaTrack. All rights reserved.

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// DeliveryJobID derives the id of one delivery batch. Content-derived so a
// retried fan-out re-enqueues the same batches instead of duplicating them.
func DeliveryJobID(chapterID, lane string, index int) string {
	return fmt.Sprintf("delivery-%s-%s-%d", chapterID, lane, index)
}

// deliveryPayload rides the delivery queues between fan-out and delivery.
type deliveryPayload struct {
	SeriesID  string   `json:"seriesId"`
	ChapterID string   `json:"chapterId"`
	Number    float64  `json:"number"`
	UserIDs   []string `json:"userIds"`
}

/*
HandleFanoutJob is the fan-out stage, running after the coalesce window.

Subscribers are selected with the read filter applied at query time, so a
user who read the chapter during the window is excluded. Survivors are
split into fixed-size batches and enqueued on the delivery queue matching
their subscription tier; premium delivery drains on its own queue so free
traffic cannot starve it.

Parameters:
  - context: worker context.
  - job: payload carries {seriesId, chapterId, number, premiumOnly}.

Returns:
  - error: retryable on storage or queue failures; batch ids are
    content-derived, so a retry never duplicates work already enqueued.
*/
func (pipeline *Pipeline) HandleFanoutJob(context context.Context, job *queue.Job) error {
	var payload fanoutPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return queue.Permanent(fmt.Errorf("malformed fanout payload: %w", err))
	}
	if payload.ChapterID == "" || payload.SeriesID == "" {
		return queue.Permanent(fmt.Errorf("fanout payload missing chapter or series id"))
	}

	subscribers, err := pipeline.repo.ListSubscribers(context, payload.SeriesID, payload.ChapterID, payload.PremiumOnly)
	if err != nil {
		return err
	}
	if len(subscribers) == 0 {
		metrics.FanoutEvents.WithLabelValues("no_subscribers").Inc()
		return nil
	}

	var standard, premium []string
	for _, subscriber := range subscribers {
		if subscriber.Premium {
			premium = append(premium, subscriber.UserID)
		} else {
			standard = append(standard, subscriber.UserID)
		}
	}

	batches := 0
	enqueueLane := func(lane, queueName string, userIDs []string) error {
		for index := 0; len(userIDs) > 0; index++ {
			size := min(constants.DeliveryBatchSize, len(userIDs))
			body, err := json.Marshal(deliveryPayload{
				SeriesID:  payload.SeriesID,
				ChapterID: payload.ChapterID,
				Number:    payload.Number,
				UserIDs:   userIDs[:size],
			})
			if err != nil {
				return fmt.Errorf("marshal delivery payload: %w", err)
			}
			// Retried fan-outs coalesce into batches already enqueued, so
			// the created verdict is irrelevant here.
			_, err = pipeline.broker.Enqueue(context, &queue.Job{
				ID:      DeliveryJobID(payload.ChapterID, lane, index),
				Queue:   queueName,
				Payload: body,
			})
			if err != nil {
				return err
			}
			userIDs = userIDs[size:]
			batches++
		}
		return nil
	}

	if err := enqueueLane("std", constants.QueueDeliveryStandard, standard); err != nil {
		return err
	}
	if err := enqueueLane("prem", constants.QueueDeliveryPremium, premium); err != nil {
		return err
	}

	metrics.FanoutEvents.WithLabelValues("fanned_out").Inc()
	pipeline.logger.Info("chapter_fanned_out",
		slog.String("series_id", payload.SeriesID),
		slog.String("chapter_id", payload.ChapterID),
		slog.Int("subscribers", len(subscribers)),
		slog.Int("premium", len(premium)),
		slog.Int("batches", batches))
	return nil
}
