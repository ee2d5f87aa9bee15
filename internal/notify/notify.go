// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package notify is the fan-out pipeline: chapter_detected events become
at-most-one notification per subscribed user.

The pipeline is three stages, each a queue hop:

	intake   — health-gate the event, then park it on a delayed job keyed
	           by chapter so bursts from several sources coalesce.
	fan-out  — after the coalesce window, select subscribers (excluding
	           anyone who already read the chapter) and split them into
	           fixed-size delivery batches by subscription tier.
	delivery — apply per-user caps and insert rows; the (user, chapter)
	           unique key makes duplicate deliveries vanish.

Load shedding is deliberate and silent to users: a dropped event costs a
notification, never a chapter — the catalog already has it, and the next
library visit shows it.
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
)

// # Entities

// Notification is one user's pointer at one new chapter.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SeriesID  string    `json:"seriesId"`
	ChapterID string    `json:"chapterId"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is one fan-out candidate after the read filter.
type Subscriber struct {
	UserID  string
	Premium bool
}

// Repository is the notification storage contract.
type Repository interface {
	// ListSubscribers selects fan-out candidates for a chapter in one
	// round trip: active entries in a notifiable status whose user has
	// not already read the chapter. premiumOnly narrows to premium
	// subscribers (critical health).
	ListSubscribers(context context.Context, seriesID, chapterID string, premiumOnly bool) ([]Subscriber, error)

	// InsertNotifications writes a batch, silently skipping (user,
	// chapter) duplicates. It returns how many rows were actually
	// inserted.
	InsertNotifications(context context.Context, rows []*Notification) (int, error)

	// ListForUser returns a user's newest notifications.
	ListForUser(context context.Context, userID string, limit int) ([]*Notification, error)

	// CountUnread returns the user's unread badge count.
	CountUnread(context context.Context, userID string) (int, error)

	// MarkRead flags one notification read, scoped to its owner.
	MarkRead(context context.Context, userID, notificationID string) error
}

// # System Health

// HealthState is the pipeline's load verdict, derived from the delivery
// queue backlog.
type HealthState string

const (
	HealthNormal     HealthState = "normal"
	HealthOverloaded HealthState = "overloaded" // shed Tier-C series
	HealthCritical   HealthState = "critical"   // premium subscribers only
	HealthRejected   HealthState = "rejected"   // drop all new events
)

// Delivery backlog thresholds for the health aggregate.
const (
	healthOverloadedBacklog = 10_000
	healthCriticalBacklog   = 20_000
	healthRejectedBacklog   = 50_000
)

// HealthForBacklog maps the combined delivery backlog onto a state.
func HealthForBacklog(backlog int) HealthState {
	switch {
	case backlog >= healthRejectedBacklog:
		return HealthRejected
	case backlog >= healthCriticalBacklog:
		return HealthCritical
	case backlog >= healthOverloadedBacklog:
		return HealthOverloaded
	default:
		return HealthNormal
	}
}

// # Pipeline

// Broker is the queue slice the pipeline consumes: backlog inspection for
// the health gate plus enqueueing the next stage. It is satisfied by any
// [queue.Queue] backend.
type Broker interface {
	Counts(ctx context.Context, queueName string) (queue.Counts, error)
	Enqueue(ctx context.Context, job *queue.Job) (bool, error)
}

// Pipeline implements all three fan-out stages. One instance is shared by
// the event producer (sync workers) and the queue workers.
type Pipeline struct {
	repo    Repository
	broker  Broker
	limiter *ratelimit.Service
	logger  *slog.Logger
}

func NewPipeline(repo Repository, broker Broker, limiter *ratelimit.Service, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		repo:    repo,
		broker:  broker,
		limiter: limiter,
		logger:  logger,
	}
}

// FanoutJobID derives the coalescing job id: one live fan-out per chapter,
// no matter how many sources publish it inside the window.
func FanoutJobID(chapterID string) string {
	return "fanout-" + chapterID
}

// fanoutPayload rides the notification queue between intake and fan-out.
type fanoutPayload struct {
	SeriesID    string  `json:"seriesId"`
	ChapterID   string  `json:"chapterId"`
	Number      float64 `json:"number"`
	PremiumOnly bool    `json:"premiumOnly,omitempty"`
}

// Health computes the current load verdict. Backlog lookups fail open to
// normal: when Redis is unreachable the pipeline keeps accepting, because
// delivery inserts are idempotent and a wrongly dropped event is the only
// unrecoverable outcome.
func (pipeline *Pipeline) Health(context context.Context) HealthState {
	backlog := 0
	for _, queueName := range []string{constants.QueueDeliveryStandard, constants.QueueDeliveryPremium} {
		counts, err := pipeline.broker.Counts(context, queueName)
		if err != nil {
			pipeline.logger.Warn("notify_health_check_failed",
				slog.String("queue", queueName),
				slog.Any("error", err))
			return HealthNormal
		}
		backlog += counts.Backlog()
	}
	return HealthForBacklog(backlog)
}

/*
ChapterDetected is the intake stage; the sync workers call it once per
first-appearance chapter.

The event is health-gated, then parked on a delayed job so that the same
chapter detected by several sources within the coalesce window collapses
into one fan-out.

Parameters:
  - context: caller context.
  - seriesID, tier: the chapter's series and its catalog tier.
  - chapterID, number: the canonical chapter.

Returns:
  - error: only when the queue write fails; dropped events return nil.
*/
func (pipeline *Pipeline) ChapterDetected(context context.Context, seriesID string, tier series.Tier, chapterID string, number float64) error {
	health := pipeline.Health(context)

	switch {
	case health == HealthRejected:
		metrics.FanoutEvents.WithLabelValues("rejected").Inc()
		pipeline.logger.Warn("fanout_event_rejected",
			slog.String("series_id", seriesID),
			slog.String("chapter_id", chapterID))
		return nil
	case health == HealthCritical:
		metrics.FanoutEvents.WithLabelValues("premium_only").Inc()
	case health == HealthOverloaded && tier == series.TierC:
		metrics.FanoutEvents.WithLabelValues("shed_tier_c").Inc()
		pipeline.logger.Warn("fanout_event_shed",
			slog.String("series_id", seriesID),
			slog.String("chapter_id", chapterID),
			slog.String("tier", string(tier)))
		return nil
	default:
		metrics.FanoutEvents.WithLabelValues("accepted").Inc()
	}

	payload, err := json.Marshal(fanoutPayload{
		SeriesID:    seriesID,
		ChapterID:   chapterID,
		Number:      number,
		PremiumOnly: health == HealthCritical,
	})
	if err != nil {
		return fmt.Errorf("marshal fanout payload: %w", err)
	}

	created, err := pipeline.broker.Enqueue(context, &queue.Job{
		ID:      FanoutJobID(chapterID),
		Queue:   constants.QueueNotification,
		Payload: payload,
		RunAt:   time.Now().Add(constants.FanoutCoalesceWindow),
	})
	if err != nil {
		return err
	}
	if !created {
		// Another source already announced this chapter inside the window.
		metrics.FanoutEvents.WithLabelValues("coalesced").Inc()
	}
	return nil
}
