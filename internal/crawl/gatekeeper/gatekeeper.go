// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package gatekeeper is the single admission point for crawl work.

Every request to sync a SeriesSource — user-driven, gap recovery,
discovery, or the periodic sweep — passes through one decision function
that weighs the live sync-queue depth, the series' catalog tier, and the
request reason. The decision is pure: same inputs, same outcome.

Depth zones and their shedding behavior:

	depth <  2500  HEALTHY     admit everything
	      <  5000  ELEVATED    shed P3
	      < 10000  OVERLOADED  shed P3 and discovery-class P2
	      < 15000  CRITICAL    P0 only
	      ≤ 20000  MELTDOWN    deny all
	      > 20000  HALT        deny all

A failed depth lookup counts as depth 0. Denying on a broken lookup would
wedge the system: the sweep could never refill the queue that the lookup
is supposed to observe.
*/
package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/metrics"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
)

// Reason is why a crawl was requested. Closed set.
type Reason string

const (
	ReasonUserRequest Reason = "USER_REQUEST"
	ReasonGapRecovery Reason = "GAP_RECOVERY"
	ReasonDiscovery   Reason = "DISCOVERY"
	ReasonPeriodic    Reason = "PERIODIC"
)

// Priority is the queue priority band. Lower runs first.
type Priority int

const (
	// PriorityUrgent (P0) is user-visible work: explicit requests and gap
	// recovery.
	PriorityUrgent Priority = 1
	// PriorityHigh (P1) is reserved for future use.
	PriorityHigh Priority = 2
	// PriorityNormal (P2) is discovery and the A/B periodic sweep.
	PriorityNormal Priority = 3
	// PriorityLow (P3) is the Tier-C periodic sweep.
	PriorityLow Priority = 4
)

// Zone is the queue-depth band the decision was made in.
type Zone string

const (
	ZoneHealthy    Zone = "healthy"
	ZoneElevated   Zone = "elevated"
	ZoneOverloaded Zone = "overloaded"
	ZoneCritical   Zone = "critical"
	ZoneMeltdown   Zone = "meltdown"
	ZoneHalt       Zone = "halt"
)

// Depth thresholds separating the zones.
const (
	depthElevated   = 2_500
	depthOverloaded = 5_000
	depthCritical   = 10_000
	depthMeltdown   = 15_000
	depthHalt       = 20_000
)

// ZoneForDepth buckets a backlog depth (waiting + delayed).
func ZoneForDepth(depth int) Zone {
	switch {
	case depth < depthElevated:
		return ZoneHealthy
	case depth < depthOverloaded:
		return ZoneElevated
	case depth < depthCritical:
		return ZoneOverloaded
	case depth < depthMeltdown:
		return ZoneCritical
	case depth <= depthHalt:
		return ZoneMeltdown
	default:
		return ZoneHalt
	}
}

// Decision is the admission outcome.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Priority Priority `json:"priority,omitempty"`
	Zone     Zone     `json:"zone"`
	// DenyReason is set when Allowed is false.
	DenyReason string `json:"denyReason,omitempty"`
}

// PriorityFor implements the assignment table: user requests and gap
// recovery are always urgent; discovery is normal; the periodic sweep is
// normal for Tiers A/B and low for Tier C (and for unknown tiers, which
// behave as C).
func PriorityFor(reason Reason, tier series.Tier) Priority {
	switch reason {
	case ReasonUserRequest, ReasonGapRecovery:
		return PriorityUrgent
	case ReasonDiscovery:
		return PriorityNormal
	case ReasonPeriodic:
		if tier == series.TierA || tier == series.TierB {
			return PriorityNormal
		}
		return PriorityLow
	default:
		return PriorityLow
	}
}

/*
Decide is the pure admission function.

Parameters:
  - depth: sync-queue backlog (waiting + delayed); 0 on lookup failure.
  - tier: the series' catalog tier; unknown values behave as Tier C.
  - reason: why the crawl is requested.
  - hasSucceeded: whether the source has a last_success_at.

The Tier-A one-shot rule is checked first: a premium source that already
completed a sync is never re-crawled periodically. Discovery and user
requests bypass the rule.
*/
func Decide(depth int, tier series.Tier, reason Reason, hasSucceeded bool) Decision {
	zone := ZoneForDepth(depth)

	if tier == series.TierA && reason == ReasonPeriodic && hasSucceeded {
		return Decision{Zone: zone, DenyReason: "tier-a one-shot: source already synced"}
	}

	priority := PriorityFor(reason, tier)

	switch zone {
	case ZoneHealthy:
		return Decision{Allowed: true, Priority: priority, Zone: zone}
	case ZoneElevated:
		if priority >= PriorityLow {
			return Decision{Zone: zone, DenyReason: "queue elevated: low-priority sync shed"}
		}
		return Decision{Allowed: true, Priority: priority, Zone: zone}
	case ZoneOverloaded:
		// Keep urgent work and the A/B periodic sweep; shed discovery and
		// everything below.
		if priority == PriorityUrgent || (reason == ReasonPeriodic && priority == PriorityNormal) {
			return Decision{Allowed: true, Priority: priority, Zone: zone}
		}
		return Decision{Zone: zone, DenyReason: "queue overloaded: opportunistic sync shed"}
	case ZoneCritical:
		if priority == PriorityUrgent {
			return Decision{Allowed: true, Priority: priority, Zone: zone}
		}
		return Decision{Zone: zone, DenyReason: "queue critical: only urgent syncs admitted"}
	default:
		return Decision{Zone: zone, DenyReason: "queue meltdown: all syncs denied"}
	}
}

// # Gatekeeper Service

// DepthCounter reports the backlog of one queue.
type DepthCounter interface {
	Counts(ctx context.Context, queue string) (queue.Counts, error)
}

// SourceReader supplies the last-success flag for the one-shot rule.
type SourceReader interface {
	GetCrawlInfo(ctx context.Context, sourceID string) (series.CrawlInfo, bool, error)
}

// Enqueuer adds admitted jobs to the sync queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) (bool, error)
}

// Gatekeeper wires the pure decision to the live queue and catalog.
type Gatekeeper struct {
	depths  DepthCounter
	sources SourceReader
	sink    Enqueuer
	logger  *slog.Logger
}

// New builds a gatekeeper over the sync queue backend.
func New(depths DepthCounter, sources SourceReader, sink Enqueuer, logger *slog.Logger) *Gatekeeper {
	return &Gatekeeper{
		depths:  depths,
		sources: sources,
		sink:    sink,
		logger:  logger,
	}
}

// SyncJobID is the content-derived id that serializes work per source.
func SyncJobID(sourceID string) string {
	return "sync-" + sourceID
}

/*
Admit runs the full admission path for one source.

The queue-depth lookup fails open (depth 0). The source lookup is only
needed for the Tier-A periodic one-shot; a missing row means the source
has never succeeded and is admitted.
*/
func (gatekeeper *Gatekeeper) Admit(ctx context.Context, sourceID string, tier series.Tier, reason Reason) (Decision, error) {
	depth := 0
	counts, err := gatekeeper.depths.Counts(ctx, constants.QueueSyncSource)
	if err != nil {
		gatekeeper.logger.Warn("admission_depth_lookup_failed", slog.Any("error", err))
	} else {
		depth = counts.Backlog()
	}

	hasSucceeded := false
	if reason == ReasonPeriodic && tier == series.TierA {
		info, found, err := gatekeeper.sources.GetCrawlInfo(ctx, sourceID)
		if err != nil {
			return Decision{}, err
		}
		hasSucceeded = found && info.HasSucceeded()
	}

	decision := Decide(depth, tier, reason, hasSucceeded)
	metrics.AdmissionDecisions.WithLabelValues(string(decision.Zone), string(reason), allowedLabel(decision.Allowed)).Inc()

	if !decision.Allowed {
		gatekeeper.logger.Debug("sync_admission_denied",
			slog.String("source_id", sourceID),
			slog.String("reason", string(reason)),
			slog.String("zone", string(decision.Zone)),
			slog.String("deny_reason", decision.DenyReason))
	}
	return decision, nil
}

/*
EnqueueIfAllowed admits and, on allow, queues the sync job.

The job id sync-{sourceID} makes enqueues idempotent: a duplicate request
for a source that is already queued or running coalesces and still counts
as success here. Denials return false with a nil error; only enqueue and
lookup failures propagate.
*/
func (gatekeeper *Gatekeeper) EnqueueIfAllowed(ctx context.Context, sourceID string, tier series.Tier, reason Reason, extra map[string]any) (bool, error) {
	decision, err := gatekeeper.Admit(ctx, sourceID, tier, reason)
	if err != nil {
		return false, err
	}
	if !decision.Allowed {
		return false, nil
	}

	payload := map[string]any{"seriesSourceId": sourceID, "reason": string(reason)}
	for key, value := range extra {
		payload[key] = value
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("gatekeeper: marshal sync payload: %w", err)
	}

	added, err := gatekeeper.sink.Enqueue(ctx, &queue.Job{
		ID:       SyncJobID(sourceID),
		Queue:    constants.QueueSyncSource,
		Payload:  body,
		Priority: int(decision.Priority),
	})
	if err != nil {
		return false, err
	}
	if added {
		gatekeeper.logger.Debug("sync_enqueued",
			slog.String("source_id", sourceID),
			slog.String("reason", string(reason)),
			slog.Int("priority", int(decision.Priority)))
	}
	return true, nil
}

func allowedLabel(allowed bool) string {
	if allowed {
		return "true"
	}
	return "false"
}
