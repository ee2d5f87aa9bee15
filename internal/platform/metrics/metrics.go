// Copyright (c) 2026 MangaTrack. All rights reserved.

// Package metrics defines the Prometheus collectors shared across the
// MangaTrack services.
//
// Collectors are package-level and registered on the default registry via
// promauto; the /metrics endpoint exposes them with promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks waiting/delayed/active job counts per queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mangatrack_queue_depth",
		Help: "Current number of jobs per queue and state",
	}, []string{"queue", "state"})

	// JobsProcessed counts jobs leaving a worker by outcome.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_jobs_total",
		Help: "Total jobs processed by queue and outcome",
	}, []string{"queue", "outcome"})

	// JobDuration tracks handler execution time per queue.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mangatrack_job_duration_seconds",
		Help:    "Job handler execution time distribution",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"queue"})

	// AdmissionDecisions counts gatekeeper verdicts by zone, reason, and result.
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_crawl_admission_total",
		Help: "Total crawl admission decisions",
	}, []string{"zone", "reason", "allowed"})

	// SourceSyncs counts upstream sync attempts by result class.
	SourceSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_source_sync_total",
		Help: "Total source sync attempts by result",
	}, []string{"result"})

	// ChaptersDetected counts newly discovered canonical chapters.
	ChaptersDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mangatrack_chapters_detected_total",
		Help: "Total newly detected canonical chapters",
	})

	// FanoutEvents counts chapter_detected events by pipeline outcome.
	FanoutEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_fanout_events_total",
		Help: "Total fan-out events by outcome",
	}, []string{"outcome"})

	// Notifications counts notification delivery results.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_notifications_total",
		Help: "Total notification deliveries by result",
	}, []string{"result"})

	// ReplayActions counts outbox replay actions by type and verdict.
	ReplayActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_replay_actions_total",
		Help: "Total replayed outbox actions by type and status",
	}, []string{"type", "status"})

	// ImportEntries counts import batch rows by final disposition.
	ImportEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_import_entries_total",
		Help: "Total library import rows by disposition",
	}, []string{"disposition"})

	// XPGranted counts experience points awarded by source.
	XPGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_xp_granted_total",
		Help: "Total XP granted by source",
	}, []string{"source"})

	// LoginOutcomes counts login attempts by terminal outcome.
	LoginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_login_attempts_total",
		Help: "Total login attempts by outcome",
	}, []string{"outcome"})

	// RateLimitChecks counts limiter verdicts per backend.
	RateLimitChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mangatrack_ratelimit_checks_total",
		Help: "Total rate-limit checks by backend and verdict",
	}, []string{"backend", "allowed"})

	// BreakerState exposes the auth circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mangatrack_auth_breaker_state",
		Help: "Auth dependency circuit breaker state (0=closed, 1=half-open, 2=open)",
	})

	// LeaderStatus is 1 while this instance holds the sweep leadership lease.
	LeaderStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mangatrack_leader_status",
		Help: "Whether this instance currently holds the named leadership lease",
	}, []string{"lease"})
)
