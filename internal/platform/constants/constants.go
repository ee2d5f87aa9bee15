// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, rate limits, queue names, and cross-cutting keys
that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Transaction Budgets: Per-operation database deadlines.
  - Queues: Canonical queue names shared by producers and workers.
  - Security: JWT issuers, lockout thresholds, and cookie configuration.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "mangatrack-api"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Transaction Budgets

const (
	// DefaultTxTimeout bounds a single logical database transaction.
	DefaultTxTimeout = 15 * time.Second

	// BulkTxTimeout bounds long-running bulk writes such as library imports.
	BulkTxTimeout = 45 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP.
	DefaultRateLimitRPS = 100.0

	// DefaultRateLimitBurst is the maximum burst allowed for the rate limiter.
	DefaultRateLimitBurst = 150

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute

	// ProgressWriteLimit caps progress marks per user per window. Sixty a
	// minute outpaces any human reader; offline backlogs drain through the
	// replay endpoint, which this budget does not cover.
	ProgressWriteLimit = 60

	// ProgressWriteWindow is the budget window for progress marks.
	ProgressWriteWindow = 1 * time.Minute
)

// # Queues

const (
	QueueSyncSource       = "sync-source"
	QueueSeriesResolution = "series-resolution"
	QueueNotification     = "notification"
	QueueDeliveryStandard = "notification-delivery"
	QueueDeliveryPremium  = "notification-delivery-premium"
	QueueImport           = "import"
)

// # Crawl & Fan-out

const (
	// SweepInterval is the periodic scheduler tick on the leader node.
	SweepInterval = 1 * time.Minute

	// SweepBatchLimit bounds how many due sources one sweep may enqueue.
	SweepBatchLimit = 500

	// FanoutCoalesceWindow delays chapter fan-out so several sources
	// publishing the same chapter collapse into one batch.
	FanoutCoalesceWindow = 15 * time.Second

	// DeliveryBatchSize is how many recipients one delivery job carries.
	DeliveryBatchSize = 100
)

// # Library Sync Health

// Values of LibraryEntry.sync_status, mirrored from source health by the
// sync workers and surfaced read-only in the library API.
const (
	SyncStatusHealthy  = "healthy"
	SyncStatusDegraded = "degraded"
	SyncStatusFailed   = "failed"
)

// # Library Metadata Resolution

// Values of LibraryEntry.metadata_status, advanced by the resolution
// worker.
const (
	MetadataStatusPending     = "pending"
	MetadataStatusEnriched    = "enriched"
	MetadataStatusUnavailable = "unavailable"
	MetadataStatusFailed      = "failed"
)

// Values of LibraryEntry.metadata_source. User overrides pin the entry
// against automatic re-resolution.
const (
	MetadataSourceAuto         = "AUTO"
	MetadataSourceUserOverride = "USER_OVERRIDE"
)

// MetadataRetryCooldown is the minimum gap between manual metadata retry
// attempts on one entry.
const MetadataRetryCooldown = 2 * time.Minute

// # Authentication

const (
	// AuthIssuer is the standard 'iss' claim in JWTs.
	AuthIssuer = "mangatrack.app"

	// ContextKeyUser is the key used to store user claims in the request context.
	ContextKeyUser = "user_claims"

	// RefreshTokenCookieName is the name of the cookie that stores the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenCookiePath is the scoped path for the refresh token cookie.
	RefreshTokenCookiePath = "/api/v1/auth"

	// LoginLockoutWindow is the sliding window over which login failures count.
	LoginLockoutWindow = 15 * time.Minute

	// LoginLockoutThreshold locks an account or IP after this many failures.
	LoginLockoutThreshold = 5

	// LoginLockoutRetryAfter is the Retry-After hint returned on lockout.
	LoginLockoutRetryAfter = 900

	// LockoutCheckLimit caps lockout-check probes per email per window so the
	// endpoint cannot be swept to map which accounts are under attack.
	LockoutCheckLimit = 10

	// LockoutCheckWindow is the probe budget window for lockout checks.
	LockoutCheckWindow = 1 * time.Minute
)

// # HTTP Headers

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderOrigin         = "Origin"
	HeaderReferer        = "Referer"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXForwardedHost = "X-Forwarded-Host"
	HeaderAuthorization  = "Authorization"
	HeaderRetryAfter     = "Retry-After"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldMeta    = "meta"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldItems   = "items"
	FieldTotal   = "total"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldApp     = "app"
	FieldVersion = "version"
	FieldChecks  = "checks"
)

// # Database Schemas

const (
	SchemaCatalog = "catalog"
	SchemaLibrary = "library"
	SchemaUsers   = "users"
	SchemaSystem  = "system"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixResetToken  = "auth:reset_token:"
	RedisPrefixVerifyToken = "auth:verify_token:"
	RedisPrefixSession     = "auth:session:"
	RedisPrefixRateLimit   = "ratelimit:"
	RedisPrefixQueue       = "queue:"
	RedisPrefixLock        = "lock:"
	RedisPrefixLeader      = "leader:"
)

// # Maintenance (worker leader duties)

const (
	// SweepLeaseTTL is the leadership lease for the periodic scheduler.
	// Renewed at a third of the TTL; a crashed leader is replaced within it.
	SweepLeaseTTL = 30 * time.Second

	// MaintenanceInterval is the cadence of the retention/reconciliation
	// tick. Individual duties track their own last-run time, so a shorter
	// tick only makes them punctual, not more frequent.
	MaintenanceInterval = 1 * time.Hour

	// TrustDecayInterval spaces the daily trust recovery step.
	TrustDecayInterval = 24 * time.Hour

	// CounterReconcileInterval spaces the chapters_read recount.
	CounterReconcileInterval = 24 * time.Hour

	// FailedJobRetention keeps terminally failed jobs inspectable before
	// the sweep drops them from the queue's failed set.
	FailedJobRetention = 7 * 24 * time.Hour

	// LoginAttemptRetention bounds the login_attempts ledger. The lockout
	// window only needs minutes; the rest is abuse forensics.
	LoginAttemptRetention = 30 * 24 * time.Hour

	// AuditLogRetention bounds the audit ledger.
	AuditLogRetention = 90 * 24 * time.Hour
)
