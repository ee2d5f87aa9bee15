// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.
  - Fail Fast: Malformed values (bad URLs, invalid flag JSON) abort startup
    instead of surfacing later as runtime errors.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the MangaTrack services.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// CanonicalURL is the public base URL of the service. Redirect targets
	// resolve against it and same-origin checks compare to its host.
	CanonicalURL string `env:"CANONICAL_URL,required"`

	// Cryptographic keys for session and identity signing
	SessionSecret  string `env:"SESSION_SECRET,required"`
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required"`

	// InternalAPISecret authenticates service-to-service calls on /internal routes.
	InternalAPISecret string `env:"INTERNAL_API_SECRET"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// CSRFAllowedOrigins is a comma-separated allowlist of Origins accepted
	// on state-changing requests, in addition to the canonical origin.
	CSRFAllowedOrigins string `env:"CSRF_ALLOWED_ORIGINS"`

	// RedirectAllowedHosts is a comma-separated allowlist of hosts that
	// post-auth redirects may target, in addition to the canonical host.
	RedirectAllowedHosts string `env:"REDIRECT_ALLOWED_HOSTS"`

	// FeatureFlags is a JSON object of boolean flags, e.g. {"fanout_v2":true}.
	FeatureFlags string `env:"FEATURE_FLAGS" envDefault:"{}"`

	// Worker settings
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"8"`
	SweepInterval     string `env:"SWEEP_INTERVAL"     envDefault:"1m"`

	// MetricsPort is where the worker binary serves /metrics and /health;
	// the API server exposes them on its own port instead.
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// CrawlSources is a JSON object mapping source adapter names to their
	// upstream base URLs, e.g. {"mangadex":"https://api.mangadex.org"}.
	// The worker registers a feed adapter per pair.
	CrawlSources string `env:"CRAWL_SOURCES" envDefault:"{}"`

	// Parsed values, populated by Load.
	canonical  *url.URL
	flags      map[string]bool
	sources    map[string]string
	sweepEvery time.Duration
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates
// every derived value. It returns an error on the first malformed setting.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// The canonical URL must be absolute; relative values would make every
	// redirect and origin comparison silently wrong.
	parsed, err := url.Parse(cfg.CanonicalURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("config: CANONICAL_URL %q is not an absolute URL", cfg.CanonicalURL)
	}
	cfg.canonical = parsed

	// Feature flags are strict JSON. A typo here should stop the boot, not
	// silently disable a flag in production.
	cfg.flags = map[string]bool{}
	if err := json.Unmarshal([]byte(cfg.FeatureFlags), &cfg.flags); err != nil {
		return nil, fmt.Errorf("config: FEATURE_FLAGS is not a valid JSON object of booleans: %w", err)
	}

	cfg.sources = map[string]string{}
	if err := json.Unmarshal([]byte(cfg.CrawlSources), &cfg.sources); err != nil {
		return nil, fmt.Errorf("config: CRAWL_SOURCES is not a valid JSON object of base URLs: %w", err)
	}

	cfg.sweepEvery, err = time.ParseDuration(cfg.SweepInterval)
	if err != nil {
		return nil, fmt.Errorf("config: SWEEP_INTERVAL %q is not a duration: %w", cfg.SweepInterval, err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// # Derived Values

// Canonical returns the parsed canonical base URL.
func (c *Config) Canonical() *url.URL {
	return c.canonical
}

// FeatureEnabled reports whether the named feature flag is set to true.
// Unknown flags are false.
func (c *Config) FeatureEnabled(name string) bool {
	return c.flags[name]
}

// Sources returns the configured crawl sources (adapter name → base URL).
func (c *Config) Sources() map[string]string {
	return c.sources
}

// SweepEvery returns the parsed periodic sweep interval.
func (c *Config) SweepEvery() time.Duration {
	return c.sweepEvery
}

// CSRFOrigins returns the configured CSRF origin allowlist plus the
// canonical origin itself.
func (c *Config) CSRFOrigins() []string {
	origins := []string{c.canonical.Scheme + "://" + c.canonical.Host}
	return append(origins, splitCSV(c.CSRFAllowedOrigins)...)
}

// RedirectHosts returns the configured redirect host allowlist plus the
// canonical host itself.
func (c *Config) RedirectHosts() []string {
	hosts := []string{c.canonical.Host}
	return append(hosts, splitCSV(c.RedirectAllowedHosts)...)
}

// splitCSV splits a comma-separated env value, trimming blanks.
func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
