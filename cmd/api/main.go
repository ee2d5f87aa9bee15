// Copyright (c) 2026 MangaTrack. All rights reserved.

// Command api is the entry point for the MangaTrack HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Wire HTTP handlers.
//  7. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/api"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/importer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/reconcile"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/notify"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/audit"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/config"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/migration"
	pgstore "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/postgres"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
	redisstore "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/redis"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/sec"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/account"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "mangatrack"))
	slog.SetDefault(log)

	log.Info("[MangaTrack] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "mangatrack"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}
	respond.SetDevMode(cfg.IsDevelopment())

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// appCtx outlives startup: background middleware (rate-limit cleanup)
	// runs until shutdown.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(appCtx, 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")

	// ── 6. Shared Infrastructure ──────────────────────────────────────────
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt service")

	limiter := ratelimit.NewService(ratelimit.NewRedisLimiter(rdb))
	jobs := queue.NewRedisQueue(rdb)
	auditRepo := audit.NewPostgresRepository(pool)

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 8. Domain Wiring ──────────────────────────────────────────────────
	authService := auth.NewService(
		auth.NewUserRepository(pool),
		auth.NewSessionRepository(pool),
		auth.NewResetTokenRepository(rdb),
		auth.NewVerificationTokenRepository(rdb),
		auth.NewAttemptRepository(pool),
		auditRepo,
		jwtSvc,
		log,
	)
	authHandler := auth.NewHandler(authService, limiter, auth.RedirectPolicy{
		Canonical:    cfg.Canonical(),
		AllowedHosts: cfg.RedirectHosts(),
	})

	accountService := account.NewService(
		account.NewAccountRepository(pool),
		account.NewStatsRepository(pool),
		account.NewPreferencesRepository(pool),
		account.NewSessionRepository(pool),
		log,
	)
	accountHandler := account.NewHandler(accountService)

	entryRepo := entry.NewPostgresRepository(pool)
	entryService := entry.NewService(entryRepo, jobs, log)
	entryHandler := entry.NewHandler(entryService)

	progressRepo := progress.NewPostgresRepository(pool, log)
	progressService := progress.NewService(progressRepo, log)
	progressHandler := progress.NewHandler(progressService, limiter)

	importService := importer.NewService(importer.NewPostgresRepository(pool), jobs, sec.NewSSRFGuard(nil), log)
	importHandler := importer.NewHandler(importService)

	reconcileService := reconcile.NewService(entryRepo, progressRepo, reconcile.NewPostgresStore(pool), log)
	reconcileHandler := reconcile.NewHandler(reconcileService)

	notifyHandler := notify.NewHandler(notify.NewPostgresRepository(pool))

	// ── 9. HTTP Server ────────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Limits:    api.NewLimitsHandler(limiter),
		Auth:      authHandler,
		Account:   accountHandler,
		Library:   entryHandler,
		Progress:  progressHandler,
		Importer:  importHandler,
		Reconcile: reconcileHandler,
		Notify:    notifyHandler,
	}

	server := api.NewServer(appCtx, cfg, log, jwtSvc, handlers)

	// ── 10. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
