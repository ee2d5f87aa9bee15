// Copyright (c) 2026 MangaTrack. All rights reserved.

// Command worker runs the background half of MangaTrack: the crawl
// sweep, the job queues (sync, resolution, fan-out, delivery, import)
// and the leader-gated maintenance duties.
//
// Any number of workers may run against the same Redis; the sweep and
// maintenance loops elect one leader while job processing spreads over
// every instance. The API binary owns schema migrations, so the worker
// assumes the schema is current.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/catalog/series"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/adapter"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/gatekeeper"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/resolver"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/crawl/syncer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/importer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/notify"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/audit"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/config"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/locks"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/maintenance"
	pgstore "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/postgres"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/queue"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
	redisstore "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/redis"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	log := rawLog.With(slog.String("app", "mangatrack-worker"))
	slog.SetDefault(log)

	log.Info("[MangaTrack] worker_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "mangatrack-worker"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	// ── 5. Shared Infrastructure ──────────────────────────────────────────
	jobs := queue.NewRedisQueue(rdb)
	limiter := ratelimit.NewService(ratelimit.NewRedisLimiter(rdb))
	failures := audit.NewPostgresFailureRepository(pool)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	nodeID := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	elector := locks.NewElector(locks.NewLocker(rdb), "sweep", nodeID, constants.SweepLeaseTTL, log)

	// ── 6. Crawl & Fan-out Wiring ─────────────────────────────────────────
	feeds := make([]adapter.Adapter, 0, len(cfg.Sources()))
	for name, baseURL := range cfg.Sources() {
		feeds = append(feeds, adapter.NewFeedAdapter(name, baseURL, 0))
	}
	registry := adapter.NewRegistry(feeds...)
	log.Info("adapters_registered", slog.Any("sources", registry.Names()))

	catalogRepo := series.NewPostgresRepository(pool)
	entryRepo := entry.NewPostgresRepository(pool)
	progressService := progress.NewService(progress.NewPostgresRepository(pool, log), log)

	pipeline := notify.NewPipeline(notify.NewPostgresRepository(pool), jobs, limiter, log)
	gate := gatekeeper.New(jobs, catalogRepo, jobs, log)

	syncService := syncer.NewService(catalogRepo, registry, entryRepo, pipeline, log)
	resolveService := resolver.NewService(entryRepo, catalogRepo, registry, gate, log)
	importWorker := importer.NewWorker(
		importer.NewPostgresRepository(pool),
		entryRepo,
		progressService,
		jobs,
		cfg.CanonicalURL,
		log,
	)

	sweeper := syncer.NewSweeper(catalogRepo, gate, elector, log)
	sweeper.SetInterval(cfg.SweepEvery())

	// ── 7. Queue Consumers ────────────────────────────────────────────────
	// Sync dominates the load and gets the configured concurrency; the
	// remaining queues are short DB-bound jobs and run on small budgets.
	workers := queue.NewPool(jobs, failures, log)
	workers.Register(constants.QueueSyncSource, cfg.WorkerConcurrency, syncService.HandleSyncJob)
	workers.Register(constants.QueueSeriesResolution, 2, resolveService.HandleResolutionJob)
	workers.Register(constants.QueueNotification, 2, pipeline.HandleFanoutJob)
	workers.Register(constants.QueueDeliveryStandard, 4, pipeline.HandleDeliveryJob)
	workers.Register(constants.QueueDeliveryPremium, 2, pipeline.HandleDeliveryJob)
	workers.Register(constants.QueueImport, 2, importWorker.HandleImportJob)

	// ── 8. Maintenance Duties (leader only) ───────────────────────────────
	janitor := maintenance.New(elector, log)
	janitor.Add("failed_job_sweep", constants.MaintenanceInterval, func(ctx context.Context) error {
		cutoff := time.Now().Add(-constants.FailedJobRetention)
		for _, queueName := range []string{
			constants.QueueSyncSource,
			constants.QueueSeriesResolution,
			constants.QueueNotification,
			constants.QueueDeliveryStandard,
			constants.QueueDeliveryPremium,
			constants.QueueImport,
		} {
			if _, err := jobs.PruneFailed(ctx, queueName, cutoff); err != nil {
				return err
			}
		}
		return nil
	})
	janitor.Add("session_sweep", constants.MaintenanceInterval, auth.NewSessionRepository(pool).DeleteExpired)
	janitor.Add("login_attempt_prune", constants.MaintenanceInterval, func(ctx context.Context) error {
		_, err := auth.NewAttemptRepository(pool).PruneOlderThan(ctx, time.Now().Add(-constants.LoginAttemptRetention))
		return err
	})
	janitor.Add("audit_prune", constants.MaintenanceInterval, func(ctx context.Context) error {
		_, err := audit.NewPostgresRepository(pool).PruneOlderThan(ctx, time.Now().Add(-constants.AuditLogRetention))
		return err
	})
	janitor.Add("worker_failure_prune", constants.MaintenanceInterval, func(ctx context.Context) error {
		_, err := failures.PruneOlderThan(ctx, time.Now().Add(-constants.FailedJobRetention))
		return err
	})
	janitor.Add("trust_decay", constants.TrustDecayInterval, progressService.DecayTrust)
	janitor.Add("counter_reconcile", constants.CounterReconcileInterval, progressService.ReconcileCounters)

	// ── 9. Run ────────────────────────────────────────────────────────────
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		elector.Run(groupCtx)
		return groupCtx.Err()
	})
	group.Go(func() error { return sweeper.Run(groupCtx) })
	group.Go(func() error { return janitor.Run(groupCtx) })
	group.Go(func() error { return workers.Run(groupCtx) })
	group.Go(func() error { return serveMetrics(groupCtx, cfg.MetricsPort, log) })

	log.Info("worker_started",
		slog.String("node_id", nodeID),
		slog.Int("concurrency", cfg.WorkerConcurrency),
		slog.Duration("sweep_interval", cfg.SweepEvery()),
	)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker terminated", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("worker stopped cleanly")
}

// serveMetrics exposes /metrics and a trivial /health on the ops port
// until the context is canceled.
func serveMetrics(ctx context.Context, port string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	log.Info("metrics_listening", slog.String("port", port))
	select {
	case err := <-serveErr:
		// Bind or accept failure before any shutdown was requested.
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics server shutdown error", slog.Any("error", err))
		}
		<-serveErr
		return ctx.Err()
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
