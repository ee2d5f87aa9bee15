// Copyright (c) 2026 MangaTrack. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/entry"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/importer"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/progress"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/reconcile"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/notify"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/config"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/middleware"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/account"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/users/auth"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Limits is the /ops/limits handler — rate-limit store introspection.
	Limits http.HandlerFunc

	// Auth handles authentication routes (login, register, lockout probes).
	Auth *auth.Handler

	// Account handles the private profile surface and public discovery.
	Account *account.Handler

	// Library handles the user library CRUD under /library.
	Library *entry.Handler

	// Progress handles the chapter progress mark under /library.
	Progress *progress.Handler

	// Importer handles batch imports under /library/import.
	Importer *importer.Handler

	// Reconcile handles offline-action replay under /sync.
	Reconcile *reconcile.Handler

	// Notify handles the notification inbox.
	Notify *notify.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(verifier))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)

	// Operator endpoints, guarded by the shared internal secret.
	r.Group(func(internal chi.Router) {
		internal.Use(middleware.InternalAuth(cfg.InternalAPISecret))
		internal.Get("/metrics", promhttp.Handler().ServeHTTP)
		internal.Get("/ops/limits", h.Limits)
	})

	// # Application API
	// Domain-specific route groups mounted under versioned prefix.
	r.Route("/api/v1", func(api chi.Router) {
		// Origin verification on every state-changing request; safe
		// methods and headerless API clients pass through.
		api.Use(middleware.CSRF(cfg))

		api.Mount("/auth", h.Auth.Routes())

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.RequireAuth)
			protected.Mount("/me", h.Account.Routes())
			protected.Mount("/library", h.Library.Routes(h.Progress.Mark, h.Importer.Start, h.Importer.Poll))
			protected.Mount("/sync", h.Reconcile.Routes())
			protected.Mount("/notifications", h.Notify.Routes())
		})

		// Anonymous discovery routes (/users/{id}, /leaderboard) catch
		// whatever the static mounts above did not claim.
		api.Mount("/", h.Account.PublicRoutes())
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
