// Copyright (c) 2026 MangaTrack. All rights reserved.

package middleware

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
)

// CSRFPolicy defines the configuration surface needed by the CSRF middleware.
type CSRFPolicy interface {
	IsDevelopment() bool
	CSRFOrigins() []string
}

// CSRF validates the Origin of every state-changing request.
//
// # Flow
//  1. Safe methods (GET, HEAD, OPTIONS) pass through untouched.
//  2. Development mode bypasses validation entirely.
//  3. The Origin header (or Referer, when Origin is absent) must match the
//     request Host, the X-Forwarded-Host, or a configured allowed origin.
//  4. Requests with neither header pass: non-browser clients authenticate
//     with bearer tokens and carry no ambient cookie credentials.
//  5. Any mismatch is rejected with 403.
func CSRF(cfg CSRFPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Safe methods ───────────────────────────────────────────────
			switch request.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Development bypass ─────────────────────────────────────────
			if cfg.IsDevelopment() {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 3. Resolve the claimed origin ─────────────────────────────────
			claimed := request.Header.Get(constants.HeaderOrigin)
			if claimed == "" {
				if referer := request.Header.Get(constants.HeaderReferer); referer != "" {
					if parsed, err := url.Parse(referer); err == nil && parsed.Host != "" {
						claimed = parsed.Scheme + "://" + parsed.Host
					}
				}
			}

			// ── 4. Header-less clients ────────────────────────────────────────
			if claimed == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 5. Match against host and allow-list ──────────────────────────
			if originAllowed(claimed, request, cfg.CSRFOrigins()) {
				next.ServeHTTP(writer, request)
				return
			}

			respond.Error(writer, request, apperr.Forbidden("Origin verification failed"))
		})
	}
}

// originAllowed compares the claimed origin against the request host, the
// forwarded host, and the configured origin allow-list.
func originAllowed(claimed string, request *http.Request, allowed []string) bool {
	parsed, err := url.Parse(claimed)
	if err != nil || parsed.Host == "" {
		return false
	}

	// Host-based comparison ignores the scheme: TLS termination upstream
	// means the service often sees http while the browser saw https.
	if strings.EqualFold(parsed.Host, request.Host) {
		return true
	}
	if fwd := request.Header.Get(constants.HeaderXForwardedHost); fwd != "" && strings.EqualFold(parsed.Host, fwd) {
		return true
	}

	for _, origin := range allowed {
		if strings.EqualFold(claimed, origin) {
			return true
		}
	}
	return false
}

// InternalAuth guards service-to-service routes with a shared secret.
// Requests must carry the secret in X-Internal-Secret; comparison is
// constant-time. An empty configured secret disables the routes entirely.
func InternalAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if secret == "" {
				respond.Error(writer, request, apperr.NotFound("Route"))
				return
			}
			provided := request.Header.Get("X-Internal-Secret")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				respond.Error(writer, request, apperr.Forbidden("Invalid internal credentials"))
				return
			}
			next.ServeHTTP(writer, request)
		})
	}
}
