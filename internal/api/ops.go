// Copyright (c) 2026 MangaTrack. All rights reserved.

package api

import (
	"net/http"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
)

// NewLimitsHandler creates the /ops/limits http.HandlerFunc.
//
// It exposes the rate-limit store snapshot so operators can see whether
// traffic is being judged by the shared Redis window or the per-instance
// fallback, and how full the fallback is.
func NewLimitsHandler(limiter *ratelimit.Service) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, limiter.Snapshot())
	}
}
