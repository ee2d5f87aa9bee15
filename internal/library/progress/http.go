// Copyright (c) 2026 MangaTrack. All rights reserved.

package progress

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/constants"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/ratelimit"
	requestutil "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/request"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
)

// Handler implements the HTTP layer for chapter progress.
//
// It owns a single route, PATCH /library/{entryID}/progress, which the
// library router attaches at composition time.
type Handler struct {
	progressService *Service
	limiter         *ratelimit.Service
}

// NewHandler constructs a progress [Handler]. The limiter enforces the
// per-user write budget; nil disables the throttle.
func NewHandler(service *Service, limiter *ratelimit.Service) *Handler {
	return &Handler{progressService: service, limiter: limiter}
}

/*
Mark handles PATCH /api/v1/library/{entryID}/progress.

Description: Advances the authenticated user's progress on one entry to the
given chapter and reports the XP, level, streak, and season outcome. Marking
chapter N reads every chapter up to N; XP is granted once per call, so a
catch-up binge is one read event.

Request:
  - body: MarkRequest (chapterNumber, optional sourceId, timestamp, deviceId)

Response:
  - 200: MarkResult: Updated entry plus gamification deltas
  - 400: Validation: Non-positive chapter, missing device id
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Entry unknown, deleted, or not owned
  - 429: ErrRateLimited: Per-user write budget exhausted
*/
func (handler *Handler) Mark(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if handler.limiter != nil {
		key := "progress:" + userID
		result := handler.limiter.Check(request.Context(), key, constants.ProgressWriteLimit, constants.ProgressWriteWindow)
		if !result.Allowed {
			respond.Error(writer, request, apperr.RateLimited(result.RetryAfterSeconds(time.Now())))
			return
		}
	}

	var input MarkRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.progressService.Mark(request.Context(), userID, chi.URLParam(request, "entryID"), input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, result)
}
