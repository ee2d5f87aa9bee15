// Copyright (c) 2026 MangaTrack. All rights reserved.

package reconcile

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/library/outbox"
	requestutil "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/request"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
)

// MaxReplayBytes caps the replay request body.
const MaxReplayBytes = 1 << 20

// Handler implements the HTTP layer for offline sync replay.
type Handler struct {
	reconcileService *Service
}

// NewHandler constructs a replay [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{reconcileService: service}
}

// Routes returns the /sync router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/replay", handler.replay)
	return router
}

/*
POST /api/v1/sync/replay.

Description: Applies a batch of offline-recorded actions in client timestamp
order and returns a per-action verdict. The batch never fails as a whole:
each action resolves success, retryable, or permanent on its own.

Request:
  - body: outbox.ReplayRequest, application/json, at most [MaxReplayBytes] bytes

Response:
  - 200: outbox.ReplayResponse: One verdict per submitted action
  - 400: ErrBadRequest: Wrong content type, malformed JSON, oversized body
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) replay(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := requestutil.RequireJSON(request); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input outbox.ReplayRequest
	if err := requestutil.DecodeJSONLimit(writer, request, &input, MaxReplayBytes); err != nil {
		respond.Error(writer, request, err)
		return
	}

	results := handler.reconcileService.Replay(request.Context(), userID, input.Actions)

	// The response body is the wire contract shared with the device-side
	// replayer, so it is not wrapped in the standard envelope.
	respond.JSON(writer, http.StatusOK, outbox.ReplayResponse{Results: results})
}
