// Copyright (c) 2026 MangaTrack. All rights reserved.

package entry

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	requestutil "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/request"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/pagination"
)

// Handler implements the HTTP layer for the user library.
type Handler struct {
	entryService *Service
}

// NewHandler constructs a new library [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{entryService: service}
}

/*
Routes returns the /library router.

The progress and import endpoints live under /library paths but are owned
by their own packages; they are taken here as plain handler funcs so this
package stays free of their imports.

# Endpoints
  - POST   /                         : Adds a series by pasted source URL.
  - GET    /                         : Lists the library with status filter and paging.
  - POST   /import                   : Starts a batch import (delegated).
  - GET    /import                   : Polls an import job by ?id= (delegated).
  - GET    /{entryID}                : Fetches one entry.
  - PATCH  /{entryID}                : Changes the reading status.
  - DELETE /{entryID}                : Soft-deletes the entry.
  - POST   /{entryID}/retry-metadata : Re-queues failed metadata resolution.
  - PATCH  /{entryID}/progress       : Marks chapter progress (delegated).
*/
func (handler *Handler) Routes(markProgress, startImport, pollImport http.HandlerFunc) chi.Router {
	router := chi.NewRouter()

	router.Post("/", handler.add)
	router.Get("/", handler.list)

	router.Post("/import", startImport)
	router.Get("/import", pollImport)

	router.Get("/{entryID}", handler.get)
	router.Patch("/{entryID}", handler.updateStatus)
	router.Delete("/{entryID}", handler.remove)
	router.Post("/{entryID}/retry-metadata", handler.retryMetadata)
	router.Patch("/{entryID}/progress", markProgress)

	return router
}

/*
POST /api/v1/library.

Description: Adds a series to the authenticated user's library from a pasted
source URL. Metadata resolution is scheduled asynchronously; the entry comes
back immediately in metadata status pending.

Request:
  - body: AddInput (title, sourceUrl, sourceName, optional status)

Response:
  - 201: Entry: The stored entry, resolution pending
  - 400: Validation: Missing title, bad URL, unknown status
  - 401: ErrUnauthorized: Authentication required
  - 409: ErrConflict: The same source URL is already tracked
*/
func (handler *Handler) add(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input AddInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	entity, err := handler.entryService.Add(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, entity)
}

/*
GET /api/v1/library?status=reading&page=1&limit=20.

Description: Lists the authenticated user's library, most recently updated
first.

Request:
  - status: string (Optional reading-status filter)
  - page, limit: int (Standard pagination)

Response:
  - 200: []Entry + pagination meta
  - 400: Validation: Unknown status filter
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	filter := Filter{Status: request.URL.Query().Get("status")}

	entries, total, err := handler.entryService.List(request.Context(), userID, filter, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GET /api/v1/library/{entryID}.

Description: Fetches one library entry owned by the authenticated user.

Response:
  - 200: Entry
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Entry unknown, deleted, or not owned
*/
func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	entity, err := handler.entryService.Get(request.Context(), userID, chi.URLParam(request, "entryID"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, entity)
}

// updateStatusRequest is the PATCH /library/{entryID} payload.
type updateStatusRequest struct {
	Status string `json:"status"`
}

/*
PATCH /api/v1/library/{entryID}.

Description: Changes the reading status of an entry. An explicit user action
always passes the completed-is-sticky gate, so any valid status is accepted.

Request:
  - body: updateStatusRequest

Response:
  - 200: Entry: The updated entry
  - 400: Validation: Unknown status
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Entry unknown, deleted, or not owned
*/
func (handler *Handler) updateStatus(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateStatusRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	entity, err := handler.entryService.UpdateStatus(request.Context(), userID, chi.URLParam(request, "entryID"), input.Status)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, entity)
}

/*
DELETE /api/v1/library/{entryID}.

Description: Soft-deletes an entry. History rows survive and a later add of
the same series revives them.

Response:
  - 204: No Content: Entry deleted
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Entry unknown, already deleted, or not owned
*/
func (handler *Handler) remove(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.entryService.Delete(request.Context(), userID, chi.URLParam(request, "entryID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/library/{entryID}/retry-metadata.

Description: Re-queues metadata resolution for an entry whose automatic
resolution failed. Succeeds without enqueuing when a resolution job is
already waiting or running.

Response:
  - 204: No Content: Retry accepted (or already in flight)
  - 400: ErrBadRequest: Entry already enriched, or pinned by a user override
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Entry unknown, deleted, or not owned
  - 409: ErrConflict: Entry row locked by a concurrent resolution
  - 429: ErrRateLimited: Last attempt less than the cooldown ago
*/
func (handler *Handler) retryMetadata(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.entryService.RetryMetadata(request.Context(), userID, chi.URLParam(request, "entryID")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
