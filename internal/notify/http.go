// Copyright (c) 2026 MangaTrack. All rights reserved.

package notify

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	requestutil "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/request"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/pkg/pagination"
)

// Handler implements the read surface of the notification inbox.
//
// It binds straight to the [Repository]: all writes flow through the
// fan-out pipeline, so there is no service layer to go through here.
type Handler struct {
	repo Repository
}

// NewHandler constructs a notification [Handler].
func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes returns the /notifications router.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	router.Post("/{id}/read", handler.markRead)
	return router
}

// inboxResponse is the GET /notifications payload: the newest page plus
// the unread badge count.
type inboxResponse struct {
	Notifications []*Notification `json:"notifications"`
	Unread        int             `json:"unread"`
}

/*
GET /api/v1/notifications?limit=20.

Description: Returns the authenticated user's newest notifications together
with the unread badge count.

Request:
  - limit: int (Optional page size, clamped server-side)

Response:
  - 200: inboxResponse
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)

	notifications, err := handler.repo.ListForUser(request.Context(), userID, params.Limit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	unread, err := handler.repo.CountUnread(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, inboxResponse{Notifications: notifications, Unread: unread})
}

/*
POST /api/v1/notifications/{id}/read.

Description: Flags one notification as read.

Request:
  - id: string (Notification UUID)

Response:
  - 204: No Content: Notification marked read
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Notification unknown or not owned
*/
func (handler *Handler) markRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.repo.MarkRead(request.Context(), userID, chi.URLParam(request, "id")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
