// Copyright (c) 2026 MangaTrack. All rights reserved.

package importer

import (
	"net/http"

	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/apperr"
	requestutil "github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/request"
	"github.com/harshitguptaagra14-maker/orchids-remix-of-orchids-mangatrack-30-sub007/internal/platform/respond"
)

// Handler implements the HTTP layer for library imports.
//
// Both routes live under /library/import and are attached by the library
// router at composition time.
type Handler struct {
	importService *Service
}

// NewHandler constructs an import [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{importService: service}
}

/*
Start handles POST /api/v1/library/import.

Description: Accepts an export batch of up to [MaxEntries] rows, validates it
as a whole, and schedules it for background processing. The response carries
the job to poll; rows screened out before processing are pre-counted in its
skipped and failed tallies.

Request:
  - body: StartInput, at most [MaxBodyBytes] bytes

Response:
  - 201: Job: The pending import job
  - 400: Validation: Empty batch, too many rows, per-row schema failures,
    or an oversized body
  - 401: ErrUnauthorized: Authentication required
*/
func (handler *Handler) Start(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input StartInput
	if err := requestutil.DecodeJSONLimit(writer, request, &input, MaxBodyBytes); err != nil {
		respond.Error(writer, request, err)
		return
	}

	job, err := handler.importService.Start(request.Context(), userID, input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, job)
}

/*
Poll handles GET /api/v1/library/import?id={jobID}.

Description: Reports the progress of an import job owned by the
authenticated user.

Request:
  - id: string (Job UUID)

Response:
  - 200: Job: Current counters and status
  - 400: ErrBadRequest: Missing id parameter
  - 401: ErrUnauthorized: Authentication required
  - 404: ErrNotFound: Job unknown or not owned
*/
func (handler *Handler) Poll(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	jobID := request.URL.Query().Get("id")
	if jobID == "" {
		respond.Error(writer, request, apperr.BadRequest("Query parameter 'id' is required"))
		return
	}

	job, err := handler.importService.GetJob(request.Context(), userID, jobID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, job)
}
