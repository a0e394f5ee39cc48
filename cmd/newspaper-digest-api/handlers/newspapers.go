package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/cmd/newspaper-digest-api/middleware"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// multipartOverhead is allowed on top of the PDF size limit for form fields.
const multipartOverhead = 1 << 20

// NewspaperHandler handles newspaper lifecycle requests.
type NewspaperHandler struct {
	logger     *observability.Logger
	controller *ingest.Controller
	maxUpload  int64
}

// NewNewspaperHandler creates a new newspaper handler.
func NewNewspaperHandler(logger *observability.Logger, controller *ingest.Controller, maxUpload int64) *NewspaperHandler {
	return &NewspaperHandler{
		logger:     logger,
		controller: controller,
		maxUpload:  maxUpload,
	}
}

// SplitResponseDTO is the body of a successful split.
type SplitResponseDTO struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	TotalPages int    `json:"totalPages"`
}

// ProcessResponseDTO is the body of a process request.
type ProcessResponseDTO struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message"`
	Status        domain.Status        `json:"status,omitempty"`
	TotalPages    int                  `json:"totalPages,omitempty"`
	TotalArticles int                  `json:"totalArticles"`
	PagesFailed   int                  `json:"pagesFailed,omitempty"`
	Failures      []ingest.PageFailure `json:"failures,omitempty"`
}

// Upload handles POST /newspapers with a multipart "file" and optional "date".
func (h *NewspaperHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}

	var date time.Time
	if v := r.FormValue("date"); v != "" {
		date, err = time.Parse(domain.UploadDateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", err.Error())
			return
		}
	}

	n, err := h.controller.Upload(ctx, middleware.UserFromContext(ctx), ingest.UploadRequest{
		FileName:   header.Filename,
		Data:       data,
		UploadDate: date,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, n)
}

// List handles GET /newspapers.
func (h *NewspaperHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.controller.List(ctx, middleware.UserFromContext(ctx))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Get handles GET /newspapers/{id}.
func (h *NewspaperHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	n, err := h.controller.Get(ctx, middleware.UserFromContext(ctx), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Delete handles DELETE /newspapers/{id}.
func (h *NewspaperHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.controller.Delete(ctx, middleware.UserFromContext(ctx), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Split handles POST /newspapers/{id}/split.
func (h *NewspaperHandler) Split(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	res, err := h.controller.Split(ctx, middleware.UserFromContext(ctx), id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SplitResponseDTO{
		Success:    true,
		Message:    res.Message,
		TotalPages: res.TotalPages,
	})
}

// Process handles POST /newspapers/{id}/process. With async=true the run is
// detached from the request and 202 is returned once it is admitted.
func (h *NewspaperHandler) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.UserFromContext(ctx)
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		h.processAsync(w, r, caller, id)
		return
	}

	res, err := h.controller.Process(ctx, caller, id, ingest.ProcessOptions{})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse(res))
}

func (h *NewspaperHandler) processAsync(w http.ResponseWriter, r *http.Request, caller, id uuid.UUID) {
	ctx := r.Context()

	n, err := h.controller.Get(ctx, caller, id)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if n.Status == domain.StatusProcessing {
		respondError(w, r, h.logger, domain.ConflictError("newspaper is already being processed", nil))
		return
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		res, err := h.controller.Process(runCtx, caller, id, ingest.ProcessOptions{})
		if err != nil {
			h.logger.WithContext(runCtx).WithNewspaper(n.ID).Warn().
				Err(err).
				Msg("Background processing failed")
			return
		}
		h.logger.WithContext(runCtx).WithNewspaper(n.ID).Info().
			Int("articles", res.TotalArticles).
			Msg("Background processing finished")
	}()

	writeJSON(w, http.StatusAccepted, ProcessResponseDTO{
		Success: true,
		Message: fmt.Sprintf("Processing %s started", n.FileName),
		Status:  domain.StatusProcessing,
	})
}

func processResponse(res *ingest.ProcessResult) ProcessResponseDTO {
	return ProcessResponseDTO{
		Success:       res.Status == domain.StatusCompleted,
		Message:       res.Message,
		Status:        res.Status,
		TotalPages:    res.TotalPages,
		TotalArticles: res.TotalArticles,
		PagesFailed:   res.PagesFailed,
		Failures:      res.Failures,
	}
}

// Articles handles GET /newspapers/{id}/articles with an optional page filter.
func (h *NewspaperHandler) Articles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	page := 0
	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer", "")
			return
		}
	}

	list, err := h.controller.Articles(ctx, middleware.UserFromContext(ctx), id, page)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*domain.Article{}
	}
	writeJSON(w, http.StatusOK, list)
}
