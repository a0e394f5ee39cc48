package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/spherical/newspaper-digest/cmd/newspaper-digest-api/middleware"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// ArticleHandler handles article and progress requests.
type ArticleHandler struct {
	logger     *observability.Logger
	controller *ingest.Controller
}

// NewArticleHandler creates a new article handler.
func NewArticleHandler(logger *observability.Logger, controller *ingest.Controller) *ArticleHandler {
	return &ArticleHandler{logger: logger, controller: controller}
}

// RevisedRequestDTO is the body of PATCH /articles/{id}.
type RevisedRequestDTO struct {
	IsRevised *bool `json:"isRevised"`
}

// SetRevised handles PATCH /articles/{id}.
func (h *ArticleHandler) SetRevised(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req RevisedRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.IsRevised == nil {
		writeError(w, http.StatusBadRequest, "isRevised is required", "")
		return
	}

	a, err := h.controller.SetRevised(ctx, middleware.UserFromContext(ctx), id, *req.IsRevised)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Search handles GET /articles?gsPaper=&limit=: the caller's articles
// across every newspaper.
func (h *ArticleHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", raw)
			return
		}
		limit = v
	}

	list, err := h.controller.SearchArticles(ctx, middleware.UserFromContext(ctx), r.URL.Query().Get("gsPaper"), limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []*domain.Article{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Progress handles GET /progress.
func (h *ArticleHandler) Progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.controller.Progress(ctx, middleware.UserFromContext(ctx))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
