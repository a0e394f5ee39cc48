package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/newspaper-digest/internal/objectstore"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// ObjectOpener opens a stored object for reading.
type ObjectOpener interface {
	Open(objectPath string) (io.ReadSeekCloser, time.Time, error)
}

// ObjectHandler serves objects addressed by signed URLs.
type ObjectHandler struct {
	logger *observability.Logger
	files  ObjectOpener
	signer *objectstore.Signer
}

// NewObjectHandler creates a new object handler.
func NewObjectHandler(logger *observability.Logger, files ObjectOpener, signer *objectstore.Signer) *ObjectHandler {
	return &ObjectHandler{logger: logger, files: files, signer: signer}
}

// ServeSigned handles GET /storage/v1/object/sign/*?token=.
func (h *ObjectHandler) ServeSigned(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "*")
	objectPath, err := url.PathUnescape(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid object path", err.Error())
		return
	}
	objectPath, err = objectstore.CleanPath(objectPath)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid object path", err.Error())
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "token is required", "")
		return
	}
	if err := h.signer.Verify(objectPath, token); err != nil {
		writeError(w, http.StatusForbidden, "invalid or expired token", "")
		return
	}

	f, modTime, err := h.files.Open(objectPath)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		writeError(w, http.StatusNotFound, "object not found", "")
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Str("path", objectPath).Err(err).Msg("Failed to open object")
		writeError(w, http.StatusInternalServerError, "failed to open object", "")
		return
	}
	defer f.Close()

	if strings.EqualFold(path.Ext(objectPath), ".pdf") {
		w.Header().Set("Content-Type", "application/pdf")
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, path.Base(objectPath), modTime, f)
}
