// Package handlers provides HTTP handlers for the newspaper-digest API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, errorResponse{Error: message, Detail: detail})
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ingest.ErrForbidden):
		return http.StatusForbidden
	}

	switch domain.TypeOf(err) {
	case domain.ErrorTypeAuthorization:
		return http.StatusForbidden
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypePrecondition:
		return http.StatusPreconditionFailed
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	case domain.ErrorTypeMalformedDocument:
		return http.StatusUnprocessableEntity
	case domain.ErrorTypeStorage, domain.ErrorTypeExtraction, domain.ErrorTypeAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are logged.
func respondError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().
			Str("path", r.URL.Path).
			Err(err).
			Msg("Request failed")
	}

	message := err.Error()
	var de *domain.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	writeError(w, status, message, "")
}

// pathID parses a UUID route parameter.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ValidationError("invalid "+name, err)
	}
	return id, nil
}
