package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/ingest"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.AuthorizationError("caller is not authenticated", ingest.ErrUnauthenticated), http.StatusUnauthorized},
		{domain.AuthorizationError("access denied", ingest.ErrForbidden), http.StatusForbidden},
		{domain.NotFoundError("newspaper not found", nil), http.StatusNotFound},
		{domain.ValidationError("file must be a PDF", nil), http.StatusBadRequest},
		{domain.PreconditionError(ingest.MsgTotalPagesMissing, nil), http.StatusPreconditionFailed},
		{domain.ConflictError("already processing", nil), http.StatusConflict},
		{domain.MalformedDocumentError("no pages", nil), http.StatusUnprocessableEntity},
		{domain.StorageError("StorageWriteFailed: page 3", nil), http.StatusBadGateway},
		{domain.PersistenceError("failed to save", nil), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", domain.ConflictError("x", nil)), http.StatusConflict},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
