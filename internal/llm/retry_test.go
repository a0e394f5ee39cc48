package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/spherical/newspaper-digest/internal/observability"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, shouldRetry(tt.statusCode), "status %d", tt.statusCode)
	}
}

func TestCalculateBackoff(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 1*time.Second, calculateBackoff(0, config))
	assert.Equal(t, 2*time.Second, calculateBackoff(1, config))
	assert.Equal(t, 4*time.Second, calculateBackoff(2, config))
	assert.Equal(t, 30*time.Second, calculateBackoff(10, config))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, 429, StatusCode(&openai.APIError{HTTPStatusCode: 429}))
	assert.Equal(t, 502, StatusCode(&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}))
	assert.Equal(t, 503, StatusCode(&googleapi.Error{Code: 503}))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
}

func TestRetryWithBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retryWithBackoff(ctx, &RetryConfig{MaxRetries: 5, InitialBackoff: time.Hour, MaxBackoff: time.Hour},
		observability.NopLogger(), func(context.Context) error {
			calls++
			cancel()
			return &openai.APIError{HTTPStatusCode: 503}
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffPermanentError(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), fastRetry(), observability.NopLogger(), func(context.Context) error {
		calls++
		return errors.New("schema rejected")
	})

	assert.EqualError(t, err, "schema rejected")
	assert.Equal(t, 1, calls)
}
