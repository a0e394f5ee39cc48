package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"})

	ctx := ContextWithTraceID(context.Background(), "req-42")
	id := uuid.New()
	logger.WithContext(ctx).WithNewspaper(id).WithPage(3).Info().
		Err(errors.New("timeout")).
		Msg("Page failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry["service"])
	assert.Equal(t, "req-42", entry["trace_id"])
	assert.Equal(t, id.String(), entry["newspaper_id"])
	assert.Equal(t, float64(3), entry["page"])
	assert.Equal(t, "timeout", entry["error"])
	assert.Equal(t, "Page failed", entry["message"])
}

func TestLoggerRunScope(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Format: "json", Output: &buf})

	id := uuid.New()
	logger.WithNewspaper(id).WithRun("run-7", true).Info().Msg("Processing started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, id.String(), entry["newspaper_id"])
	assert.Equal(t, "run-7", entry["run_id"])
	assert.Equal(t, true, entry["resume"])
	assert.NotContains(t, entry, "page")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, parseLevel("info"), parseLevel("nonsense"))
}
