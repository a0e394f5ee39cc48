package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/newspaper-digest/internal/config"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/events"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/pdf/pdftest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = filepath.Join(dir, "digest.db")
	cfg.Storage.Root = filepath.Join(dir, "objects")
	return cfg
}

func TestNew_WithoutExtraction(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	require.NoError(t, a.Ping(ctx))
	assert.IsType(t, &events.MemoryBroker{}, a.Broker)

	owner := uuid.New()
	n, err := a.Controller.Upload(ctx, owner, ingest.UploadRequest{
		FileName:   "express.pdf",
		Data:       pdftest.Build(2),
		UploadDate: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	res, err := a.Controller.Split(ctx, owner, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalPages)

	_, err = a.Controller.Process(ctx, owner, n.ID, ingest.ProcessOptions{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig), "processing needs an extraction capability")
}

func TestNew_WithExtraction(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.InputMode = "inline_pdf"

	a, err := New(context.Background(), cfg, nil, Options{Extraction: true})
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNew_MissingAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""

	_, err := New(context.Background(), cfg, nil, Options{Extraction: true})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

func TestNew_KafkaFanout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Events.Kafka.Brokers = []string{"localhost:9092"}

	a, err := New(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &events.MemoryBroker{}, a.Broker)
	require.NotNil(t, a.Controller)
}
