package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "google/gemini-2.5-pro", cfg.LLM.Model)
	assert.Equal(t, "signed_url", cfg.LLM.InputMode)
	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
	assert.Equal(t, int64(50<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, 1, cfg.Ingestion.PageConcurrency)
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
storage:
  root: objects
llm:
  model: openai/gpt-4o
ingestion:
  page_concurrency: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("DATABASE_URL", "postgres://user:pw@localhost:5432/digest?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("LLM_MODEL", "google/gemini-2.5-flash")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "objects"), cfg.Storage.Root)
	assert.Equal(t, 4, cfg.Ingestion.PageConcurrency)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "redis", cfg.Cache.Driver)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, "google/gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.True(t, cfg.Events.Kafka.Enabled())
	assert.Equal(t, "postgres://user:pw@localhost:5432/digest?sslmode=disable", cfg.DatabaseDSN())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"bad provider", func(c *Config) { c.LLM.Provider = "llama" }},
		{"gemini with signed urls", func(c *Config) { c.LLM.Provider = "gemini" }},
		{"bad input mode", func(c *Config) { c.LLM.InputMode = "ocr" }},
		{"zero concurrency", func(c *Config) { c.Ingestion.PageConcurrency = 0 }},
		{"redis events on memory cache", func(c *Config) { c.Events.Driver = "redis" }},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.SQLite.Path = "/data/digest.db"
	assert.Equal(t, "file:/data/digest.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", cfg.DatabaseDSN())
}
