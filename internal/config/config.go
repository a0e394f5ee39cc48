// Package config provides unified configuration loading for newspaper-digest.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for newspaper-digest.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Storage       StorageConfig       `yaml:"storage"`
	LLM           LLMConfig           `yaml:"llm"`
	Ingestion     IngestionConfig     `yaml:"ingestion"`
	Recovery      RecoveryConfig      `yaml:"recovery"`
	Events        EventsConfig        `yaml:"events"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	PublicBaseURL    string        `yaml:"public_base_url"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds lease and pub/sub backend settings.
type CacheConfig struct {
	Driver   string        `yaml:"driver"` // memory or redis
	LeaseTTL time.Duration `yaml:"lease_ttl"`
	Redis    RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	Root           string        `yaml:"root"`
	SigningSecret  string        `yaml:"signing_secret"`
	SignedURLTTL   time.Duration `yaml:"signed_url_ttl"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// LLMConfig holds extraction capability settings.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai or gemini
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	InputMode   string        `yaml:"input_mode"` // signed_url, inline_pdf or inline_image
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

// IngestionConfig holds pipeline settings.
type IngestionConfig struct {
	PageConcurrency int           `yaml:"page_concurrency"`
	ProcessTimeout  time.Duration `yaml:"process_timeout"`
}

// RecoveryConfig holds stale-processing sweep settings.
type RecoveryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CheckInterval time.Duration `yaml:"check_interval"`
	StaleAfter    time.Duration `yaml:"stale_after"`
}

// EventsConfig holds progress event settings.
type EventsConfig struct {
	Driver string      `yaml:"driver"` // memory or redis
	Kafka  KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds the optional downstream event sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Enabled reports whether a Kafka sink is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		if cfg.Storage.Root != "" {
			cfg.Storage.Root = ResolveRelativePath(path, cfg.Storage.Root)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8086,
			PublicBaseURL:    "http://localhost:8086",
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     15 * time.Minute,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   15 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/newspaper-digest.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:   "memory",
			LeaseTTL: 2 * time.Minute,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
				Prefix:   "nd:",
			},
		},
		Storage: StorageConfig{
			Root:           "/tmp/newspaper-digest-objects",
			SigningSecret:  "dev-signing-secret",
			SignedURLTTL:   time.Hour,
			MaxUploadBytes: 50 << 20,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "google/gemini-2.5-pro",
			InputMode:   "signed_url",
			Timeout:     3 * time.Minute,
			MaxRetries:  3,
			JPEGQuality: 85,
		},
		Ingestion: IngestionConfig{
			PageConcurrency: 1,
			ProcessTimeout:  30 * time.Minute,
		},
		Recovery: RecoveryConfig{
			Enabled:       false,
			CheckInterval: 5 * time.Minute,
			StaleAfter:    15 * time.Minute,
		},
		Events: EventsConfig{
			Driver: "memory",
			Kafka: KafkaConfig{
				Topic: "newspaper-digest.events",
			},
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "json",
			ServiceName: "newspaper-digest",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Events.Driver != "memory" && c.Events.Driver != "redis" {
		return fmt.Errorf("invalid events driver: %s", c.Events.Driver)
	}

	if c.Events.Driver == "redis" && c.Cache.Driver != "redis" {
		return fmt.Errorf("redis events require the redis cache driver")
	}

	switch c.LLM.Provider {
	case "openai":
	case "gemini":
		if c.LLM.InputMode == "signed_url" {
			return fmt.Errorf("gemini provider requires inline_pdf or inline_image input mode")
		}
	default:
		return fmt.Errorf("invalid llm provider: %s", c.LLM.Provider)
	}

	switch c.LLM.InputMode {
	case "signed_url", "inline_pdf", "inline_image":
	default:
		return fmt.Errorf("invalid llm input mode: %s", c.LLM.InputMode)
	}

	if c.LLM.JPEGQuality < 1 || c.LLM.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}

	if c.Ingestion.PageConcurrency < 1 || c.Ingestion.PageConcurrency > 16 {
		return fmt.Errorf("page_concurrency must be between 1 and 16")
	}

	if c.Storage.Root == "" {
		return fmt.Errorf("storage root is required")
	}

	if c.Storage.SigningSecret == "" {
		return fmt.Errorf("storage signing secret is required")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth enabled without jwt_secret")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Database.Driver == "sqlite" || !c.Auth.Enabled
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		journal := c.Database.SQLite.JournalMode
		if journal == "" {
			journal = "WAL"
		}
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=%s",
			c.Database.SQLite.Path, journal)
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Server.PublicBaseURL = strings.TrimRight(v, "/")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		// Parse redis://host:port format
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}

	if v := os.Getenv("STORAGE_SIGNING_SECRET"); v != "" {
		cfg.Storage.SigningSecret = v
	}

	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.LLM.Provider == "gemini" {
		cfg.LLM.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_INPUT_MODE"); v != "" {
		cfg.LLM.InputMode = v
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Events.Kafka.Brokers = strings.Split(v, ",")
	}

	if v := os.Getenv("AUTH_ENABLED"); v == "true" {
		cfg.Auth.Enabled = true
	}

	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	configDir := filepath.Dir(configPath)
	return filepath.Join(configDir, targetPath)
}
