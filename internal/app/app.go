// Package app assembles the newspaper-digest components from configuration.
// Both binaries build their dependencies here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/spherical/newspaper-digest/internal/cache"
	"github.com/spherical/newspaper-digest/internal/config"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/events"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/llm"
	"github.com/spherical/newspaper-digest/internal/monitoring"
	"github.com/spherical/newspaper-digest/internal/objectstore"
	"github.com/spherical/newspaper-digest/internal/observability"
	"github.com/spherical/newspaper-digest/internal/pdf"
	"github.com/spherical/newspaper-digest/internal/storage"
)

// Options selects optional parts of the application.
type Options struct {
	// Extraction builds the LLM capability. Commands that never process
	// pages leave it off so they run without an API key.
	Extraction bool
	// SkipMigrations leaves the schema untouched on startup.
	SkipMigrations bool
}

// App holds the wired components. Close releases them.
type App struct {
	Config     *config.Config
	Logger     *observability.Logger
	DB         *sql.DB
	Dialect    storage.Dialect
	Repo       *storage.Repository
	Files      *objectstore.FileStore
	Signer     *objectstore.Signer
	Cache      cache.Store
	Broker     events.Broker
	Controller *ingest.Controller
	Recovery   *monitoring.StaleRunner

	closers []io.Closer
}

// New connects to every backend named in cfg and builds the controller.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (a *App, err error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.DB, a.Dialect, err = storage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB)

	if !opts.SkipMigrations {
		applied, err := storage.NewMigrator(a.DB, a.Dialect).Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		if len(applied) > 0 {
			logger.Info().Strs("migrations", applied).Msg("Applied migrations")
		}
	}
	a.Repo = storage.NewRepository(a.DB, a.Dialect)

	a.Signer, err = objectstore.NewSigner(cfg.Storage.SigningSecret, cfg.Server.PublicBaseURL)
	if err != nil {
		return nil, domain.ConfigError("invalid storage signer", err)
	}
	a.Files, err = objectstore.NewFileStore(cfg.Storage.Root, a.Signer)
	if err != nil {
		return nil, domain.ConfigError("invalid storage root", err)
	}

	if err := a.connectCache(); err != nil {
		return nil, err
	}
	publisher := a.connectEvents()

	deps := ingest.Deps{
		Store:    a.Repo,
		Objects:  a.Files,
		Splitter: pdf.NewSplitter(),
		Leases:   a.Cache,
		Events:   publisher,
		Cache:    a.Cache,
		Logger:   logger,
	}
	if opts.Extraction {
		worker, err := a.buildWorker(ctx)
		if err != nil {
			return nil, err
		}
		deps.Worker = worker
	}

	a.Controller, err = ingest.NewController(deps, ingest.Config{
		PageConcurrency: cfg.Ingestion.PageConcurrency,
		ProcessTimeout:  cfg.Ingestion.ProcessTimeout,
		LeaseTTL:        cfg.Cache.LeaseTTL,
		StaleAfter:      cfg.Recovery.StaleAfter,
		MaxUploadBytes:  cfg.Storage.MaxUploadBytes,
	})
	if err != nil {
		return nil, err
	}

	a.Recovery = monitoring.NewStaleRunner(logger, a.Repo, a.Controller, monitoring.StaleConfig{
		StaleAfter:    cfg.Recovery.StaleAfter,
		CheckInterval: cfg.Recovery.CheckInterval,
	})

	return a, nil
}

func (a *App) connectCache() error {
	cfg := a.Config.Cache
	if cfg.Driver != "redis" {
		mem := cache.NewMemoryClient(10000)
		a.Cache = mem
		a.closers = append(a.closers, mem)
		return nil
	}

	rc, err := cache.NewRedisClient(cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return domain.ConfigError("failed to connect to redis", err)
	}
	a.Cache = rc
	a.closers = append(a.closers, rc)
	return nil
}

// connectEvents builds the broker used for progress streams and the
// publisher handed to the controller, which also feeds Kafka when set.
func (a *App) connectEvents() domain.EventPublisher {
	if rc, ok := a.Cache.(*cache.RedisClient); ok && a.Config.Events.Driver == "redis" {
		a.Broker = events.NewRedisBroker(rc)
	} else {
		a.Broker = events.NewMemoryBroker()
	}

	kcfg := a.Config.Events.Kafka
	if !kcfg.Enabled() {
		return a.Broker
	}

	kp := events.NewKafkaPublisher(kcfg.Brokers, kcfg.Topic)
	a.closers = append(a.closers, kp)
	a.Logger.Info().Strs("brokers", kcfg.Brokers).Str("topic", kcfg.Topic).Msg("Publishing events to Kafka")
	return events.Fanout{a.Broker, kp}
}

func (a *App) buildWorker(ctx context.Context) (*extract.Worker, error) {
	capability, err := llm.New(ctx, a.Config.LLM, a.Logger)
	if err != nil {
		return nil, err
	}
	if c, ok := capability.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	wcfg := extract.Config{
		Mode:         extract.InputMode(a.Config.LLM.InputMode),
		SignedURLTTL: a.Config.Storage.SignedURLTTL,
	}
	if wcfg.Mode == extract.InputInlineImage {
		r, err := pdf.NewRasterizer(a.Config.LLM.JPEGQuality)
		if err != nil {
			return nil, domain.ConfigError("invalid rasterizer settings", err)
		}
		wcfg.Rasterizer = r
	}

	return extract.NewWorker(a.Files, capability, wcfg, a.Logger)
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	return a.DB.PingContext(ctx)
}

// Close releases every opened backend in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
