// Package main provides the API router setup.
package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/newspaper-digest/cmd/newspaper-digest-api/handlers"
	"github.com/spherical/newspaper-digest/cmd/newspaper-digest-api/middleware"
	"github.com/spherical/newspaper-digest/internal/events"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/objectstore"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// RouterDeps are the services the router exposes.
type RouterDeps struct {
	Controller *ingest.Controller
	Broker     events.Subscriber
	Files      handlers.ObjectOpener
	Signer     *objectstore.Signer
	Ping       func(ctx context.Context) error
}

// AppConfig holds HTTP-level settings.
type AppConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	MaxUploadBytes int64
	Auth           middleware.AuthConfig
	ServiceName    string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, deps RouterDeps, cfg AppConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"` + cfg.ServiceName + `"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Ping != nil {
			if err := deps.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	newspaperHandler := handlers.NewNewspaperHandler(logger, deps.Controller, cfg.MaxUploadBytes)
	articleHandler := handlers.NewArticleHandler(logger, deps.Controller)
	eventsHandler := handlers.NewEventsHandler(logger, deps.Controller, deps.Broker, cfg.AllowedOrigins)
	objectHandler := handlers.NewObjectHandler(logger, deps.Files, deps.Signer)

	// signed URLs carry their own token
	r.Get(objectstore.SignPrefix+"*", objectHandler.ServeSigned)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth))

		r.Route("/newspapers", func(r chi.Router) {
			r.Post("/", newspaperHandler.Upload)
			r.Get("/", newspaperHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", newspaperHandler.Get)
				r.Delete("/", newspaperHandler.Delete)
				r.Post("/split", newspaperHandler.Split)
				r.Post("/process", newspaperHandler.Process)
				r.Get("/articles", newspaperHandler.Articles)
				r.Get("/events", eventsHandler.Stream)
			})
		})

		r.Get("/articles", articleHandler.Search)
		r.Patch("/articles/{id}", articleHandler.SetRevised)
		r.Get("/progress", articleHandler.Progress)
	})

	return r
}
