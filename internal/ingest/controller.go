// Package ingest drives newspapers through upload, split and per-page
// article extraction.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/cache"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/events"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/objectstore"
	"github.com/spherical/newspaper-digest/internal/observability"
	"github.com/spherical/newspaper-digest/internal/pdf"
)

var (
	// ErrUnauthenticated is wrapped when no caller identity is present.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is wrapped when the caller does not own the resource.
	ErrForbidden = errors.New("caller does not own this newspaper")
)

const (
	defaultLeaseTTL   = 2 * time.Minute
	defaultStaleAfter = 15 * time.Minute
	defaultStatsTTL   = time.Minute
)

// PageExtractor runs one page through the extraction capability.
type PageExtractor interface {
	Extract(ctx context.Context, ref domain.PageRef) extract.PageResult
}

// Config tunes the controller.
type Config struct {
	// PageConcurrency > 1 extracts pages in parallel.
	PageConcurrency   int
	LeaseTTL          time.Duration
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration
	StatsTTL          time.Duration
	ProcessTimeout    time.Duration
	MaxUploadBytes    int64
}

// Deps are the controller's collaborators. Worker, Leases, Events and Cache
// are optional; without a Worker, Process is refused.
type Deps struct {
	Store    domain.Store
	Objects  domain.ObjectStorage
	Splitter *pdf.Splitter
	Worker   PageExtractor
	Leases   domain.LeaseManager
	Events   domain.EventPublisher
	Cache    cache.Client
	Logger   *observability.Logger
}

// Controller owns the newspaper state machine.
type Controller struct {
	store     domain.Store
	objects   domain.ObjectStorage
	splitter  *pdf.Splitter
	validator *pdf.Validator
	worker    PageExtractor
	leases    domain.LeaseManager
	events    domain.EventPublisher
	cache     cache.Client
	cfg       Config
	logger    *observability.Logger
	now       func() time.Time
}

// NewController wires a controller.
func NewController(deps Deps, cfg Config) (*Controller, error) {
	if deps.Store == nil || deps.Objects == nil {
		return nil, domain.ConfigError("controller needs a store and object storage", nil)
	}
	if deps.Splitter == nil {
		deps.Splitter = pdf.NewSplitter()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}

	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = cfg.LeaseTTL / 3
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.StatsTTL <= 0 {
		cfg.StatsTTL = defaultStatsTTL
	}

	return &Controller{
		store:     deps.Store,
		objects:   deps.Objects,
		splitter:  deps.Splitter,
		validator: pdf.NewValidator(cfg.MaxUploadBytes),
		worker:    deps.Worker,
		leases:    deps.Leases,
		events:    deps.Events,
		cache:     deps.Cache,
		cfg:       cfg,
		logger:    deps.Logger.WithOperation("ingest"),
		now:       time.Now,
	}, nil
}

// StaleAfter is the heartbeat age after which a processing run is
// considered abandoned.
func (c *Controller) StaleAfter() time.Duration {
	return c.cfg.StaleAfter
}

// authorize loads a newspaper and checks that caller owns it.
func (c *Controller) authorize(ctx context.Context, caller, id uuid.UUID) (*domain.Newspaper, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}

	n, err := c.store.GetNewspaper(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundError(fmt.Sprintf("newspaper %s not found", id), err)
	}
	if err != nil {
		return nil, domain.PersistenceError("failed to load newspaper", err)
	}

	if !n.OwnedBy(caller) {
		return nil, domain.AuthorizationError("access denied", ErrForbidden)
	}
	return n, nil
}

// Get returns a newspaper owned by caller.
func (c *Controller) Get(ctx context.Context, caller, id uuid.UUID) (*domain.Newspaper, error) {
	return c.authorize(ctx, caller, id)
}

// List returns caller's newspapers, newest first.
func (c *Controller) List(ctx context.Context, caller uuid.UUID) ([]*domain.Newspaper, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}
	list, err := c.store.ListNewspapers(ctx, caller)
	if err != nil {
		return nil, domain.PersistenceError("failed to list newspapers", err)
	}
	if list == nil {
		list = []*domain.Newspaper{}
	}
	return list, nil
}

// UploadRequest is a new source PDF.
type UploadRequest struct {
	FileName   string
	Data       []byte
	UploadDate time.Time
}

// Upload stores a source PDF and records the newspaper as uploaded.
func (c *Controller) Upload(ctx context.Context, caller uuid.UUID, req UploadRequest) (*domain.Newspaper, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}
	if err := c.validator.ValidateSource(req.FileName, req.Data); err != nil {
		return nil, err
	}

	date := req.UploadDate
	if date.IsZero() {
		date = c.now()
	}

	n := &domain.Newspaper{
		ID:         uuid.New(),
		UserID:     caller,
		FilePath:   domain.SourcePath(caller, date, req.FileName),
		FileName:   req.FileName,
		FileSize:   int64(len(req.Data)),
		UploadDate: date,
		Status:     domain.StatusUploaded,
	}

	if err := c.objects.Upload(ctx, n.FilePath, req.Data, "application/pdf", false); err != nil {
		if errors.Is(err, objectstore.ErrObjectExists) {
			return nil, domain.ConflictError(fmt.Sprintf("%s was already uploaded for %s", req.FileName, date.Format(domain.UploadDateLayout)), err)
		}
		return nil, domain.StorageError("failed to store source PDF", err)
	}

	if err := c.store.CreateNewspaper(ctx, n); err != nil {
		if delErr := c.objects.Delete(context.WithoutCancel(ctx), n.FilePath); delErr != nil {
			c.logger.Warn().Str("path", n.FilePath).Err(delErr).Msg("Failed to remove orphaned upload")
		}
		return nil, domain.PersistenceError("failed to record newspaper", err)
	}

	c.invalidateStats(ctx, caller)
	c.logger.WithNewspaper(n.ID).Info().
		Str("file_name", n.FileName).
		Int64("file_size", n.FileSize).
		Msg("Newspaper uploaded")
	return n, nil
}

// Delete removes a newspaper with its source and page artifacts.
func (c *Controller) Delete(ctx context.Context, caller, id uuid.UUID) error {
	n, err := c.authorize(ctx, caller, id)
	if err != nil {
		return err
	}
	if n.Status == domain.StatusProcessing {
		return domain.ConflictError("newspaper is being processed", nil)
	}

	paths := []string{n.FilePath}
	for _, ref := range n.Pages() {
		paths = append(paths, ref.Path)
	}
	if err := c.objects.Delete(ctx, paths...); err != nil {
		return domain.StorageError("failed to delete newspaper files", err)
	}

	if err := c.store.DeleteNewspaper(ctx, id); err != nil {
		return domain.PersistenceError("failed to delete newspaper", err)
	}

	c.invalidateStats(ctx, caller)
	c.logger.WithNewspaper(id).Info().Int("pages", len(paths)-1).Msg("Newspaper deleted")
	return nil
}

// Articles lists a newspaper's articles, optionally for one page.
func (c *Controller) Articles(ctx context.Context, caller, id uuid.UUID, page int) ([]*domain.Article, error) {
	if _, err := c.authorize(ctx, caller, id); err != nil {
		return nil, err
	}
	list, err := c.store.ListArticles(ctx, domain.ArticleFilter{NewspaperID: id, PageNumber: page})
	if err != nil {
		return nil, domain.PersistenceError("failed to list articles", err)
	}
	return list, nil
}

// MaxSearchLimit caps the number of articles SearchArticles returns.
const MaxSearchLimit = 500

// SearchArticles lists caller's articles across all of their newspapers.
// A non-empty paper keeps only articles tagged with that GS paper. A limit
// of 0 means MaxSearchLimit.
func (c *Controller) SearchArticles(ctx context.Context, caller uuid.UUID, paper string, limit int) ([]*domain.Article, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}

	filter := domain.ArticleFilter{OwnerID: caller, Limit: limit}
	if paper != "" {
		p, ok := domain.ParseGSPaper(paper)
		if !ok {
			return nil, domain.ValidationError(fmt.Sprintf("unknown GS paper %q: want one of GS1, GS2, GS3, GS4", paper), nil)
		}
		filter.GSPaper = p
	}
	switch {
	case limit < 0:
		return nil, domain.ValidationError("limit must not be negative", nil)
	case limit == 0 || limit > MaxSearchLimit:
		filter.Limit = MaxSearchLimit
	}

	list, err := c.store.ListArticles(ctx, filter)
	if err != nil {
		return nil, domain.PersistenceError("failed to search articles", err)
	}
	return list, nil
}

// SetRevised records whether caller has revised an article.
func (c *Controller) SetRevised(ctx context.Context, caller, articleID uuid.UUID, revised bool) (*domain.Article, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}

	a, err := c.store.GetArticle(ctx, articleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NotFoundError(fmt.Sprintf("article %s not found", articleID), err)
	}
	if err != nil {
		return nil, domain.PersistenceError("failed to load article", err)
	}
	if _, err := c.authorize(ctx, caller, a.NewspaperID); err != nil {
		return nil, err
	}

	if err := c.store.SetArticleRevised(ctx, articleID, revised); err != nil {
		return nil, domain.PersistenceError("failed to update article", err)
	}
	a.IsRevised = revised

	c.invalidateStats(ctx, caller)
	return a, nil
}

// Progress returns caller's revision statistics for the current month.
func (c *Controller) Progress(ctx context.Context, caller uuid.UUID) (*domain.ProgressStats, error) {
	if caller == uuid.Nil {
		return nil, domain.AuthorizationError("caller is not authenticated", ErrUnauthenticated)
	}

	key := cache.StatsKey(caller.String())
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil {
			var stats domain.ProgressStats
			if err := json.Unmarshal(raw, &stats); err == nil {
				return &stats, nil
			}
		}
	}

	now := c.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, err := c.store.ProgressStats(ctx, caller, monthStart)
	if err != nil {
		return nil, domain.PersistenceError("failed to compute progress", err)
	}

	if c.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.cfg.StatsTTL); err != nil {
				c.logger.Debug().Err(err).Msg("Failed to cache progress stats")
			}
		}
	}
	return stats, nil
}

func (c *Controller) invalidateStats(ctx context.Context, owner uuid.UUID) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(context.WithoutCancel(ctx), cache.StatsKey(owner.String())); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to invalidate progress stats")
	}
}

func (c *Controller) publish(ctx context.Context, evt domain.Event) {
	evt.Timestamp = c.now().UTC()
	if err := c.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		c.logger.WithNewspaper(evt.NewspaperID).Warn().
			Str("event", string(evt.Type)).
			Err(err).
			Msg("Failed to publish event")
	}
}
