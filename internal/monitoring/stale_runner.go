// Package monitoring re-triggers newspapers whose processing run died.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// Resumer takes over a stale processing run.
type Resumer interface {
	Process(ctx context.Context, caller, id uuid.UUID, opts ingest.ProcessOptions) (*ingest.ProcessResult, error)
}

// StaleRunner finds newspapers stuck in processing and resumes them.
type StaleRunner struct {
	logger  *observability.Logger
	store   domain.NewspaperStore
	resumer Resumer
	config  StaleConfig
	now     func() time.Time
}

// StaleConfig holds recovery sweep configuration.
type StaleConfig struct {
	StaleAfter    time.Duration // heartbeat age that marks a run as abandoned
	CheckInterval time.Duration
	// Options customises the run for each resumed newspaper.
	Options func(n *domain.Newspaper) ingest.ProcessOptions
}

// StaleCheckResult contains the results of one sweep.
type StaleCheckResult struct {
	CheckedAt time.Time
	Found     int
	Resumed   []ResumedNewspaper
	Skipped   []uuid.UUID
	Failed    []FailedResume
}

// ResumedNewspaper is a newspaper whose run was taken over and finished.
type ResumedNewspaper struct {
	NewspaperID   uuid.UUID
	TotalArticles int
	PagesFailed   int
}

// FailedResume is a newspaper whose resumed run failed.
type FailedResume struct {
	NewspaperID uuid.UUID
	Error       string
}

// NewStaleRunner creates a new stale runner.
func NewStaleRunner(logger *observability.Logger, store domain.NewspaperStore, resumer Resumer, cfg StaleConfig) *StaleRunner {
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &StaleRunner{
		logger:  logger.WithOperation("recovery"),
		store:   store,
		resumer: resumer,
		config:  cfg,
		now:     time.Now,
	}
}

// RunCheck resumes every newspaper whose heartbeat is older than the
// staleness window. Newspapers claimed by another sweeper are skipped.
func (r *StaleRunner) RunCheck(ctx context.Context) (*StaleCheckResult, error) {
	result := &StaleCheckResult{CheckedAt: r.now()}

	stale, err := r.store.ListStaleProcessing(ctx, result.CheckedAt.Add(-r.config.StaleAfter))
	if err != nil {
		return nil, domain.PersistenceError("failed to list stale newspapers", err)
	}
	result.Found = len(stale)

	if len(stale) == 0 {
		r.logger.Debug().Msg("No stale newspapers")
		return result, nil
	}

	r.logger.Info().Int("stale", len(stale)).Msg("Starting recovery sweep")

	for _, n := range stale {
		if ctx.Err() != nil {
			break
		}

		var opts ingest.ProcessOptions
		if r.config.Options != nil {
			opts = r.config.Options(n)
		}
		opts.Resume = true

		res, err := r.resumer.Process(ctx, n.UserID, n.ID, opts)
		switch {
		case domain.IsType(err, domain.ErrorTypeConflict):
			result.Skipped = append(result.Skipped, n.ID)
			r.logger.WithNewspaper(n.ID).Debug().Msg("Newspaper already claimed")
		case err != nil:
			result.Failed = append(result.Failed, FailedResume{NewspaperID: n.ID, Error: err.Error()})
			r.logger.WithNewspaper(n.ID).Warn().Err(err).Msg("Resumed run failed")
		default:
			result.Resumed = append(result.Resumed, ResumedNewspaper{
				NewspaperID:   n.ID,
				TotalArticles: res.TotalArticles,
				PagesFailed:   res.PagesFailed,
			})
		}
	}

	r.logger.Info().
		Int("found", result.Found).
		Int("resumed", len(result.Resumed)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failed)).
		Msg("Recovery sweep completed")

	return result, ctx.Err()
}

// Schedule runs RunCheck every CheckInterval until ctx is done.
func (r *StaleRunner) Schedule(ctx context.Context) {
	ticker := time.NewTicker(r.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Stopping recovery sweeps")
			return
		case <-ticker.C:
			if _, err := r.RunCheck(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("Recovery sweep failed")
			}
		}
	}
}
