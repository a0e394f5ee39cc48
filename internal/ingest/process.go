package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/newspaper-digest/internal/cache"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// MsgTotalPagesMissing is recorded when processing starts before a split.
const MsgTotalPagesMissing = "Total pages missing - please re-split this newspaper."

// ProcessOptions adjusts a single processing run.
type ProcessOptions struct {
	// Concurrency overrides the configured page concurrency when > 0.
	Concurrency int
	// Resume takes over a newspaper stuck in processing instead of
	// starting a fresh run.
	Resume bool
	// OnPage is called after every page. It may be called concurrently.
	OnPage func(extract.PageResult)
}

// PageFailure records a page that produced no articles because of an error.
type PageFailure struct {
	Page  int    `json:"page"`
	Error string `json:"error"`
}

// ProcessResult summarises a processing run.
type ProcessResult struct {
	NewspaperID     uuid.UUID     `json:"newspaperId"`
	Status          domain.Status `json:"status"`
	TotalPages      int           `json:"totalPages"`
	PagesAttempted  int           `json:"pagesAttempted"`
	PagesFailed     int           `json:"pagesFailed"`
	TotalArticles   int           `json:"totalArticles"`
	DroppedArticles int           `json:"droppedArticles"`
	Failures        []PageFailure `json:"failures,omitempty"`
	Message         string        `json:"message"`
	Duration        time.Duration `json:"duration"`
}

// Process moves a newspaper through processing. Every page from 1 to
// total_pages is attempted; a page that fails to extract is logged and
// skipped. The run fails only when the page count is missing, articles
// cannot be saved, the run is cancelled or something panics.
func (c *Controller) Process(ctx context.Context, caller, id uuid.UUID, opts ProcessOptions) (*ProcessResult, error) {
	start := time.Now()

	if _, err := c.authorize(ctx, caller, id); err != nil {
		return nil, err
	}
	if c.worker == nil {
		return nil, domain.ConfigError("no extraction capability is configured", nil)
	}

	runID := uuid.NewString()
	if err := c.enter(ctx, id, runID, opts.Resume); err != nil {
		return nil, err
	}
	defer c.releaseLease(ctx, id, runID)

	logger := c.logger.WithNewspaper(id).WithRun(runID, opts.Resume)

	n, err := c.store.GetNewspaper(ctx, id)
	if err != nil {
		return nil, c.fail(ctx, id, domain.PersistenceError("failed to reload newspaper", err))
	}
	if n.PageCount() == 0 {
		logger.Warn().Msg("Processing refused: page count missing")
		return nil, c.fail(ctx, id, domain.PreconditionError(MsgTotalPagesMissing, nil))
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.cfg.PageConcurrency
	}

	logger.Info().
		Int("pages", n.PageCount()).
		Int("concurrency", concurrency).
		Msg("Processing started")
	c.publish(ctx, domain.Event{
		Type:        domain.EventProcessingStarted,
		NewspaperID: id,
		TotalPages:  n.PageCount(),
	})

	runCtx := ctx
	if c.cfg.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.ProcessTimeout)
		defer cancel()
	}

	stop := c.startHeartbeat(runCtx, id, runID)
	r := &run{
		c:      c,
		runID:  runID,
		opts:   opts,
		logger: logger,
		result: &ProcessResult{
			NewspaperID: id,
			Status:      domain.StatusProcessing,
			TotalPages:  n.PageCount(),
		},
	}
	err = r.pages(runCtx, n.Pages(), concurrency)
	stop()

	result := r.result
	result.Duration = time.Since(start)
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Page < result.Failures[j].Page })

	if err != nil {
		result.Status = domain.StatusFailed
		result.Message = failureReason(err)
		logger.Error().
			Int("pages_attempted", result.PagesAttempted).
			Int("articles", result.TotalArticles).
			Err(err).
			Msg("Processing failed")
		return result, c.fail(ctx, id, err)
	}

	if err := c.store.MarkCompleted(context.WithoutCancel(ctx), id); err != nil {
		result.Status = domain.StatusFailed
		return result, c.fail(ctx, id, domain.PersistenceError("failed to mark newspaper completed", err))
	}

	result.Status = domain.StatusCompleted
	result.Message = fmt.Sprintf("Processed %d pages, extracted %d articles.", result.TotalPages, result.TotalArticles)

	c.invalidateStats(ctx, n.UserID)
	c.publish(ctx, domain.Event{
		Type:        domain.EventProcessingCompleted,
		NewspaperID: id,
		TotalPages:  result.TotalPages,
		Articles:    result.TotalArticles,
		Message:     result.Message,
	})
	logger.Info().
		Int("pages", result.TotalPages).
		Int("pages_failed", result.PagesFailed).
		Int("articles", result.TotalArticles).
		Int("dropped", result.DroppedArticles).
		Dur("duration", result.Duration).
		Msg("Processing completed")

	return result, nil
}

// enter passes the exclusive processing gate. A fresh run needs the row
// not to be processing; a resumed run needs the row to be processing with
// a stale heartbeat and no live lease.
func (c *Controller) enter(ctx context.Context, id uuid.UUID, runID string, resume bool) error {
	key := cache.LeaseKey(id.String())

	var (
		ok  bool
		err error
	)
	if resume {
		if c.leases != nil {
			holder, herr := c.leases.Holder(ctx, key)
			if herr == nil && holder != "" {
				return domain.ConflictError("newspaper is held by an active run", nil)
			}
		}
		ok, err = c.store.ClaimStale(ctx, id, c.now().Add(-c.cfg.StaleAfter))
	} else {
		ok, err = c.store.BeginProcessing(ctx, id)
	}

	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFoundError(fmt.Sprintf("newspaper %s not found", id), err)
	}
	if err != nil {
		return domain.PersistenceError("failed to enter processing", err)
	}
	if !ok {
		if resume {
			return domain.ConflictError("newspaper is not stuck in processing", nil)
		}
		return domain.ConflictError("newspaper is already being processed", nil)
	}

	if c.leases != nil {
		if err := c.leases.Hold(ctx, key, runID, c.cfg.LeaseTTL); err != nil {
			c.logger.WithNewspaper(id).Warn().Err(err).Msg("Failed to take processing lease")
		}
	}
	return nil
}

func (c *Controller) releaseLease(ctx context.Context, id uuid.UUID, runID string) {
	if c.leases == nil {
		return
	}
	if err := c.leases.Release(context.WithoutCancel(ctx), cache.LeaseKey(id.String()), runID); err != nil {
		c.logger.WithNewspaper(id).Warn().Err(err).Msg("Failed to release processing lease")
	}
}

// refresh records a heartbeat on the row and extends the lease.
func (c *Controller) refresh(ctx context.Context, id uuid.UUID, runID string) {
	if err := c.store.TouchProcessing(ctx, id); err != nil && ctx.Err() == nil {
		c.logger.WithNewspaper(id).Warn().Err(err).Msg("Heartbeat failed")
	}
	if c.leases == nil {
		return
	}
	if err := c.leases.Hold(ctx, cache.LeaseKey(id.String()), runID, c.cfg.LeaseTTL); err != nil && ctx.Err() == nil {
		c.logger.WithNewspaper(id).Warn().Err(err).Msg("Lease refresh failed")
	}
}

// startHeartbeat refreshes the run until the returned stop func is called.
// stop waits for the heartbeat goroutine to exit.
func (c *Controller) startHeartbeat(ctx context.Context, id uuid.UUID, runID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refresh(ctx, id, runID)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// fail records cause on the newspaper and returns it.
func (c *Controller) fail(ctx context.Context, id uuid.UUID, cause error) error {
	reason := failureReason(cause)
	if err := c.store.MarkFailed(context.WithoutCancel(ctx), id, reason); err != nil {
		c.logger.WithNewspaper(id).Error().
			Str("reason", reason).
			Err(err).
			Msg("Failed to record processing failure")
	}
	c.publish(ctx, domain.Event{
		Type:        domain.EventProcessingFailed,
		NewspaperID: id,
		Message:     reason,
	})
	return cause
}

func failureReason(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Err == nil {
			return de.Message
		}
		return fmt.Sprintf("%s: %v", de.Message, de.Err)
	}
	return err.Error()
}

// run is the mutable state of one Process call.
type run struct {
	c      *Controller
	runID  string
	opts   ProcessOptions
	logger *observability.Logger

	mu     sync.Mutex
	result *ProcessResult
}

// pages attempts every page. With concurrency 1 pages run strictly in
// order. The first pipeline-fatal error stops new pages from starting.
func (r *run) pages(ctx context.Context, refs []domain.PageRef, concurrency int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return r.page(gctx, ref)
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return fmt.Errorf("processing aborted: %w", context.Cause(ctx))
	}
	return err
}

// page is the per-page error boundary. Extraction failures are absorbed;
// persistence failures and panics are returned as fatal.
func (r *run) page(ctx context.Context, ref domain.PageRef) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("processing panicked on page %d: %v", ref.PageNumber, p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.c.refresh(ctx, ref.NewspaperID, r.runID)
	res := r.c.worker.Extract(ctx, ref)

	if res.Failure == nil && len(res.Articles) > 0 {
		if err := r.c.store.ReplacePageArticles(ctx, ref.NewspaperID, ref.PageNumber, res.Articles); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return domain.PersistenceError(fmt.Sprintf("failed to save articles for page %d", ref.PageNumber), err)
		}
	}

	r.record(res)

	evt := domain.Event{
		Type:        domain.EventPageCompleted,
		NewspaperID: ref.NewspaperID,
		PageNumber:  ref.PageNumber,
		TotalPages:  r.result.TotalPages,
		Articles:    len(res.Articles),
	}
	if res.Failure != nil {
		evt.Type = domain.EventPageFailed
		evt.Message = failureReason(res.Failure)
	}
	r.c.publish(ctx, evt)

	r.logger.WithPage(ref.PageNumber).Info().
		Int("articles", len(res.Articles)).
		Bool("failed", res.Failure != nil).
		Dur("duration", res.Duration).
		Msg("Page processed")

	if r.opts.OnPage != nil {
		r.opts.OnPage(res)
	}
	return nil
}

func (r *run) record(res extract.PageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result.PagesAttempted++
	r.result.DroppedArticles += res.Dropped
	if res.Failure != nil {
		r.result.PagesFailed++
		r.result.Failures = append(r.result.Failures, PageFailure{
			Page:  res.Page.PageNumber,
			Error: failureReason(res.Failure),
		})
		return
	}
	r.result.TotalArticles += len(res.Articles)
}
