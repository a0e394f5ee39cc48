package ingest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// SplitResult reports a completed split.
type SplitResult struct {
	NewspaperID uuid.UUID
	TotalPages  int
	Message     string
	Duration    time.Duration
}

// Split writes every page of the source PDF to object storage and then
// commits the page count. The count is cleared before the first page is
// written, so a failed split never leaves a count that claims pages which
// are no longer there. Both updates refuse a newspaper that is processing.
func (c *Controller) Split(ctx context.Context, caller, id uuid.UUID) (*SplitResult, error) {
	start := time.Now()

	n, err := c.authorize(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if n.Status == domain.StatusProcessing {
		return nil, errSplitWhileProcessing
	}

	logger := c.logger.WithNewspaper(id)

	src, err := c.objects.Download(ctx, n.FilePath)
	if err != nil {
		return nil, domain.StorageError("failed to download source PDF", err)
	}

	doc, err := c.splitter.Open(src)
	if err != nil {
		logger.Warn().Err(err).Msg("Source PDF could not be opened")
		return nil, err
	}

	ok, err := c.store.SetTotalPages(ctx, id, nil)
	if err != nil {
		return nil, domain.PersistenceError("failed to clear page count", err)
	}
	if !ok {
		return nil, errSplitWhileProcessing
	}

	s := &splitRun{c: c, n: n, logger: logger}
	for page, data := range doc.Pages() {
		path := domain.PagePath(n.UserID, n.ID, page)
		if err := c.objects.Upload(ctx, path, data, "application/pdf", true); err != nil {
			return nil, s.fail(ctx, domain.StorageError(fmt.Sprintf("StorageWriteFailed: page %d", page), err))
		}
		s.written = append(s.written, path)
	}
	if err := doc.Err(); err != nil {
		return nil, s.fail(ctx, err)
	}

	total := doc.PageCount()
	ok, err = c.store.SetTotalPages(ctx, id, &total)
	if err != nil {
		return nil, s.fail(ctx, domain.PersistenceError("failed to record page count", err))
	}
	if !ok {
		s.rollback(ctx)
		return nil, errSplitWhileProcessing
	}

	c.invalidateStats(ctx, n.UserID)

	result := &SplitResult{
		NewspaperID: id,
		TotalPages:  total,
		Message:     fmt.Sprintf("Split %d pages successfully", total),
		Duration:    time.Since(start),
	}

	c.publish(ctx, domain.Event{
		Type:        domain.EventSplitCompleted,
		NewspaperID: id,
		TotalPages:  total,
		Message:     result.Message,
	})
	logger.Info().
		Int("pages", total).
		Bool("resplit", n.TotalPages != nil).
		Dur("duration", result.Duration).
		Msg("Newspaper split")

	return result, nil
}

var errSplitWhileProcessing = domain.ConflictError("cannot split a newspaper while it is being processed", nil)

// splitRun tracks the page artifacts one Split call is responsible for.
type splitRun struct {
	c       *Controller
	n       *domain.Newspaper
	logger  *observability.Logger
	written []string
}

// rollback removes the pages written by this call and, on a re-split, the
// pages of the earlier split whose count was already cleared.
func (s *splitRun) rollback(ctx context.Context) {
	paths := slices.Clone(s.written)
	for _, ref := range s.n.Pages() {
		if !slices.Contains(paths, ref.Path) {
			paths = append(paths, ref.Path)
		}
	}
	if len(paths) == 0 {
		return
	}
	if err := s.c.objects.Delete(context.WithoutCancel(ctx), paths...); err != nil {
		s.logger.Error().
			Int("pages", len(paths)).
			Err(err).
			Msg("Failed to remove partially written pages")
	}
}

// fail rolls back and returns cause. A failed first split leaves the
// newspaper as it was; a failed re-split has dropped the earlier page
// count, so the newspaper is marked failed with the reason.
func (s *splitRun) fail(ctx context.Context, cause error) error {
	s.rollback(ctx)
	if s.n.TotalPages == nil {
		return cause
	}

	reason := "Re-split failed: " + failureReason(cause) + " - please re-split this newspaper."
	if err := s.c.store.MarkFailed(context.WithoutCancel(ctx), s.n.ID, reason); err != nil {
		s.logger.Error().Err(err).Msg("Failed to record split failure")
	}
	s.logger.Warn().Err(cause).Msg("Re-split failed; page count cleared")
	return cause
}
