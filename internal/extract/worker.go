// Package extract turns one stored page into article records.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/llm"
	"github.com/spherical/newspaper-digest/internal/observability"
)

// InputMode selects how a page reaches the extraction capability.
type InputMode string

const (
	InputSignedURL   InputMode = "signed_url"
	InputInlinePDF   InputMode = "inline_pdf"
	InputInlineImage InputMode = "inline_image"
)

// DefaultSignedURLTTL is how long a page URL handed to the capability stays valid.
const DefaultSignedURLTTL = time.Hour

// Rasterizer renders a single-page PDF to an image.
type Rasterizer interface {
	RenderJPEG(page []byte) ([]byte, error)
}

// Config configures a Worker.
type Config struct {
	Mode         InputMode
	SignedURLTTL time.Duration
	Rasterizer   Rasterizer
}

// PageResult is the outcome of one page. Failure is set, and Articles is
// empty, when the page could not be extracted; the pipeline continues.
type PageResult struct {
	Page     domain.PageRef
	Articles []domain.Article
	Dropped  int
	Failure  error
	Duration time.Duration
}

// Worker extracts articles from one page at a time.
type Worker struct {
	storage    domain.ObjectStorage
	capability domain.ExtractionCapability
	cfg        Config
	logger     *observability.Logger
}

// NewWorker creates a worker.
func NewWorker(storage domain.ObjectStorage, capability domain.ExtractionCapability, cfg Config, logger *observability.Logger) (*Worker, error) {
	if cfg.Mode == "" {
		cfg.Mode = InputSignedURL
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = DefaultSignedURLTTL
	}

	switch cfg.Mode {
	case InputSignedURL, InputInlinePDF:
	case InputInlineImage:
		if cfg.Rasterizer == nil {
			return nil, domain.ConfigError("inline_image input mode needs a rasterizer", nil)
		}
	default:
		return nil, domain.ConfigError(fmt.Sprintf("unknown input mode %q", cfg.Mode), nil)
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Worker{
		storage:    storage,
		capability: capability,
		cfg:        cfg,
		logger:     logger.WithOperation("extract"),
	}, nil
}

// Extract runs one page through the capability. It never returns an error;
// failures are reported in PageResult.Failure.
func (w *Worker) Extract(ctx context.Context, ref domain.PageRef) PageResult {
	start := time.Now()
	result := PageResult{Page: ref}

	logger := w.logger.WithNewspaper(ref.NewspaperID).WithPage(ref.PageNumber)

	articles, dropped, err := w.extract(ctx, ref)
	result.Duration = time.Since(start)
	if err != nil {
		result.Failure = err
		logger.Warn().
			Err(err).
			Msg("Page extraction failed")
		return result
	}

	result.Articles = articles
	result.Dropped = dropped

	if dropped > 0 {
		logger.Warn().
			Int("dropped", dropped).
			Msg("Dropped articles missing title or content")
	}
	logger.Debug().
		Int("articles", len(articles)).
		Dur("duration", result.Duration).
		Msg("Page extracted")

	return result
}

func (w *Worker) extract(ctx context.Context, ref domain.PageRef) ([]domain.Article, int, error) {
	input, err := w.resolveInput(ctx, ref)
	if err != nil {
		return nil, 0, err
	}

	raw, err := w.capability.ExtractArticles(ctx, input)
	if err != nil {
		return nil, 0, domain.ExtractionError(fmt.Sprintf("extraction failed for page %d", ref.PageNumber), err)
	}

	payload, err := llm.ParsePayload(raw)
	if err != nil {
		return nil, 0, domain.ExtractionError(fmt.Sprintf("unparsable extraction output for page %d", ref.PageNumber), err)
	}

	articles, dropped := ToArticles(payload, ref)
	return articles, dropped, nil
}

func (w *Worker) resolveInput(ctx context.Context, ref domain.PageRef) (domain.PageInput, error) {
	input := domain.PageInput{
		NewspaperID: ref.NewspaperID,
		PageNumber:  ref.PageNumber,
		MIMEType:    "application/pdf",
	}

	if w.cfg.Mode == InputSignedURL {
		url, err := w.storage.CreateSignedURL(ctx, ref.Path, w.cfg.SignedURLTTL)
		if err != nil {
			return input, domain.StorageError(fmt.Sprintf("could not sign page %d", ref.PageNumber), err)
		}
		input.URL = url
		return input, nil
	}

	data, err := w.storage.Download(ctx, ref.Path)
	if err != nil {
		return input, domain.StorageError(fmt.Sprintf("could not download page %d", ref.PageNumber), err)
	}

	if w.cfg.Mode == InputInlineImage {
		img, err := w.cfg.Rasterizer.RenderJPEG(data)
		if err != nil {
			return input, domain.ExtractionError(fmt.Sprintf("could not render page %d", ref.PageNumber), err)
		}
		input.Data = img
		input.MIMEType = "image/jpeg"
		return input, nil
	}

	input.Data = data
	return input, nil
}
