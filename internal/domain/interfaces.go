package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewspaperStore persists newspapers and their processing status.
type NewspaperStore interface {
	CreateNewspaper(ctx context.Context, n *Newspaper) error
	GetNewspaper(ctx context.Context, id uuid.UUID) (*Newspaper, error)
	ListNewspapers(ctx context.Context, owner uuid.UUID) ([]*Newspaper, error)
	DeleteNewspaper(ctx context.Context, id uuid.UUID) error

	// SetTotalPages commits the page count; nil clears it. It returns false
	// without writing when the newspaper is processing.
	SetTotalPages(ctx context.Context, id uuid.UUID, pages *int) (bool, error)

	// BeginProcessing atomically moves a newspaper into processing unless it
	// is already there. It returns false when another run holds the gate.
	BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error)

	// ClaimStale takes over a processing newspaper whose last heartbeat is
	// older than before.
	ClaimStale(ctx context.Context, id uuid.UUID, before time.Time) (bool, error)

	// TouchProcessing records a heartbeat for a processing newspaper.
	TouchProcessing(ctx context.Context, id uuid.UUID) error

	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListStaleProcessing(ctx context.Context, before time.Time) ([]*Newspaper, error)
}

// ArticleStore persists extracted articles.
type ArticleStore interface {
	// ReplacePageArticles swaps the article batch of one page in a single
	// transaction.
	ReplacePageArticles(ctx context.Context, newspaperID uuid.UUID, page int, articles []Article) error
	ListArticles(ctx context.Context, filter ArticleFilter) ([]*Article, error)
	GetArticle(ctx context.Context, id uuid.UUID) (*Article, error)
	SetArticleRevised(ctx context.Context, id uuid.UUID, revised bool) error
	ProgressStats(ctx context.Context, owner uuid.UUID, monthStart time.Time) (*ProgressStats, error)
}

// Store is the newspaper and article persistence collaborator.
type Store interface {
	NewspaperStore
	ArticleStore
}

// ObjectStorage holds source PDFs and page artifacts.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, paths ...string) error
	CreateSignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ExtractionCapability calls a multimodal model with the article tool
// schema and returns the raw tool-call arguments.
type ExtractionCapability interface {
	ExtractArticles(ctx context.Context, page PageInput) (json.RawMessage, error)
}

// LeaseManager tracks which run is actively working on a newspaper.
type LeaseManager interface {
	Hold(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key, owner string) error
	Holder(ctx context.Context, key string) (string, error)
}

// EventPublisher broadcasts pipeline progress.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
