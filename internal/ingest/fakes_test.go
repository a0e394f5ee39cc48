package ingest

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/objectstore"
)

// memStore is an in-memory domain.Store with the same gate semantics as
// the SQL repository.
type memStore struct {
	mu         sync.Mutex
	newspapers map[uuid.UUID]*domain.Newspaper
	articles   map[uuid.UUID]map[int][]domain.Article
	now        func() time.Time

	replaceErr  map[int]error
	setPagesErr error
	replaced    []int
}

var _ domain.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		newspapers: make(map[uuid.UUID]*domain.Newspaper),
		articles:   make(map[uuid.UUID]map[int][]domain.Article),
		now:        time.Now,
		replaceErr: make(map[int]error),
	}
}

func (s *memStore) CreateNewspaper(_ context.Context, n *domain.Newspaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = domain.StatusUploaded
	}
	n.CreatedAt, n.UpdatedAt = s.now(), s.now()
	cp := *n
	s.newspapers[n.ID] = &cp
	return nil
}

func (s *memStore) get(id uuid.UUID) (*domain.Newspaper, error) {
	n, ok := s.newspapers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

func (s *memStore) GetNewspaper(_ context.Context, id uuid.UUID) (*domain.Newspaper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.get(id)
	if err != nil {
		return nil, err
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) ListNewspapers(_ context.Context, owner uuid.UUID) ([]*domain.Newspaper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Newspaper
	for _, n := range s.newspapers {
		if n.UserID == owner {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, nil
}

func (s *memStore) DeleteNewspaper(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.get(id); err != nil {
		return err
	}
	delete(s.newspapers, id)
	delete(s.articles, id)
	return nil
}

func (s *memStore) SetTotalPages(_ context.Context, id uuid.UUID, pages *int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setPagesErr != nil && pages != nil {
		return false, s.setPagesErr
	}
	n, err := s.get(id)
	if err != nil {
		return false, err
	}
	if n.Status == domain.StatusProcessing {
		return false, nil
	}
	if pages == nil {
		n.TotalPages = nil
	} else {
		v := *pages
		n.TotalPages = &v
	}
	n.UpdatedAt = s.now()
	return true, nil
}

func (s *memStore) BeginProcessing(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.get(id)
	if err != nil {
		return false, err
	}
	if n.Status == domain.StatusProcessing {
		return false, nil
	}
	n.Status = domain.StatusProcessing
	n.ErrorMessage = nil
	n.UpdatedAt = s.now()
	return true, nil
}

func (s *memStore) ClaimStale(_ context.Context, id uuid.UUID, before time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.get(id)
	if err != nil {
		return false, nil
	}
	if n.Status != domain.StatusProcessing || !n.UpdatedAt.Before(before) {
		return false, nil
	}
	n.UpdatedAt = s.now()
	return true, nil
}

func (s *memStore) TouchProcessing(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, err := s.get(id); err == nil && n.Status == domain.StatusProcessing {
		n.UpdatedAt = s.now()
	}
	return nil
}

func (s *memStore) setStatus(id uuid.UUID, status domain.Status, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.get(id)
	if err != nil {
		return err
	}
	n.Status = status
	n.ErrorMessage = reason
	n.UpdatedAt = s.now()
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return s.setStatus(id, domain.StatusCompleted, nil)
}

func (s *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	return s.setStatus(id, domain.StatusFailed, &reason)
}

func (s *memStore) ListStaleProcessing(_ context.Context, before time.Time) ([]*domain.Newspaper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Newspaper
	for _, n := range s.newspapers {
		if n.Status == domain.StatusProcessing && n.UpdatedAt.Before(before) {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) ReplacePageArticles(_ context.Context, newspaperID uuid.UUID, page int, articles []domain.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.replaceErr[page]; err != nil {
		return err
	}
	if _, err := s.get(newspaperID); err != nil {
		return err
	}
	for _, a := range articles {
		if a.NewspaperID != newspaperID || a.PageNumber != page {
			return errors.New("article belongs to another page")
		}
	}
	if s.articles[newspaperID] == nil {
		s.articles[newspaperID] = make(map[int][]domain.Article)
	}
	s.articles[newspaperID][page] = append([]domain.Article(nil), articles...)
	s.replaced = append(s.replaced, page)
	return nil
}

func (s *memStore) all(newspaperID uuid.UUID) []domain.Article {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := make([]int, 0, len(s.articles[newspaperID]))
	for p := range s.articles[newspaperID] {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	var out []domain.Article
	for _, p := range pages {
		out = append(out, s.articles[newspaperID][p]...)
	}
	return out
}

func (s *memStore) ListArticles(_ context.Context, filter domain.ArticleFilter) ([]*domain.Article, error) {
	ids := []uuid.UUID{filter.NewspaperID}
	if filter.NewspaperID == uuid.Nil {
		ids = s.owned(filter.OwnerID)
	}

	out := []*domain.Article{}
	for _, id := range ids {
		for _, a := range s.all(id) {
			if filter.PageNumber > 0 && a.PageNumber != filter.PageNumber {
				continue
			}
			if filter.GSPaper != "" && !slices.Contains(a.GSPapers, filter.GSPaper) {
				continue
			}
			if filter.Limit > 0 && len(out) == filter.Limit {
				return out, nil
			}
			cp := a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) owned(owner uuid.UUID) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, n := range s.newspapers {
		if n.UserID == owner {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return ids
}

func (s *memStore) GetArticle(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pages := range s.articles {
		for _, list := range pages {
			for _, a := range list {
				if a.ID == id {
					cp := a
					return &cp, nil
				}
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) SetArticleRevised(_ context.Context, id uuid.UUID, revised bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pages := range s.articles {
		for _, list := range pages {
			for i := range list {
				if list[i].ID == id {
					list[i].IsRevised = revised
					return nil
				}
			}
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) ProgressStats(_ context.Context, owner uuid.UUID, _ time.Time) (*domain.ProgressStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &domain.ProgressStats{ArticlesByPaper: map[string]int{}}
	for id, n := range s.newspapers {
		if n.UserID != owner {
			continue
		}
		stats.TotalNewspapers++
		for _, list := range s.articles[id] {
			stats.TotalArticles += len(list)
		}
	}
	return stats, nil
}

// scriptedExtractor returns a canned result per page.
type scriptedExtractor struct {
	mu       sync.Mutex
	results  map[int]extract.PageResult
	panicOn  int
	block    chan struct{}
	attempts []int
}

func (e *scriptedExtractor) Extract(ctx context.Context, ref domain.PageRef) extract.PageResult {
	e.mu.Lock()
	e.attempts = append(e.attempts, ref.PageNumber)
	e.mu.Unlock()

	if e.panicOn == ref.PageNumber {
		panic("renderer exploded")
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return extract.PageResult{Page: ref, Failure: domain.ExtractionError("cancelled", ctx.Err())}
		}
	}

	res, ok := e.results[ref.PageNumber]
	if !ok {
		return extract.PageResult{Page: ref, Articles: []domain.Article{}}
	}
	res.Page = ref
	for i := range res.Articles {
		res.Articles[i].ID = uuid.New()
		res.Articles[i].NewspaperID = ref.NewspaperID
		res.Articles[i].PageNumber = ref.PageNumber
		res.Articles[i].PageFilePath = ref.Path
	}
	return res
}

func (e *scriptedExtractor) attempted() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := append([]int(nil), e.attempts...)
	sort.Ints(out)
	return out
}

func articles(titles ...string) []domain.Article {
	out := make([]domain.Article, len(titles))
	for i, t := range titles {
		out[i] = domain.Article{Title: t, Content: t + " body"}
	}
	return out
}

// failingUploads fails Upload for paths listed in fail.
type failingUploads struct {
	*objectstore.MemoryStore
	fail map[string]bool
}

func (f *failingUploads) Upload(ctx context.Context, path string, data []byte, contentType string, upsert bool) error {
	if f.fail[path] {
		return errors.New("bucket unavailable")
	}
	return f.MemoryStore.Upload(ctx, path, data, contentType, upsert)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
