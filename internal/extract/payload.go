package extract

import (
	"strings"

	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/llm"
)

// ToArticles converts a decoded payload into article records for one page.
// Articles without a title or content are dropped and counted.
func ToArticles(payload *llm.ExtractionPayload, ref domain.PageRef) ([]domain.Article, int) {
	if payload == nil {
		return nil, 0
	}

	articles := make([]domain.Article, 0, len(payload.Articles))
	dropped := 0

	for _, raw := range payload.Articles {
		title := strings.TrimSpace(raw.Title)
		content := strings.TrimSpace(raw.Content)
		if title == "" || content == "" {
			dropped++
			continue
		}

		articles = append(articles, domain.Article{
			ID:                uuid.New(),
			NewspaperID:       ref.NewspaperID,
			PageNumber:        ref.PageNumber,
			PageFilePath:      ref.Path,
			Title:             title,
			Content:           content,
			GSPapers:          papers(raw.GSPapers),
			GSSyllabusTopics:  topics(raw.GSSyllabusTopics),
			Keywords:          clean(raw.Keywords),
			OneLiner:          optional(raw.OneLiner),
			KeyPoints:         optional(string(raw.KeyPoints)),
			PrelimsCard:       optional(string(raw.PrelimsCard)),
			StaticTopics:      clean(raw.StaticTopics),
			StaticExplanation: optional(string(raw.StaticExplanation)),
			IsImportant:       bool(raw.IsImportant),
		})
	}

	return articles, dropped
}

// papers keeps only GS1..GS4, in first-seen order.
func papers(in []string) []domain.GSPaper {
	out := make([]domain.GSPaper, 0, len(in))
	seen := make(map[domain.GSPaper]bool, len(in))
	for _, s := range in {
		p, ok := domain.ParseGSPaper(s)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func topics(in []string) []string {
	out := clean(in)
	for i, t := range out {
		if canonical, ok := domain.CanonicalTopic(t); ok {
			out[i] = canonical
		}
	}
	return dedupe(out)
}

func clean(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
