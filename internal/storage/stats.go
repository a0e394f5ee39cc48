package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
)

const topTopics = 5

// ProgressStats aggregates an owner's reading progress. Topic counts use
// static topics; this month is measured from monthStart.
func (r *Repository) ProgressStats(ctx context.Context, owner uuid.UUID, monthStart time.Time) (*domain.ProgressStats, error) {
	stats := &domain.ProgressStats{
		ArticlesByPaper: make(map[string]int, len(domain.GSPapers)),
		TopicsAllTime:   []domain.TopicCount{},
		TopicsThisMonth: []domain.TopicCount{},
	}
	for _, p := range domain.GSPapers {
		stats.ArticlesByPaper[string(p)] = 0
	}
	monthStart = monthStart.UTC()

	query, args, err := r.sb.Select("COUNT(*)").
		Column(sq.Expr("COALESCE(SUM(CASE WHEN upload_date >= ? THEN 1 ELSE 0 END), 0)", monthStart)).
		From("newspapers").
		Where(sq.Eq{"user_id": owner}).
		ToSql()
	if err != nil {
		return nil, err
	}

	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalNewspapers, &stats.UploadedThisMonth); err != nil {
		return nil, fmt.Errorf("count newspapers: %w", err)
	}

	query, args, err = r.sb.Select("a.gs_papers", "a.static_topics", "a.is_important", "a.is_revised", "a.created_at").
		From("articles a").
		Join("newspapers n ON n.id = a.newspaper_id").
		Where(sq.Eq{"n.user_id": owner}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query article stats: %w", err)
	}
	defer rows.Close()

	allTime := make(map[string]int)
	thisMonth := make(map[string]int)

	for rows.Next() {
		var (
			papers, topics     stringList
			important, revised bool
			createdAt          time.Time
		)
		if err := rows.Scan(&papers, &topics, &important, &revised, &createdAt); err != nil {
			return nil, fmt.Errorf("scan article stats: %w", err)
		}

		stats.TotalArticles++
		if important {
			stats.ImportantArticles++
		}
		if revised {
			stats.RevisedArticles++
		}
		for _, p := range stringsToPapers(papers) {
			stats.ArticlesByPaper[string(p)]++
		}

		recent := !createdAt.Before(monthStart)
		for _, t := range topics {
			allTime[t]++
			if recent {
				thisMonth[t]++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.TopicsAllTime = rankTopics(allTime, topTopics)
	stats.TopicsThisMonth = rankTopics(thisMonth, topTopics)
	return stats, nil
}

func rankTopics(counts map[string]int, limit int) []domain.TopicCount {
	out := make([]domain.TopicCount, 0, len(counts))
	for topic, count := range counts {
		out = append(out, domain.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
