package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
)

var articleColumns = []string{
	"id", "newspaper_id", "page_number", "page_file_path", "title", "content",
	"gs_papers", "gs_syllabus_topics", "keywords", "one_liner", "key_points",
	"prelims_card", "static_topics", "static_explanation", "is_important",
	"is_revised", "created_at",
}

func qualified(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		a                                        domain.Article
		papers, topics, keywords, staticTopics   stringList
		oneLiner, keyPoints, prelims, staticExpl sql.NullString
	)
	err := row.Scan(
		&a.ID, &a.NewspaperID, &a.PageNumber, &a.PageFilePath, &a.Title, &a.Content,
		&papers, &topics, &keywords, &oneLiner, &keyPoints,
		&prelims, &staticTopics, &staticExpl, &a.IsImportant,
		&a.IsRevised, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.GSPapers = stringsToPapers(papers)
	a.GSSyllabusTopics = []string(topics)
	a.Keywords = []string(keywords)
	a.StaticTopics = []string(staticTopics)
	a.OneLiner = nullString(oneLiner)
	a.KeyPoints = nullString(keyPoints)
	a.PrelimsCard = nullString(prelims)
	a.StaticExplanation = nullString(staticExpl)
	return &a, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// ReplacePageArticles swaps the article batch of one page in a single
// transaction, so re-running a page never duplicates its articles.
func (r *Repository) ReplacePageArticles(ctx context.Context, newspaperID uuid.UUID, page int, articles []domain.Article) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := r.sb.Delete("articles").
		Where(sq.Eq{"newspaper_id": newspaperID, "page_number": page}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete page articles: %w", err)
	}

	if len(articles) > 0 {
		insert := r.sb.Insert("articles").Columns(articleColumns...)
		now := r.timestamp()
		for i := range articles {
			a := &articles[i]
			if a.ID == uuid.Nil {
				a.ID = uuid.New()
			}
			if a.NewspaperID != newspaperID || a.PageNumber != page {
				return fmt.Errorf("article %q does not belong to page %d", a.Title, page)
			}
			a.CreatedAt = now
			insert = insert.Values(
				a.ID, a.NewspaperID, a.PageNumber, a.PageFilePath, a.Title, a.Content,
				r.dialect.arrayValue(papersToStrings(a.GSPapers)),
				r.dialect.arrayValue(a.GSSyllabusTopics),
				r.dialect.arrayValue(a.Keywords),
				a.OneLiner, a.KeyPoints, a.PrelimsCard,
				r.dialect.arrayValue(a.StaticTopics),
				a.StaticExplanation, a.IsImportant, a.IsRevised, a.CreatedAt,
			)
		}

		query, args, err = insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert page articles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit page articles: %w", err)
	}
	return nil
}

// ListArticles returns articles matching filter, in page order.
func (r *Repository) ListArticles(ctx context.Context, filter domain.ArticleFilter) ([]*domain.Article, error) {
	b := r.sb.Select(qualified("a", articleColumns)...).From("articles a")

	if filter.OwnerID != uuid.Nil {
		b = b.Join("newspapers n ON n.id = a.newspaper_id").Where(sq.Eq{"n.user_id": filter.OwnerID})
	}
	if filter.NewspaperID != uuid.Nil {
		b = b.Where(sq.Eq{"a.newspaper_id": filter.NewspaperID})
	}
	if filter.PageNumber > 0 {
		b = b.Where(sq.Eq{"a.page_number": filter.PageNumber})
	}
	if filter.GSPaper != "" {
		b = b.Where(r.hasPaper(filter.GSPaper))
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	b = b.OrderBy("a.page_number ASC", "a.created_at ASC", "a.title ASC")

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out := []*domain.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) hasPaper(p domain.GSPaper) sq.Sqlizer {
	if r.dialect == Postgres {
		return sq.Expr("? = ANY(a.gs_papers)", string(p))
	}
	return sq.Expr("EXISTS (SELECT 1 FROM json_each(a.gs_papers) WHERE json_each.value = ?)", string(p))
}

// GetArticle retrieves an article by ID.
func (r *Repository) GetArticle(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	query, args, err := r.sb.Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	a, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// SetArticleRevised updates the user's revision flag.
func (r *Repository) SetArticleRevised(ctx context.Context, id uuid.UUID, revised bool) error {
	return r.exec(ctx, r.sb.Update("articles").
		Set("is_revised", revised).
		Where(sq.Eq{"id": id}), true)
}
