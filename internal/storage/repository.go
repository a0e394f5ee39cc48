package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/spherical/newspaper-digest/internal/domain"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = domain.ErrNotFound

// Repository implements domain.Store.
type Repository struct {
	db      DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ domain.Store = (*Repository)(nil)

// NewRepository creates a repository for the given dialect.
func NewRepository(db DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder()),
		now:     time.Now,
	}
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

var newspaperColumns = []string{
	"id", "user_id", "file_path", "file_name", "file_size", "upload_date",
	"status", "total_pages", "error_message", "created_at", "updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNewspaper(row rowScanner) (*domain.Newspaper, error) {
	var (
		n          domain.Newspaper
		status     string
		totalPages sql.NullInt64
		errMsg     sql.NullString
	)
	err := row.Scan(
		&n.ID, &n.UserID, &n.FilePath, &n.FileName, &n.FileSize, &n.UploadDate,
		&status, &totalPages, &errMsg, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Status = domain.Status(status)
	if !n.Status.Valid() {
		return nil, fmt.Errorf("newspaper %s has unknown status %q", n.ID, status)
	}
	if totalPages.Valid {
		pages := int(totalPages.Int64)
		n.TotalPages = &pages
	}
	if errMsg.Valid {
		n.ErrorMessage = &errMsg.String
	}
	return &n, nil
}

// CreateNewspaper inserts a newspaper in the uploaded state.
func (r *Repository) CreateNewspaper(ctx context.Context, n *domain.Newspaper) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Status == "" {
		n.Status = domain.StatusUploaded
	}
	if !n.Status.Valid() {
		return fmt.Errorf("unknown newspaper status %q", n.Status)
	}
	now := r.timestamp()
	n.CreatedAt, n.UpdatedAt = now, now
	y, m, d := n.UploadDate.Date()
	n.UploadDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	query, args, err := r.sb.Insert("newspapers").
		Columns(newspaperColumns...).
		Values(n.ID, n.UserID, n.FilePath, n.FileName, n.FileSize, n.UploadDate,
			string(n.Status), n.TotalPages, n.ErrorMessage, n.CreatedAt, n.UpdatedAt).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert newspaper: %w", err)
	}
	return nil
}

// GetNewspaper retrieves a newspaper by ID.
func (r *Repository) GetNewspaper(ctx context.Context, id uuid.UUID) (*domain.Newspaper, error) {
	query, args, err := r.sb.Select(newspaperColumns...).
		From("newspapers").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	n, err := scanNewspaper(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return n, err
}

// ListNewspapers returns an owner's newspapers, newest upload first.
func (r *Repository) ListNewspapers(ctx context.Context, owner uuid.UUID) ([]*domain.Newspaper, error) {
	return r.queryNewspapers(ctx, r.sb.Select(newspaperColumns...).
		From("newspapers").
		Where(sq.Eq{"user_id": owner}).
		OrderBy("upload_date DESC", "created_at DESC"))
}

// ListStaleProcessing returns processing newspapers whose heartbeat is
// older than before.
func (r *Repository) ListStaleProcessing(ctx context.Context, before time.Time) ([]*domain.Newspaper, error) {
	return r.queryNewspapers(ctx, r.sb.Select(newspaperColumns...).
		From("newspapers").
		Where(sq.Eq{"status": string(domain.StatusProcessing)}).
		Where(sq.Lt{"updated_at": before.UTC()}).
		OrderBy("updated_at ASC"))
}

func (r *Repository) queryNewspapers(ctx context.Context, b sq.SelectBuilder) ([]*domain.Newspaper, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query newspapers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Newspaper
	for rows.Next() {
		n, err := scanNewspaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scan newspaper: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNewspaper removes a newspaper; its articles cascade.
func (r *Repository) DeleteNewspaper(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, r.sb.Delete("newspapers").Where(sq.Eq{"id": id}), true)
}

// SetTotalPages commits the page count; nil clears it. Like
// BeginProcessing it is a compare-and-set on status, so the count never
// changes under a running Process.
func (r *Repository) SetTotalPages(ctx context.Context, id uuid.UUID, pages *int) (bool, error) {
	ok, err := r.cas(ctx, r.sb.Update("newspapers").
		Set("total_pages", pages).
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(domain.StatusProcessing)}))
	if err != nil || ok {
		return ok, err
	}

	if _, err := r.GetNewspaper(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// BeginProcessing is the exclusive entry gate: a compare-and-set to
// processing that refuses a newspaper already processing.
func (r *Repository) BeginProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := r.cas(ctx, r.sb.Update("newspapers").
		Set("status", string(domain.StatusProcessing)).
		Set("error_message", nil).
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": string(domain.StatusProcessing)}))
	if err != nil || ok {
		return ok, err
	}

	if _, err := r.GetNewspaper(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ClaimStale takes over a processing newspaper whose heartbeat is older
// than before. Exactly one concurrent claimant wins.
func (r *Repository) ClaimStale(ctx context.Context, id uuid.UUID, before time.Time) (bool, error) {
	return r.cas(ctx, r.sb.Update("newspapers").
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id, "status": string(domain.StatusProcessing)}).
		Where(sq.Lt{"updated_at": before.UTC()}))
}

// TouchProcessing records a heartbeat.
func (r *Repository) TouchProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := r.cas(ctx, r.sb.Update("newspapers").
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id, "status": string(domain.StatusProcessing)}))
	return err
}

// MarkCompleted moves a newspaper to completed.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, r.sb.Update("newspapers").
		Set("status", string(domain.StatusCompleted)).
		Set("error_message", nil).
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id}), true)
}

// MarkFailed moves a newspaper to failed with a reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.exec(ctx, r.sb.Update("newspapers").
		Set("status", string(domain.StatusFailed)).
		Set("error_message", reason).
		Set("updated_at", r.timestamp()).
		Where(sq.Eq{"id": id}), true)
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

// cas runs a conditional update and reports whether it matched a row.
func (r *Repository) cas(ctx context.Context, b sqlizer) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update newspaper: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repository) exec(ctx context.Context, b sqlizer, mustMatch bool) error {
	ok, err := r.cas(ctx, b)
	if err != nil {
		return err
	}
	if mustMatch && !ok {
		return ErrNotFound
	}
	return nil
}
