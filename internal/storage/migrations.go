package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	db      *sql.DB
	dialect Dialect
	files   fs.FS
}

// MigrationStatus represents the status of migrations.
type MigrationStatus struct {
	UpToDate bool
	Applied  []string
	Pending  []string
}

// NewMigrator creates a migrator over the embedded migrations.
func NewMigrator(db *sql.DB, dialect Dialect) *Migrator {
	sub, _ := fs.Sub(migrationFS, "migrations")
	return &Migrator{db: db, dialect: dialect, files: sub}
}

// Status reports which migrations have been applied.
func (m *Migrator) Status(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	versions, err := m.listMigrations()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	status := &MigrationStatus{}
	for _, v := range versions {
		if applied[v.version] {
			status.Applied = append(status.Applied, v.version)
		} else {
			status.Pending = append(status.Pending, v.version)
		}
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Up applies every pending migration in version order and returns the
// versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	versions, err := m.listMigrations()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}

	var ran []string
	for _, v := range versions {
		if applied[v.version] {
			continue
		}
		if err := m.runMigration(ctx, v); err != nil {
			return ran, fmt.Errorf("run migration %s: %w", v.file, err)
		}
		ran = append(ran, v.version)
	}
	return ran, nil
}

type migration struct {
	version string
	file    string
}

// listMigrations returns one file per version. SQLite prefers a
// *_sqlite.sql variant; Postgres ignores those.
func (m *Migrator) listMigrations() ([]migration, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	sqliteFiles := make(map[string]string)
	regularFiles := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.HasSuffix(name, "_sqlite.sql") {
			sqliteFiles[strings.TrimSuffix(name, "_sqlite.sql")] = name
		} else {
			regularFiles[strings.TrimSuffix(name, ".sql")] = name
		}
	}

	var out []migration
	if m.dialect == SQLite {
		for version, file := range sqliteFiles {
			out = append(out, migration{version: version, file: file})
		}
		for version, file := range regularFiles {
			if _, ok := sqliteFiles[version]; !ok {
				out = append(out, migration{version: version, file: file})
			}
		}
	} else {
		for version, file := range regularFiles {
			out = append(out, migration{version: version, file: file})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
	if m.dialect == SQLite {
		query = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) runMigration(ctx context.Context, mig migration) error {
	data, err := fs.ReadFile(m.files, mig.file)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}

	query, args, err := sq.Insert("schema_migrations").
		Columns("version").
		Values(mig.version).
		PlaceholderFormat(m.dialect.Placeholder()).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
