package postgres

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	ierr "github.com/flexprice/autobill/internal/errors"
	"github.com/samber/lo"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema file
type Migration struct {
	Version string
	SQL     string
}

// Migrations returns the embedded schema files in version order
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
		}
		out = append(out, Migration{Version: name[len("migrations/"):], SQL: string(body)})
	}
	return out, nil
}

// Pending returns the embedded migrations not recorded in schema_migrations
func (db *DB) Pending(ctx context.Context) ([]Migration, error) {
	all, err := Migrations()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not create schema_migrations table").
			Mark(ierr.ErrDatabase)
	}

	var applied []string
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return lo.Filter(all, func(m Migration, _ int) bool {
		return !lo.Contains(applied, m.Version)
	}), nil
}

// Migrate applies every pending migration, each in its own transaction
func (db *DB) Migrate(ctx context.Context) ([]Migration, error) {
	pending, err := db.Pending(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range pending {
		err := db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, m.SQL); err != nil {
				return ierr.WithError(err).
					WithHintf("Migration %s failed", m.Version).
					Mark(ierr.ErrDatabase)
			}
			if _, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
				return ierr.WithError(err).Mark(ierr.ErrDatabase)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		db.logger.Infow("applied migration", "version", m.Version)
	}
	return pending, nil
}
