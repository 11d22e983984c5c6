// Package migrate applies the embedded forecast schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/wastetrack/forecast-worker/internal/data/pgxutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const createVersionTableSQL = `
  CREATE TABLE IF NOT EXISTS schema_migrations (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
  )`

type migration struct {
	version string
	file    string
}

// Run applies every embedded migration that schema_migrations does not list yet and returns the
// versions it applied. Concurrent callers serialize on a session advisory lock, so instances
// starting together apply each version once. logger may be nil.
func Run(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migrations")

	migrations, err := embedded(migrationsFS)
	if err != nil {
		return nil, err
	}

	var applied []string
	err = pgxutil.WithSessionAdvisoryLock(ctx, db, pgxutil.AdvisoryLockMajor, pgxutil.AdvisoryLockMigrations,
		func(conn *pgx.Conn) error {
			if _, execErr := conn.Exec(ctx, createVersionTableSQL); execErr != nil {
				return fmt.Errorf("create schema_migrations table: %w", execErr)
			}
			for _, m := range migrations {
				ok, applyErr := apply(ctx, conn, m, logger)
				if applyErr != nil {
					return applyErr
				}
				if ok {
					applied = append(applied, m.version)
				}
			}
			return nil
		})
	return applied, err
}

// embedded lists the .sql files under migrations/ in version order.
func embedded(fsys fs.ReadDirFS) ([]migration, error) {
	entries, err := fsys.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	out := make([]migration, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, migration{version: strings.TrimSuffix(e.Name(), ".sql"), file: e.Name()})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// apply runs one migration and its schema_migrations row in a single transaction. It reports
// false when the version was already recorded.
func apply(ctx context.Context, conn *pgx.Conn, m migration, logger *slog.Logger) (bool, error) {
	var exists bool
	if err := conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.file, err)
	}
	if exists {
		return false, nil
	}

	body, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", m.file, err)
	}

	logger.InfoContext(ctx, "applying migration", "version", m.version)

	// No arguments: pgx sends the file over the simple protocol, which allows several statements.
	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, execErr := tx.Exec(ctx, string(body)); execErr != nil {
			return fmt.Errorf("exec migration %s: %w", m.file, execErr)
		}
		if _, execErr := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); execErr != nil {
			return fmt.Errorf("record migration %s: %w", m.file, execErr)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
