package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/wastetrack/forecast-worker/internal/migrate"
)

// RunMigrations applies the forecast schema migrations and returns the versions it applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	return migrate.Run(ctx, db, logger)
}
