package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// FeatureRepo reads daily aggregates from the inbound tables. It never writes.
type FeatureRepo struct {
	DB *sql.DB
}

// NewFeatureRepo creates a new FeatureRepo.
func NewFeatureRepo(db *sql.DB) *FeatureRepo {
	return &FeatureRepo{DB: db}
}

// FetchActuals returns total inbound tonnage per date in [from, to], ascending.
// Dates without rows are absent from the result.
func (r *FeatureRepo) FetchActuals(ctx context.Context, from, to model.Date) ([]model.DailyActual, error) {
	rows, err := r.DB.QueryContext(ctx, `
    SELECT ddate, SUM(ton)::float8
    FROM inbound_actuals
    WHERE ddate BETWEEN $1 AND $2
    GROUP BY ddate
    ORDER BY ddate
  `, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch actuals: %w", err)
	}
	defer rows.Close()

	out := make([]model.DailyActual, 0)
	for rows.Next() {
		var a model.DailyActual
		if err := rows.Scan(&a.Date, &a.Ton); err != nil {
			return nil, fmt.Errorf("scan actual: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actuals: %w", err)
	}
	return out, nil
}

// FetchReservations returns booked tonnage and truck count per date in [from, to], ascending.
func (r *FeatureRepo) FetchReservations(ctx context.Context, from, to model.Date) ([]model.DailyReservation, error) {
	rows, err := r.DB.QueryContext(ctx, `
    SELECT ddate, COALESCE(SUM(reserved_ton), 0)::float8, COALESCE(SUM(trucks), 0)::int
    FROM inbound_reservations
    WHERE ddate BETWEEN $1 AND $2
    GROUP BY ddate
    ORDER BY ddate
  `, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	defer rows.Close()

	out := make([]model.DailyReservation, 0)
	for rows.Next() {
		var res model.DailyReservation
		if err := rows.Scan(&res.Date, &res.ReservedTon, &res.Trucks); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}
