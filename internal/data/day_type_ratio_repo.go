package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wastetrack/forecast-worker/internal/data/pgxutil"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// DayTypeRatioRepo persists day-type ratio epochs.
type DayTypeRatioRepo struct {
	DB *sql.DB
}

// NewDayTypeRatioRepo creates a new DayTypeRatioRepo.
func NewDayTypeRatioRepo(db *sql.DB) *DayTypeRatioRepo {
	return &DayTypeRatioRepo{DB: db}
}

// ReplaceEpoch deletes every row of effectiveFrom and inserts ratios in one transaction.
// Concurrent replacements are rejected with ErrEpochLocked rather than interleaved.
func (r *DayTypeRatioRepo) ReplaceEpoch(ctx context.Context, effectiveFrom model.Date, ratios []model.DayTypeRatio) error {
	for _, ratio := range ratios {
		if !ratio.EffectiveFrom.Equal(effectiveFrom) {
			return fmt.Errorf("ratio for %s has effective_from %s, want %s", ratio.DayType, ratio.EffectiveFrom, effectiveFrom)
		}
		if !ratio.DayType.Valid() {
			return fmt.Errorf("invalid day type %q", ratio.DayType)
		}
	}

	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockMajor, advisoryLockRatioEpoch)
			if err != nil {
				return err
			}
			if !locked {
				return ErrEpochLocked
			}

			if _, err := tx.ExecContext(ctx, `DELETE FROM day_type_ratios WHERE effective_from = $1`, effectiveFrom); err != nil {
				return fmt.Errorf("delete epoch %s: %w", effectiveFrom, err)
			}
			for _, ratio := range ratios {
				if _, err := tx.ExecContext(ctx, `
          INSERT INTO day_type_ratios
            (effective_from, day_type, mean_ton, ratio, sample_days, lookback_years, baseline_day_type, computed_at)
          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        `,
					effectiveFrom,
					ratio.DayType,
					ratio.MeanTon,
					ratio.Ratio,
					ratio.SampleDays,
					ratio.LookbackYears,
					ratio.BaselineDayType,
					ratio.ComputedAt.UTC(),
				); err != nil {
					return fmt.Errorf("insert %s ratio: %w", ratio.DayType, err)
				}
			}
			return nil
		},
	})
}

// ListByEpoch returns the ratios of one epoch ordered by day type.
func (r *DayTypeRatioRepo) ListByEpoch(ctx context.Context, effectiveFrom model.Date) ([]model.DayTypeRatio, error) {
	rows, err := r.DB.QueryContext(ctx, `
    SELECT effective_from, day_type, mean_ton::float8, ratio::float8, sample_days, lookback_years, baseline_day_type, computed_at
    FROM day_type_ratios
    WHERE effective_from = $1
    ORDER BY day_type
  `, effectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("list day type ratios: %w", err)
	}
	defer rows.Close()

	out := make([]model.DayTypeRatio, 0)
	for rows.Next() {
		var ratio model.DayTypeRatio
		if err := rows.Scan(
			&ratio.EffectiveFrom,
			&ratio.DayType,
			&ratio.MeanTon,
			&ratio.Ratio,
			&ratio.SampleDays,
			&ratio.LookbackYears,
			&ratio.BaselineDayType,
			&ratio.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan day type ratio: %w", err)
		}
		ratio.ComputedAt = ratio.ComputedAt.UTC()
		out = append(out, ratio)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate day type ratios: %w", err)
	}
	return out, nil
}
