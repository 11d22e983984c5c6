package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// ForecastResultRepo persists forecast results in Postgres.
type ForecastResultRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewForecastResultRepo creates a new ForecastResultRepo.
func NewForecastResultRepo(db *sql.DB, tp TimeProvider) *ForecastResultRepo {
	if tp == nil {
		tp = RealTimeProvider{}
	}
	return &ForecastResultRepo{DB: db, timeProvider: tp}
}

// Save inserts one result and returns its id. An existing row for (target_date, job_id) is never
// overwritten; the call returns ErrDuplicateResult instead.
func (r *ForecastResultRepo) Save(ctx context.Context, params model.SaveResultParams) (int64, error) {
	if err := params.Validate(); err != nil {
		if errors.Is(err, model.ErrPartialBand) {
			return 0, fmt.Errorf("%w: %w", ErrInvalidBand, err)
		}
		return 0, err
	}

	unit := params.Unit
	if unit == "" {
		unit = model.DefaultResultUnit
	}
	var snapshot any
	if len(params.InputSnapshot) > 0 {
		snapshot = []byte(params.InputSnapshot)
	}

	var id int64
	err := r.DB.QueryRowContext(ctx, `
    INSERT INTO forecast_results (target_date, job_id, p50, p10, p90, unit, model_version, input_snapshot, generated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    RETURNING id
  `,
		params.TargetDate,
		params.JobID,
		params.P50,
		params.P10,
		params.P90,
		unit,
		params.ModelVersion,
		snapshot,
		r.timeProvider.Now(),
	).Scan(&id)
	if err != nil {
		return 0, mapResultError(err)
	}
	return id, nil
}

func mapResultError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrDuplicateResult
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w: %s", ErrInvalidBand, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return ErrJobNotFound
		}
	}
	return fmt.Errorf("insert forecast result: %w", err)
}

// ListByJob returns every result of a job ordered by target_date.
func (r *ForecastResultRepo) ListByJob(ctx context.Context, jobID string) ([]*model.ForecastResult, error) {
	if !isJobID(jobID) {
		return nil, ErrJobNotFound
	}
	rows, err := r.DB.QueryContext(ctx, `
    SELECT id, target_date, job_id, p50::float8, p10::float8, p90::float8, unit, model_version, input_snapshot, generated_at
    FROM forecast_results
    WHERE job_id = $1
    ORDER BY target_date
  `, jobID)
	if err != nil {
		return nil, fmt.Errorf("list forecast results: %w", err)
	}
	defer rows.Close()

	results := make([]*model.ForecastResult, 0)
	for rows.Next() {
		var (
			res      model.ForecastResult
			p10, p90 sql.NullFloat64
			snapshot []byte
		)
		if err := rows.Scan(
			&res.ID,
			&res.TargetDate,
			&res.JobID,
			&res.P50,
			&p10,
			&p90,
			&res.Unit,
			&res.ModelVersion,
			&snapshot,
			&res.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("scan forecast result: %w", err)
		}
		if p10.Valid {
			res.P10 = &p10.Float64
		}
		if p90.Valid {
			res.P90 = &p90.Float64
		}
		if len(snapshot) > 0 {
			res.InputSnapshot = append(json.RawMessage(nil), snapshot...)
		}
		res.GeneratedAt = res.GeneratedAt.UTC()
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecast results: %w", err)
	}
	return results, nil
}
