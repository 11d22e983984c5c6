package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data/pgxutil"
)

const (
	advisoryLockMajor        = pgxutil.AdvisoryLockMajor
	advisoryLockReclaimStale = pgxutil.AdvisoryLockReclaimStale
	advisoryLockRatioEpoch   = pgxutil.AdvisoryLockRatioEpoch
)

// StaleReclaimMessage is recorded on jobs that exceeded the reclaim budget.
const StaleReclaimMessage = "worker stopped heartbeating; reclaim limit reached"

// ReclaimStaleRunning returns running jobs whose updated_at is older than params.StaleAfter to
// pending, incrementing reclaim_count. Jobs already reclaimed params.MaxReclaims times are marked
// failed instead. At most params.BatchSize rows are touched per statement. When another reaper
// holds the lock the call is a no-op.
func (r *ForecastJobRepo) ReclaimStaleRunning(ctx context.Context, params core.ReclaimStaleParams) (core.ReclaimStaleResult, error) {
	var result core.ReclaimStaleResult
	if params.StaleAfter <= 0 {
		return result, errors.New("stale threshold must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return result, errors.New("batch size must be greater than zero")
	}
	if params.MaxReclaims < 0 {
		return result, errors.New("max reclaims must not be negative")
	}

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, err := pgxutil.TryAdvisoryXactLock(ctx, tx, advisoryLockMajor, advisoryLockReclaimStale)
			if err != nil {
				return err
			}
			if !locked {
				return nil
			}

			now := r.timeProvider.Now()
			cutoff := now.Add(-params.StaleAfter)

			failed, err := execRowsAffected(ctx, tx, `
        UPDATE forecast_jobs
        SET status = 'failed',
            error_message = $4,
            finished_at = $1,
            updated_at = $1
        WHERE id IN (
          SELECT id FROM forecast_jobs
          WHERE status = 'running' AND updated_at < $2 AND reclaim_count >= $3
          ORDER BY updated_at
          LIMIT $5
          FOR UPDATE SKIP LOCKED
        )
      `, now, cutoff, params.MaxReclaims, StaleReclaimMessage, params.BatchSize)
			if err != nil {
				return fmt.Errorf("fail exhausted stale jobs: %w", err)
			}

			requeued, err := execRowsAffected(ctx, tx, `
        UPDATE forecast_jobs
        SET status = 'pending',
            reclaim_count = reclaim_count + 1,
            started_at = NULL,
            updated_at = $1
        WHERE id IN (
          SELECT id FROM forecast_jobs
          WHERE status = 'running' AND updated_at < $2 AND reclaim_count < $3
          ORDER BY updated_at
          LIMIT $4
          FOR UPDATE SKIP LOCKED
        )
      `, now, cutoff, params.MaxReclaims, params.BatchSize)
			if err != nil {
				return fmt.Errorf("requeue stale jobs: %w", err)
			}

			result = core.ReclaimStaleResult{Requeued: requeued, Failed: failed}
			if requeued > 0 {
				if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1::text, '')`, JobAddedChannel); err != nil {
					return fmt.Errorf("send job notification: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return core.ReclaimStaleResult{}, err
	}
	return result, nil
}

func execRowsAffected(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
