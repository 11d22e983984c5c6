package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

const testJobID = "0190c1d2-7a3b-7c4d-8e5f-6a7b8c9d0e1f"

var jobRowColumns = []string{
	"id", "job_type", "target_from", "target_to", "status", "actor", "payload", "error_message",
	"reclaim_count", "started_at", "finished_at", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func jobRow(status string, now time.Time) []driver.Value {
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []driver.Value{
		testJobID, "daily", day, day.AddDate(0, 0, 2), status, "scheduler", []byte(`{"history_days":28}`), nil,
		int64(0), now, nil, now, now,
	}
}

func TestForecastJobRepo_ClaimNextPending(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)

	t.Run("claims oldest pending", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})

		mock.ExpectQuery(`WITH cte AS .*FOR UPDATE SKIP LOCKED.*UPDATE forecast_jobs`).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(jobRow("running", now)...))

		job, err := repo.ClaimNextPending(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testJobID, job.ID)
		assert.Equal(t, model.JobStatusRunning, job.Status)
		assert.Equal(t, model.JobTypeDaily, job.Type)
		assert.Equal(t, model.MustParseDate("2025-01-03"), job.TargetTo)
		require.NotNil(t, job.StartedAt)
		assert.Nil(t, job.FinishedAt)
		assert.JSONEq(t, `{"history_days":28}`, string(job.Payload))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty queue", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})

		mock.ExpectQuery(`WITH cte AS`).WillReturnRows(sqlmock.NewRows(jobRowColumns))

		job, err := repo.ClaimNextPending(context.Background())
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		assert.Nil(t, job)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure is wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})

		mock.ExpectQuery(`WITH cte AS`).WillReturnError(errors.New("connection refused"))

		_, err := repo.ClaimNextPending(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, model.ErrNoJobsAvailable)
		assert.Contains(t, err.Error(), "claim next pending")
	})
}

func TestForecastJobRepo_Create(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t)
	repo := NewForecastJobRepo(db, RepoConfig{})

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO forecast_jobs`).
		WithArgs(sqlmock.AnyArg(), model.JobTypeDaily, sqlmock.AnyArg(), sqlmock.AnyArg(), "scheduler", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(jobRow("pending", now)...))
	mock.ExpectExec(`SELECT pg_notify`).
		WithArgs(JobAddedChannel, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := repo.Create(context.Background(), &model.CreateForecastJobRequest{
		Type:       model.JobTypeDaily,
		TargetFrom: model.MustParseDate("2025-01-01"),
		TargetTo:   model.MustParseDate("2025-01-03"),
		Actor:      "scheduler",
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = repo.Create(context.Background(), &model.CreateForecastJobRequest{
		Type:       model.JobTypeDaily,
		TargetFrom: model.MustParseDate("2025-01-03"),
		TargetTo:   model.MustParseDate("2025-01-01"),
		Actor:      "scheduler",
	})
	require.Error(t, err, "invalid range never reaches the database")
}

func TestForecastJobRepo_Transitions(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)

	t.Run("mark done succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		mock.ExpectExec(`UPDATE forecast_jobs\s+SET status = 'done'.*WHERE id = \$1 AND status = 'running' AND reclaim_count = \$2`).
			WithArgs(testJobID, 0, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkDone(context.Background(), model.JobClaim{ID: testJobID}))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("terminal job is not modified", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		mock.ExpectExec(`SET status = 'failed'`).
			WithArgs(testJobID, 0, "boom", now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status, reclaim_count FROM forecast_jobs`).
			WithArgs(testJobID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "reclaim_count"}).AddRow("done", 0))

		err := repo.MarkFailed(context.Background(), model.JobClaim{ID: testJobID}, "boom")
		require.ErrorIs(t, err, ErrInvalidTransition)
		require.NotErrorIs(t, err, ErrClaimSuperseded)
		assert.Contains(t, err.Error(), "done")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reclaimed job rejects the older claim", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		mock.ExpectExec(`SET status = 'done'`).
			WithArgs(testJobID, 0, now).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status, reclaim_count FROM forecast_jobs`).
			WithArgs(testJobID).
			WillReturnRows(sqlmock.NewRows([]string{"status", "reclaim_count"}).AddRow("running", 1))

		err := repo.MarkDone(context.Background(), model.JobClaim{ID: testJobID})
		require.ErrorIs(t, err, ErrClaimSuperseded)
		require.ErrorIs(t, err, ErrInvalidTransition)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing job", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		mock.ExpectExec(`SET status = 'running'`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT status FROM forecast_jobs`).WillReturnRows(sqlmock.NewRows([]string{"status"}))

		require.ErrorIs(t, repo.MarkRunning(context.Background(), testJobID), ErrJobNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id never reaches the database", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{})

		require.ErrorIs(t, repo.MarkDone(context.Background(), model.JobClaim{ID: "not-a-uuid"}), ErrJobNotFound)
		_, err := repo.GetByID(context.Background(), "42")
		require.ErrorIs(t, err, ErrJobNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("heartbeat reports stopped job", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})
		mock.ExpectExec(`UPDATE forecast_jobs SET updated_at.*reclaim_count = \$2`).
			WithArgs(testJobID, 2, now).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Heartbeat(context.Background(), model.JobClaim{ID: testJobID, ReclaimCount: 2})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBuildJobListQuery(t *testing.T) {
	status := model.JobStatusFailed
	jobType := model.JobTypeWeekly

	query, args := buildJobListQuery(model.ListJobsOptions{Status: &status, Type: &jobType, Limit: 5000, Offset: -3})
	assert.Contains(t, query, "AND status = $1")
	assert.Contains(t, query, "AND job_type = $2")
	assert.Contains(t, query, "ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4")
	assert.Equal(t, []any{"failed", "weekly", maxListLimit, 0}, args)

	query, args = buildJobListQuery(model.ListJobsOptions{})
	assert.NotContains(t, query, "AND status")
	assert.Equal(t, []any{defaultListLimit, 0}, args)
}

func TestForecastJobRepo_Stats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewForecastJobRepo(db, RepoConfig{})
	mock.ExpectQuery(`count\(\*\) FILTER`).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "running", "done", "failed"}).AddRow(3, 1, 7, 2))

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobStats{Pending: 3, Running: 1, Done: 7, Failed: 2}, *stats)
}

func TestForecastJobRepo_ReclaimStaleRunning(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	params := core.ReclaimStaleParams{StaleAfter: 2 * time.Hour, MaxReclaims: 3, BatchSize: 100}

	t.Run("fails exhausted and requeues the rest", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})

		mock.ExpectBegin()
		mock.ExpectQuery(`pg_try_advisory_xact_lock`).
			WithArgs(advisoryLockMajor, advisoryLockReclaimStale).
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
		mock.ExpectExec(`SET status = 'failed'.*reclaim_count >= \$3`).
			WithArgs(now, now.Add(-2*time.Hour), 3, StaleReclaimMessage, 100).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`SET status = 'pending'.*reclaim_count = reclaim_count \+ 1.*reclaim_count < \$3`).
			WithArgs(now, now.Add(-2*time.Hour), 3, 100).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`SELECT pg_notify`).WithArgs(JobAddedChannel).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		res, err := repo.ReclaimStaleRunning(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, core.ReclaimStaleResult{Requeued: 2, Failed: 1}, res)
		assert.Equal(t, int64(3), res.Total())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock held elsewhere is a no-op", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: NewFixedTimeProvider(now)})

		mock.ExpectBegin()
		mock.ExpectQuery(`pg_try_advisory_xact_lock`).
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(false))
		mock.ExpectCommit()

		res, err := repo.ReclaimStaleRunning(context.Background(), params)
		require.NoError(t, err)
		assert.Zero(t, res.Total())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects bad params", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewForecastJobRepo(db, RepoConfig{})
		_, err := repo.ReclaimStaleRunning(context.Background(), core.ReclaimStaleParams{BatchSize: 1})
		require.Error(t, err)
		_, err = repo.ReclaimStaleRunning(context.Background(), core.ReclaimStaleParams{StaleAfter: time.Hour})
		require.Error(t, err)
	})
}

func TestForecastResultRepo_Save(t *testing.T) {
	now := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	p10, p90 := 80.0, 120.0
	params := model.SaveResultParams{
		TargetDate:   model.MustParseDate("2025-01-01"),
		JobID:        testJobID,
		P50:          100,
		P10:          &p10,
		P90:          &p90,
		ModelVersion: "baseline-weekday-mean/v1",
	}

	t.Run("insert returns id", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastResultRepo(db, NewFixedTimeProvider(now))
		mock.ExpectQuery(`INSERT INTO forecast_results`).
			WithArgs(sqlmock.AnyArg(), testJobID, 100.0, p10, p90, model.DefaultResultUnit,
				"baseline-weekday-mean/v1", nil, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

		id, err := repo.Save(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, int64(17), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is a duplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastResultRepo(db, NewFixedTimeProvider(now))
		mock.ExpectQuery(`INSERT INTO forecast_results`).
			WillReturnError(&pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "forecast_results_target_date_job_id_key",
			})

		_, err := repo.Save(context.Background(), params)
		require.ErrorIs(t, err, ErrDuplicateResult)
	})

	t.Run("check violation is an invalid band", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastResultRepo(db, NewFixedTimeProvider(now))
		mock.ExpectQuery(`INSERT INTO forecast_results`).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "forecast_results_band_check"})

		_, err := repo.Save(context.Background(), params)
		require.ErrorIs(t, err, ErrInvalidBand)
	})

	t.Run("partial band rejected before SQL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewForecastResultRepo(db, NewFixedTimeProvider(now))
		partial := params
		partial.P90 = nil

		_, err := repo.Save(context.Background(), partial)
		require.ErrorIs(t, err, ErrInvalidBand)
		require.ErrorIs(t, err, model.ErrPartialBand)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestForecastResultRepo_ListByJob(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewForecastResultRepo(db, nil)
	gen := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM forecast_results\s+WHERE job_id = \$1\s+ORDER BY target_date`).
		WithArgs(testJobID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "target_date", "job_id", "p50", "p10", "p90", "unit", "model_version", "input_snapshot", "generated_at",
		}).
			AddRow(int64(1), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), testJobID, 100.0, nil, nil, "ton", "v1", nil, gen).
			AddRow(int64(2), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), testJobID, 110.0, 90.0, 130.0, "ton", "v1", []byte(`{}`), gen))

	results, err := repo.ListByJob(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Nil(t, results[0].P10)
	require.NotNil(t, results[1].P90)
	assert.InDelta(t, 130.0, *results[1].P90, 1e-9)
	assert.Equal(t, model.MustParseDate("2025-01-02"), results[1].TargetDate)
}

func TestFeatureRepo_FetchActuals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureRepo(db)
	mock.ExpectQuery(`FROM inbound_actuals\s+WHERE ddate BETWEEN \$1 AND \$2\s+GROUP BY ddate`).
		WillReturnRows(sqlmock.NewRows([]string{"ddate", "ton"}).
			AddRow(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), 95.5).
			AddRow(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), 101.0))

	rows, err := repo.FetchActuals(context.Background(), model.MustParseDate("2024-12-01"), model.MustParseDate("2025-01-03"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.MustParseDate("2024-12-30"), rows[0].Date)
	assert.InDelta(t, 101.0, rows[1].Ton, 1e-9)
}

func TestFeatureRepo_FetchReservationsError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFeatureRepo(db)
	mock.ExpectQuery(`FROM inbound_reservations`).WillReturnError(errors.New("relation does not exist"))

	_, err := repo.FetchReservations(context.Background(), model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-03"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch reservations")
}

func TestDayTypeRatioRepo_ReplaceEpoch(t *testing.T) {
	epoch := model.MustParseDate("2025-04-01")
	computed := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	ratios := []model.DayTypeRatio{
		{EffectiveFrom: epoch, DayType: model.DayTypeWeekday, MeanTon: 100, Ratio: 1, SampleDays: 700, LookbackYears: 3, BaselineDayType: model.DayTypeWeekday, ComputedAt: computed},
		{EffectiveFrom: epoch, DayType: model.DayTypeSunday, MeanTon: 20, Ratio: 0.2, SampleDays: 150, LookbackYears: 3, BaselineDayType: model.DayTypeWeekday, ComputedAt: computed},
	}

	t.Run("delete and insert in one transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDayTypeRatioRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`pg_try_advisory_xact_lock`).
			WithArgs(advisoryLockMajor, advisoryLockRatioEpoch).
			WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
		mock.ExpectExec(`DELETE FROM day_type_ratios WHERE effective_from = \$1`).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(`INSERT INTO day_type_ratios`).
			WithArgs(sqlmock.AnyArg(), model.DayTypeWeekday, 100.0, 1.0, 700, 3, model.DayTypeWeekday, computed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO day_type_ratios`).
			WithArgs(sqlmock.AnyArg(), model.DayTypeSunday, 20.0, 0.2, 150, 3, model.DayTypeWeekday, computed).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.ReplaceEpoch(context.Background(), epoch, ratios))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back the whole epoch", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDayTypeRatioRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`pg_try_advisory_xact_lock`).WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(true))
		mock.ExpectExec(`DELETE FROM day_type_ratios`).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectExec(`INSERT INTO day_type_ratios`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO day_type_ratios`).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := repo.ReplaceEpoch(context.Background(), epoch, ratios)
		require.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent writer", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDayTypeRatioRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`pg_try_advisory_xact_lock`).WillReturnRows(sqlmock.NewRows([]string{"locked"}).AddRow(false))
		mock.ExpectRollback()

		require.ErrorIs(t, repo.ReplaceEpoch(context.Background(), epoch, ratios), ErrEpochLocked)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mismatched epoch rejected before SQL", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewDayTypeRatioRepo(db)
		bad := append([]model.DayTypeRatio(nil), ratios...)
		bad[1].EffectiveFrom = model.MustParseDate("2025-05-01")

		require.Error(t, repo.ReplaceEpoch(context.Background(), epoch, bad))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
