package data

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/testutil"
)

func createTestJob(t *testing.T, repo *ForecastJobRepo, from, to string) *model.ForecastJob {
	t.Helper()
	job, err := repo.Create(context.Background(),
		testutil.NewJobRequest().WithRange(from, to).WithActor("integration-test").Build())
	require.NoError(t, err)
	return job
}

func TestForecastJobRepo_Integration_FIFOAndExclusiveClaim(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewForecastJobRepo(db, RepoConfig{})
		ctx := context.Background()

		first := createTestJob(t, repo, "2025-01-01", "2025-01-03")
		second := createTestJob(t, repo, "2025-01-04", "2025-01-04")

		claimed, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, claimed.ID, "oldest pending job is claimed first")
		assert.Equal(t, model.JobStatusRunning, claimed.Status)
		assert.NotNil(t, claimed.StartedAt)

		claimed2, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, claimed2.ID)

		_, err = repo.ClaimNextPending(ctx)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

func TestForecastJobRepo_Integration_ConcurrentClaimSingleJob(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewForecastJobRepo(db, RepoConfig{})
		job := createTestJob(t, repo, "2025-01-01", "2025-01-03")

		const workers = 8
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed []string
			empty   int
		)
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				j, err := repo.ClaimNextPending(context.Background())
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					claimed = append(claimed, j.ID)
				case errors.Is(err, model.ErrNoJobsAvailable):
					empty++
				default:
					t.Errorf("unexpected claim error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, []string{job.ID}, claimed)
		assert.Equal(t, workers-1, empty)
	})
}

func TestForecastJobRepo_Integration_TerminalStatesAreFinal(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewForecastJobRepo(db, RepoConfig{})
		ctx := context.Background()
		job := createTestJob(t, repo, "2025-01-01", "2025-01-01")

		require.ErrorIs(t, repo.MarkDone(ctx, job.Claim()), ErrInvalidTransition, "pending cannot jump to done")

		claimed, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)
		require.NoError(t, repo.MarkFailed(ctx, claimed.Claim(), "predictor unavailable"))

		require.ErrorIs(t, repo.MarkDone(ctx, claimed.Claim()), ErrInvalidTransition)
		require.ErrorIs(t, repo.MarkRunning(ctx, job.ID), ErrInvalidTransition)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "predictor unavailable", *got.ErrorMessage)
		assert.NotNil(t, got.FinishedAt)
	})
}

func TestForecastResultRepo_Integration_IdempotentWrite(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		jobs := NewForecastJobRepo(db, RepoConfig{})
		results := NewForecastResultRepo(db, nil)
		ctx := context.Background()
		job := createTestJob(t, jobs, "2025-01-01", "2025-01-01")

		first := model.SaveResultParams{TargetDate: job.TargetFrom, JobID: job.ID, P50: 100, ModelVersion: "v1"}
		_, err := results.Save(ctx, first)
		require.NoError(t, err)

		second := first
		second.P50 = 250
		_, err = results.Save(ctx, second)
		require.ErrorIs(t, err, ErrDuplicateResult)

		stored, err := results.ListByJob(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)
		assert.InDelta(t, 100.0, stored[0].P50, 1e-9, "first write wins")
		assert.Equal(t, model.DefaultResultUnit, stored[0].Unit)
	})
}

func TestForecastJobRepo_Integration_ReclaimStale(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(time.Now().UTC())
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: clock})
		ctx := context.Background()
		job := createTestJob(t, repo, "2025-01-01", "2025-01-01")

		_, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)

		clock.AddTime(3 * time.Hour)
		params := core.ReclaimStaleParams{StaleAfter: 2 * time.Hour, MaxReclaims: 1, BatchSize: 10}

		res, err := repo.ReclaimStaleRunning(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Requeued)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, 1, got.ReclaimCount)

		_, err = repo.ClaimNextPending(ctx)
		require.NoError(t, err)
		clock.AddTime(3 * time.Hour)

		res, err = repo.ReclaimStaleRunning(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Failed)

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
	})
}

func TestDayTypeRatioRepo_Integration_ReplaceEpoch(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDayTypeRatioRepo(db)
		ctx := context.Background()
		epoch := model.MustParseDate("2025-04-01")
		row := func(dt model.DayType, mean float64) model.DayTypeRatio {
			return model.DayTypeRatio{
				EffectiveFrom: epoch, DayType: dt, MeanTon: mean, Ratio: mean / 100, SampleDays: 10,
				LookbackYears: 3, BaselineDayType: model.DayTypeWeekday, ComputedAt: time.Now().UTC(),
			}
		}

		require.NoError(t, repo.ReplaceEpoch(ctx, epoch, []model.DayTypeRatio{
			row(model.DayTypeWeekday, 100), row(model.DayTypeSaturday, 50), row(model.DayTypeHoliday, 20),
		}))
		require.NoError(t, repo.ReplaceEpoch(ctx, epoch, []model.DayTypeRatio{
			row(model.DayTypeWeekday, 100), row(model.DayTypeSunday, 10),
		}))

		got, err := repo.ListByEpoch(ctx, epoch)
		require.NoError(t, err)
		require.Len(t, got, 2, "replacement removes day types absent from the new epoch")
		assert.Equal(t, model.DayTypeSunday, got[0].DayType)
		assert.InDelta(t, 0.1, got[0].Ratio, 1e-9)
	})
}

func TestFeatureRepo_Integration_Aggregates(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		_, err := db.ExecContext(ctx, `
			INSERT INTO inbound_actuals (ddate, ton) VALUES
			  ('2025-01-01', 10), ('2025-01-01', 5.5), ('2025-01-02', 7), ('2025-02-01', 99)`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `
			INSERT INTO inbound_reservations (ddate, reserved_ton, trucks) VALUES
			  ('2025-01-02', 3, 1), ('2025-01-02', 4, 2)`)
		require.NoError(t, err)

		repo := NewFeatureRepo(db)
		actuals, err := repo.FetchActuals(ctx, model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-31"))
		require.NoError(t, err)
		require.Len(t, actuals, 2)
		assert.InDelta(t, 15.5, actuals[0].Ton, 1e-9)

		res, err := repo.FetchReservations(ctx, model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-31"))
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.InDelta(t, 7.0, res[0].ReservedTon, 1e-9)
		assert.Equal(t, 3, res[0].Trucks)
	})
}

func TestForecastJobRepo_Integration_ReclaimedAttemptCannotFinishNewClaim(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		clock := NewFixedTimeProvider(time.Now().UTC())
		repo := NewForecastJobRepo(db, RepoConfig{TimeProvider: clock})
		ctx := context.Background()
		createTestJob(t, repo, "2025-01-01", "2025-01-01")

		first, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)

		clock.AddTime(3 * time.Hour)
		res, err := repo.ReclaimStaleRunning(ctx, core.ReclaimStaleParams{
			StaleAfter: 2 * time.Hour, MaxReclaims: 3, BatchSize: 10,
		})
		require.NoError(t, err)
		require.Equal(t, int64(1), res.Requeued)

		second, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)
		require.Equal(t, first.ID, second.ID)

		alive, err := repo.Heartbeat(ctx, first.Claim())
		require.NoError(t, err)
		assert.False(t, alive, "older claim is not kept alive")
		require.ErrorIs(t, repo.MarkFailed(ctx, first.Claim(), "late failure"), ErrClaimSuperseded)
		require.ErrorIs(t, repo.MarkDone(ctx, first.Claim()), ErrClaimSuperseded)

		alive, err = repo.Heartbeat(ctx, second.Claim())
		require.NoError(t, err)
		assert.True(t, alive)
		require.NoError(t, repo.MarkDone(ctx, second.Claim()))

		got, err := repo.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusDone, got.Status)
		assert.Nil(t, got.ErrorMessage)
	})
}

func TestForecastJobRepo_Integration_MultibyteErrorMessage(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewForecastJobRepo(db, RepoConfig{})
		ctx := context.Background()
		createTestJob(t, repo, "2025-01-01", "2025-01-01")

		claimed, err := repo.ClaimNextPending(ctx)
		require.NoError(t, err)

		msg := "predict: 予測サービスエラー"
		require.NoError(t, repo.MarkFailed(ctx, claimed.Claim(), msg))

		got, err := repo.GetByID(ctx, claimed.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, msg, *got.ErrorMessage)
	})
}
