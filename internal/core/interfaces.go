package core

import (
	"context"
	"time"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; Postgres and in-memory adapters implement them.

// ForecastJobRepository defines the job record port.
//
// ClaimNextPending atomically moves the oldest pending job to running and returns it, or
// model.ErrNoJobsAvailable when nothing could be claimed (including a lost race).
// MarkRunning, MarkDone and MarkFailed are conditional on the current status and return
// data.ErrInvalidTransition when the job is not in the expected state. MarkDone, MarkFailed
// and Heartbeat also require the claim to be current: once the job was reclaimed, a write
// under the older claim fails (Heartbeat reports false).
type ForecastJobRepository interface {
	Create(ctx context.Context, req *model.CreateForecastJobRequest) (*model.ForecastJob, error)
	ClaimNextPending(ctx context.Context) (*model.ForecastJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, claim model.JobClaim) error
	MarkFailed(ctx context.Context, claim model.JobClaim, errMsg string) error
	Heartbeat(ctx context.Context, claim model.JobClaim) (bool, error)
	GetByID(ctx context.Context, id string) (*model.ForecastJob, error)
	List(ctx context.Context, opts model.ListJobsOptions) ([]*model.ForecastJob, error)
	Stats(ctx context.Context) (*model.JobStats, error)
}

// ForecastResultRepository defines the result port. Save returns data.ErrDuplicateResult when a
// row for (target_date, job_id) already exists; the stored row is left untouched.
type ForecastResultRepository interface {
	Save(ctx context.Context, params model.SaveResultParams) (int64, error)
	ListByJob(ctx context.Context, jobID string) ([]*model.ForecastResult, error)
}

// FeatureSource is the read-only actuals/reservations port. Rows are one per date, ascending.
type FeatureSource interface {
	FetchActuals(ctx context.Context, from, to model.Date) ([]model.DailyActual, error)
	FetchReservations(ctx context.Context, from, to model.Date) ([]model.DailyReservation, error)
}

// Predictor produces one prediction per calendar date in [from, to].
type Predictor interface {
	Predict(ctx context.Context, from, to model.Date, features model.FeatureSet) ([]model.Prediction, error)
}

// DayTypeRatioRepository persists day-type ratios. ReplaceEpoch swaps every row of one
// effective_from in a single transaction.
type DayTypeRatioRepository interface {
	ReplaceEpoch(ctx context.Context, effectiveFrom model.Date, ratios []model.DayTypeRatio) error
	ListByEpoch(ctx context.Context, effectiveFrom model.Date) ([]model.DayTypeRatio, error)
}

// ReclaimStaleParams groups parameters for the stale-claim sweep.
type ReclaimStaleParams struct {
	StaleAfter  time.Duration
	MaxReclaims int
	BatchSize   int
}

// ReclaimStaleResult reports one sweep batch.
type ReclaimStaleResult struct {
	Requeued int64
	Failed   int64
}

// Total returns the number of rows touched.
func (r ReclaimStaleResult) Total() int64 { return r.Requeued + r.Failed }

// StaleJobReclaimer is the reaper port.
type StaleJobReclaimer interface {
	ReclaimStaleRunning(ctx context.Context, params ReclaimStaleParams) (ReclaimStaleResult, error)
}

// JobPublisher signals that a job was enqueued.
type JobPublisher interface {
	Publish(ctx context.Context) error
}

// JobSubscriber hands out wake-up channels for idle pollers.
type JobSubscriber interface {
	Subscribe() (func(), <-chan struct{})
}
