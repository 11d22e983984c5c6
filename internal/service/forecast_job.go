package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo      core.ForecastJobRepository    // Required: job records
	Results   core.ForecastResultRepository // Optional: required for Results
	Publisher core.JobPublisher             // Optional: wakes idle workers after Create
	Logger    *slog.Logger                  // Optional: structured logger
	Metrics   statsd.Sink                   // Optional: metrics sink
}

// JobService is the admin-facing surface over forecast jobs: enqueue, inspect, list and read results.
type JobService struct {
	repo      core.ForecastJobRepository
	results   core.ForecastResultRepository
	publisher core.JobPublisher
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ForecastJobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:      opts.Repo,
		results:   opts.Results,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates and enqueues a forecast job, then signals idle workers.
// A failed signal is logged only; workers still find the job on their next poll.
func (s *JobService) Create(ctx context.Context, req *model.CreateForecastJobRequest) (*model.ForecastJob, error) {
	if req == nil {
		return nil, apperrors.Validation("request body is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid forecast job")
	}

	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create forecast job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "forecast job enqueued",
			"job_id", job.ID,
			"job_type", job.Type,
			"target_from", job.TargetFrom,
			"target_to", job.TargetTo,
			"actor", job.Actor,
		)
	}

	if s.publisher != nil {
		if pubErr := s.publisher.Publish(ctx); pubErr != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "job wake-up publish failed", "job_id", job.ID, "error", pubErr)
		}
	}
	return job, nil
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id string) (*model.ForecastJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapJobError(err, id)
	}
	return job, nil
}

// List returns jobs newest first. Limit is clamped to [1, 500] with a default of 50.
func (s *JobService) List(ctx context.Context, opts model.ListJobsOptions) ([]*model.ForecastJob, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, apperrors.ValidationField("status", fmt.Sprintf("unknown status %q", *opts.Status))
	}
	if opts.Type != nil && !opts.Type.Valid() {
		return nil, apperrors.ValidationField("job_type", fmt.Sprintf("unknown job type %q", *opts.Type))
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = defaultListLimit
	case opts.Limit > maxListLimit:
		opts.Limit = maxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list forecast jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns per-status counts and publishes them as queue depth gauges.
func (s *JobService) Stats(ctx context.Context) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("forecast job stats: %w", err)
	}
	metrics.EmitQueueDepth(s.metrics, map[string]int{
		string(model.JobStatusPending): stats.Pending,
		string(model.JobStatusRunning): stats.Running,
		string(model.JobStatusDone):    stats.Done,
		string(model.JobStatusFailed):  stats.Failed,
	})
	return stats, nil
}

// Results returns the persisted results of a job in target_date order.
func (s *JobService) Results(ctx context.Context, id string) ([]*model.ForecastResult, error) {
	if s.results == nil {
		return nil, errors.New("result repository not configured")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	results, err := s.results.ListByJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list forecast results: %w", err)
	}
	return results, nil
}

func mapJobError(err error, id string) error {
	if errors.Is(err, data.ErrJobNotFound) {
		return apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "forecast job %s", id)
	}
	return fmt.Errorf("get forecast job %s: %w", id, err)
}
