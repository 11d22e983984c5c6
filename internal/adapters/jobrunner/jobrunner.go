// Package jobrunner drives the claim-and-execute loop of a forecast worker process.
package jobrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/service"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultErrorBackoff = 10 * time.Second
	defaultJobTimeout   = 30 * time.Minute
)

// JobPoller claims the next pending job.
type JobPoller interface {
	Poll(ctx context.Context) (*model.ForecastJob, error)
}

// JobExecutor runs a claimed job to a terminal state.
type JobExecutor interface {
	Execute(ctx context.Context, job *model.ForecastJob) service.ExecutionReport
}

// RunnerOptions configures the job runner adapter.
type RunnerOptions struct {
	Poller   JobPoller   // Required
	Executor JobExecutor // Required

	// Subscriber, when set, cuts the idle sleep short as soon as a job is enqueued.
	Subscriber core.JobSubscriber

	PollInterval time.Duration // sleep when the queue is empty; defaults to 5s
	ErrorBackoff time.Duration // sleep after a failed claim; defaults to 10s
	JobTimeout   time.Duration // per-job budget, independent of shutdown; defaults to 30m

	Logger *slog.Logger
}

// Runner claims one job at a time and executes it synchronously.
type Runner struct {
	poller       JobPoller
	executor     JobExecutor
	subscriber   core.JobSubscriber
	pollInterval time.Duration
	errorBackoff time.Duration
	jobTimeout   time.Duration
	logger       *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Poller == nil {
		return nil, errors.New("poller is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("executor is required")
	}

	r := &Runner{
		poller:       opts.Poller,
		executor:     opts.Executor,
		subscriber:   opts.Subscriber,
		pollInterval: opts.PollInterval,
		errorBackoff: opts.ErrorBackoff,
		jobTimeout:   opts.JobTimeout,
		logger:       opts.Logger,
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.errorBackoff <= 0 {
		r.errorBackoff = defaultErrorBackoff
	}
	if r.jobTimeout <= 0 {
		r.jobTimeout = defaultJobTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "job_runner")
	return r, nil
}

// Run polls and executes jobs until ctx is cancelled. Cancellation interrupts the idle sleep
// but never the job in flight; Run returns nil once that job has finished.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"poll_interval", r.pollInterval,
		"error_backoff", r.errorBackoff,
		"job_timeout", r.jobTimeout,
		"wakeups", r.subscriber != nil,
	)

	var wake <-chan struct{}
	if r.subscriber != nil {
		unsub, ch := r.subscriber.Subscribe()
		defer unsub()
		wake = ch
	}

	for {
		if ctx.Err() != nil {
			r.logger.InfoContext(ctx, "job runner stopping", "reason", ctx.Err())
			return nil
		}

		job, err := r.poller.Poll(ctx)
		switch {
		case err == nil:
			r.execute(ctx, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			wake = r.sleep(ctx, r.pollInterval, wake)
		case ctx.Err() != nil:
			// Shutdown raced the claim query.
		default:
			r.logger.ErrorContext(ctx, "claim failed; backing off", "error", err, "backoff", r.errorBackoff)
			r.sleep(ctx, r.errorBackoff, nil)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job *model.ForecastJob) {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.jobTimeout)
	defer cancel()

	report := r.executor.Execute(jobCtx, job)
	r.logger.DebugContext(ctx, "job cycle complete",
		"job_id", report.JobID,
		"status", report.Status,
		"duration", report.Duration,
	)
}

// sleep waits for d, a wake-up or cancellation. It returns the wake channel to keep using,
// nil once the subscriber closed it.
func (r *Runner) sleep(ctx context.Context, d time.Duration, wake <-chan struct{}) <-chan struct{} {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return wake
		case <-timer.C:
			return wake
		case _, ok := <-wake:
			if ok {
				return wake
			}
			wake = nil
		}
	}
}
