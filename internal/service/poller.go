package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// Poller claims forecast jobs one at a time.
type Poller struct {
	repo    core.ForecastJobRepository
	metrics statsd.Sink
}

// NewPoller constructs a Poller. metrics may be nil.
func NewPoller(repo core.ForecastJobRepository, sink statsd.Sink) (*Poller, error) {
	if repo == nil {
		return nil, errors.New("ForecastJobRepository is required")
	}
	return &Poller{repo: repo, metrics: sink}, nil
}

// Poll claims the oldest pending job. It returns model.ErrNoJobsAvailable unwrapped when the
// queue is empty or another worker won the race; callers treat that as "sleep and retry".
func (p *Poller) Poll(ctx context.Context) (*model.ForecastJob, error) {
	job, err := p.repo.ClaimNextPending(ctx)
	switch {
	case err == nil:
		metrics.EmitPoll(p.metrics, metrics.ResultSuccess)
		metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: metrics.TransitionClaim,
			Result:     metrics.ResultSuccess,
		})
		return job, nil
	case errors.Is(err, model.ErrNoJobsAvailable):
		metrics.EmitPoll(p.metrics, metrics.ResultNoop)
		return nil, model.ErrNoJobsAvailable
	default:
		metrics.EmitPoll(p.metrics, metrics.ResultError)
		return nil, fmt.Errorf("claim next pending job: %w", err)
	}
}
