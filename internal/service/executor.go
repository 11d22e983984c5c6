package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/domain/forecast"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

const (
	defaultFeatureHistoryDays = 56
	maxErrorMessageLen        = 1000
	terminalWriteTimeout      = 10 * time.Second
)

// ErrJobNotRunning is returned when a heartbeat finds the job already moved out of running,
// typically because the reaper reclaimed it.
var ErrJobNotRunning = errors.New("job is no longer running")

// ExecutorConfig tunes a JobExecutor.
type ExecutorConfig struct {
	// FeatureHistoryDays is the default actuals lookback before target_from.
	FeatureHistoryDays int
	// HeartbeatInterval is the period of updated_at refreshes while a job runs. 0 disables
	// the periodic heartbeat; the post-prediction heartbeat always runs.
	HeartbeatInterval time.Duration
}

// JobExecutorOptions groups dependencies for JobExecutor.
type JobExecutorOptions struct {
	Jobs      core.ForecastJobRepository    // Required
	Results   core.ForecastResultRepository // Required
	Features  core.FeatureSource            // Required
	Predictor core.Predictor                // Required
	Config    ExecutorConfig
	Logger    *slog.Logger // Optional
	Metrics   statsd.Sink  // Optional
}

// JobExecutor drives one claimed job from running to done or failed.
type JobExecutor struct {
	jobs      core.ForecastJobRepository
	results   core.ForecastResultRepository
	features  core.FeatureSource
	predictor core.Predictor
	cfg       ExecutorConfig
	logger    *slog.Logger
	metrics   statsd.Sink
}

// ExecutionReport summarises one Execute call.
type ExecutionReport struct {
	JobID    string
	Status   model.JobStatus
	Written  int
	Skipped  int
	Duration time.Duration
	Err      error
}

// NewJobExecutor constructs a JobExecutor.
func NewJobExecutor(opts JobExecutorOptions) (*JobExecutor, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("ForecastJobRepository is required")
	case opts.Results == nil:
		return nil, errors.New("ForecastResultRepository is required")
	case opts.Features == nil:
		return nil, errors.New("FeatureSource is required")
	case opts.Predictor == nil:
		return nil, errors.New("Predictor is required")
	}

	cfg := opts.Config
	if cfg.FeatureHistoryDays < 0 {
		cfg.FeatureHistoryDays = defaultFeatureHistoryDays
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobExecutor{
		jobs:      opts.Jobs,
		results:   opts.Results,
		features:  opts.Features,
		predictor: opts.Predictor,
		cfg:       cfg,
		logger:    logger.With("component", "job_executor"),
		metrics:   opts.Metrics,
	}, nil
}

// Execute runs a job that ClaimNextPending already moved to running. It never panics and
// never returns an error; the outcome is in the report and on the job row.
func (e *JobExecutor) Execute(ctx context.Context, job *model.ForecastJob) ExecutionReport {
	start := time.Now()
	report := ExecutionReport{JobID: job.ID}

	written, skipped, runErr := e.runGuarded(ctx, job)
	report.Written, report.Skipped = written, skipped

	if runErr != nil {
		report.Status = model.JobStatusFailed
		report.Err = runErr
		if err := e.markFailed(ctx, job.Claim(), runErr); err != nil {
			report.Status = model.JobStatusRunning
			report.Err = errors.Join(runErr, err)
		}
	} else {
		report.Status = model.JobStatusDone
		if err := e.markDone(ctx, job.Claim()); err != nil {
			// Left running: the reaper requeues it and the rerun skips the rows already written.
			report.Status = model.JobStatusRunning
			report.Err = err
		}
	}
	report.Duration = time.Since(start)

	e.emit(job, report)
	e.log(ctx, job, report)
	return report
}

func (e *JobExecutor) runGuarded(ctx context.Context, job *model.ForecastJob) (written, skipped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "job execution panicked",
				"job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("job execution panicked: %v", r)
		}
	}()
	return e.run(ctx, job)
}

func (e *JobExecutor) run(ctx context.Context, job *model.ForecastJob) (int, int, error) {
	payload, err := job.DecodePayload()
	if err != nil {
		return 0, 0, fmt.Errorf("invalid job payload: %w", err)
	}

	history := e.cfg.FeatureHistoryDays
	if payload.HistoryDays != nil {
		history = *payload.HistoryDays
	}

	features, err := e.gatherFeatures(ctx, job, history)
	if err != nil {
		return 0, 0, err
	}

	stop := e.startHeartbeat(ctx, job.Claim())
	defer stop()

	preds, err := e.predict(ctx, job, features)
	if err != nil {
		return 0, 0, err
	}

	ordered, err := forecast.ValidatePredictions(job.TargetFrom, job.TargetTo, preds)
	if err != nil {
		return 0, 0, fmt.Errorf("validate predictions: %w", err)
	}

	alive, err := e.jobs.Heartbeat(ctx, job.Claim())
	if err != nil {
		return 0, 0, fmt.Errorf("heartbeat: %w", err)
	}
	if !alive {
		return 0, 0, ErrJobNotRunning
	}

	return e.persist(ctx, job, payload, features, ordered)
}

func (e *JobExecutor) gatherFeatures(ctx context.Context, job *model.ForecastJob, historyDays int) (model.FeatureSet, error) {
	set := model.FeatureSet{
		ActualsFrom: job.TargetFrom.AddDays(-historyDays),
		ActualsTo:   job.TargetTo,
	}

	actuals, err := e.features.FetchActuals(ctx, set.ActualsFrom, set.ActualsTo)
	if err != nil {
		return set, fmt.Errorf("fetch actuals %s..%s: %w", set.ActualsFrom, set.ActualsTo, err)
	}
	reservations, err := e.features.FetchReservations(ctx, job.TargetFrom, job.TargetTo)
	if err != nil {
		return set, fmt.Errorf("fetch reservations %s..%s: %w", job.TargetFrom, job.TargetTo, err)
	}

	set.Actuals = actuals
	set.Reservations = reservations
	return set, nil
}

func (e *JobExecutor) predict(ctx context.Context, job *model.ForecastJob, features model.FeatureSet) (preds []model.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predictor panicked: %v", r)
		}
	}()

	preds, err = e.predictor.Predict(ctx, job.TargetFrom, job.TargetTo, features)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return preds, nil
}

// inputSnapshot is stored with each result so a row can be traced back to what the
// predictor saw for that date.
type inputSnapshot struct {
	ActualsFrom model.Date              `json:"actuals_from"`
	ActualsTo   model.Date              `json:"actuals_to"`
	ActualDays  int                     `json:"actual_days"`
	Reservation *model.DailyReservation `json:"reservation,omitempty"`
}

func (e *JobExecutor) persist(
	ctx context.Context,
	job *model.ForecastJob,
	payload model.JobPayload,
	features model.FeatureSet,
	preds []model.Prediction,
) (int, int, error) {
	var written, skipped int
	for _, p := range preds {
		snap := inputSnapshot{
			ActualsFrom: features.ActualsFrom,
			ActualsTo:   features.ActualsTo,
			ActualDays:  len(features.Actuals),
		}
		if r, ok := features.ReservationFor(p.Date); ok {
			snap.Reservation = &r
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			return written, skipped, fmt.Errorf("encode input snapshot: %w", err)
		}

		_, err = e.results.Save(ctx, model.SaveResultParams{
			TargetDate:    p.Date,
			JobID:         job.ID,
			P50:           p.P50,
			P10:           p.P10,
			P90:           p.P90,
			Unit:          resultUnit(payload, p),
			ModelVersion:  p.ModelVersion,
			InputSnapshot: raw,
		})
		switch {
		case err == nil:
			written++
		case errors.Is(err, data.ErrDuplicateResult):
			skipped++
		default:
			return written, skipped, fmt.Errorf("save result for %s: %w", p.Date, err)
		}
	}
	return written, skipped, nil
}

func resultUnit(payload model.JobPayload, p model.Prediction) string {
	switch {
	case payload.Unit != "":
		return payload.Unit
	case p.Unit != "":
		return p.Unit
	default:
		return model.DefaultResultUnit
	}
}

// startHeartbeat refreshes updated_at on an interval until the returned stop func is called.
func (e *JobExecutor) startHeartbeat(ctx context.Context, claim model.JobClaim) func() {
	if e.cfg.HeartbeatInterval <= 0 {
		return func() {}
	}

	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if ok, err := e.jobs.Heartbeat(hbCtx, claim); err != nil && hbCtx.Err() == nil {
					e.logger.WarnContext(hbCtx, "heartbeat failed", "job_id", claim.ID, "error", err)
				} else if err == nil && !ok {
					e.logger.WarnContext(hbCtx, "heartbeat found job no longer running under this claim",
						"job_id", claim.ID, "reclaim_count", claim.ReclaimCount)
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

// Terminal writes use a detached context so a job that hit its timeout still records why.
func (e *JobExecutor) markFailed(ctx context.Context, claim model.JobClaim, cause error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if err := e.jobs.MarkFailed(writeCtx, claim, truncateMessage(cause.Error())); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (e *JobExecutor) markDone(ctx context.Context, claim model.JobClaim) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()
	if err := e.jobs.MarkDone(writeCtx, claim); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

func (e *JobExecutor) emit(job *model.ForecastJob, r ExecutionReport) {
	m := metrics.JobMetric{
		JobType:    string(job.Type),
		Transition: metrics.TransitionDone,
		Result:     metrics.ResultSuccess,
		Duration:   r.Duration,
	}
	if r.Status != model.JobStatusDone {
		m.Transition = metrics.TransitionFailed
		m.Result = metrics.ResultError
		m.Err = r.Err
	}
	metrics.EmitJobLifecycle(e.metrics, m)
	metrics.EmitResults(e.metrics, string(job.Type), r.Written, r.Skipped)
}

func (e *JobExecutor) log(ctx context.Context, job *model.ForecastJob, r ExecutionReport) {
	attrs := []any{
		"job_id", job.ID,
		"job_type", job.Type,
		"target_from", job.TargetFrom,
		"target_to", job.TargetTo,
		"status", r.Status,
		"written", r.Written,
		"skipped", r.Skipped,
		"duration", r.Duration,
	}
	if r.Err != nil {
		e.logger.WarnContext(ctx, "forecast job finished with error", append(attrs, "error", r.Err)...)
		return
	}
	e.logger.InfoContext(ctx, "forecast job done", attrs...)
}

// truncateMessage caps msg at maxErrorMessageLen bytes. The result is always valid UTF-8:
// Postgres rejects invalid byte sequences in TEXT columns.
func truncateMessage(msg string) string {
	msg = strings.ToValidUTF8(msg, "\uFFFD")
	if len(msg) <= maxErrorMessageLen {
		return msg
	}
	cut := maxErrorMessageLen - len("...")
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut] + "..."
}
