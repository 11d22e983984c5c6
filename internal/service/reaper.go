package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// maxSweepBatches bounds one sweep so a runaway table cannot pin the reaper.
const maxSweepBatches = 1000

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Reclaimer core.StaleJobReclaimer // Required: stale-claim port
	Config    config.ReaperConfig    // Required: reaper configuration
	Logger    *slog.Logger           // Optional: structured logger
	Metrics   statsd.Sink            // Optional: metrics sink (StatsD-compatible)
}

// ReaperService returns abandoned running jobs to pending, failing the ones that
// exhausted their reclaim budget.
type ReaperService struct {
	reclaimer core.StaleJobReclaimer
	config    config.ReaperConfig
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Reclaimer == nil {
		return nil, errors.New("StaleJobReclaimer is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"stale_running_threshold", opts.Config.StaleRunningThreshold,
			"max_reclaims", opts.Config.MaxReclaims,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReaperService{
		reclaimer: opts.Reclaimer,
		config:    opts.Config,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewReaperService constructs a new ReaperService and panics on error.
func MustNewReaperService(opts ReaperServiceOptions) *ReaperService {
	svc, err := NewReaperService(opts)
	if err != nil {
		//nolint:forbidigo // Must* constructors intentionally panic on invalid wiring
		panic(fmt.Errorf("failed to create ReaperService: %w", err))
	}
	return svc
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval so replicas started together spread out.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
			}
		}
	}
}

// Sweep reclaims stale running jobs in batches until a batch touches nothing.
// The returned totals include batches that completed before an error.
func (s *ReaperService) Sweep(ctx context.Context) (core.ReclaimStaleResult, error) {
	start := time.Now()
	var total core.ReclaimStaleResult

	params := core.ReclaimStaleParams{
		StaleAfter:  s.config.StaleRunningThreshold,
		MaxReclaims: s.config.MaxReclaims,
		BatchSize:   s.config.BatchSize,
	}

	var err error
	for range maxSweepBatches {
		var batch core.ReclaimStaleResult
		batch, err = s.reclaimer.ReclaimStaleRunning(ctx, params)
		total.Requeued += batch.Requeued
		total.Failed += batch.Failed
		if err != nil {
			err = fmt.Errorf("reclaim stale running jobs: %w", err)
			break
		}
		if batch.Total() == 0 {
			break
		}
		if ctx.Err() != nil {
			err = ctx.Err()
			break
		}
	}

	metrics.EmitReaperSweep(s.metrics, metrics.ReaperMetric{
		Requeued: total.Requeued,
		Failed:   total.Failed,
		Duration: time.Since(start),
		Err:      suppressContextCancellation(err),
	})

	if total.Total() > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "reclaimed stale running jobs",
			"requeued", total.Requeued,
			"failed", total.Failed,
			"stale_after", s.config.StaleRunningThreshold,
		)
	}

	return total, err
}

func (s *ReaperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}

	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
