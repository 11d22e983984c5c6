package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/domain/forecast"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// RatioServiceConfig holds recompute defaults.
type RatioServiceConfig struct {
	LookbackYears int
	Baseline      model.DayType
}

// RatioServiceOptions groups dependencies for DayTypeRatioService.
type RatioServiceOptions struct {
	Features core.FeatureSource          // Required: daily actuals
	Repo     core.DayTypeRatioRepository // Required: ratio storage
	Calendar *forecast.Calendar          // Optional: weekends only when nil
	Config   RatioServiceConfig
	Clock    data.TimeProvider // Optional: stamps computed_at
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// DayTypeRatioService recomputes and serves day-type ratios per epoch.
type DayTypeRatioService struct {
	features core.FeatureSource
	repo     core.DayTypeRatioRepository
	calendar *forecast.Calendar
	cfg      RatioServiceConfig
	clock    data.TimeProvider
	logger   *slog.Logger
	metrics  statsd.Sink
}

// RecomputeRequest describes one recompute. LookbackYears 0 uses the configured default.
type RecomputeRequest struct {
	EffectiveFrom model.Date `json:"effective_from"`
	LookbackYears int        `json:"lookback_years,omitempty"`
	DryRun        bool       `json:"dry_run,omitempty"`
}

// RecomputeResult is what a recompute produced and whether it was stored.
type RecomputeResult struct {
	EffectiveFrom model.Date           `json:"effective_from"`
	WindowFrom    model.Date           `json:"window_from"`
	WindowTo      model.Date           `json:"window_to"`
	Baseline      model.DayType        `json:"baseline_day_type"`
	SampleDays    int                  `json:"sample_days"`
	Ratios        []model.DayTypeRatio `json:"ratios"`
	DryRun        bool                 `json:"dry_run"`
	Written       bool                 `json:"written"`
}

// NewDayTypeRatioService constructs a DayTypeRatioService.
func NewDayTypeRatioService(opts RatioServiceOptions) (*DayTypeRatioService, error) {
	if opts.Features == nil {
		return nil, errors.New("FeatureSource is required")
	}
	if opts.Repo == nil {
		return nil, errors.New("DayTypeRatioRepository is required")
	}

	cfg := opts.Config
	if cfg.LookbackYears < 1 {
		cfg.LookbackYears = 3
	}
	if !cfg.Baseline.Valid() {
		cfg.Baseline = model.DayTypeWeekday
	}
	cal := opts.Calendar
	if cal == nil {
		cal = forecast.NewCalendar(nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DayTypeRatioService{
		features: opts.Features,
		repo:     opts.Repo,
		calendar: cal,
		cfg:      cfg,
		clock:    clock,
		logger:   logger.With("component", "day_type_ratio_service"),
		metrics:  opts.Metrics,
	}, nil
}

// Recompute derives ratios for req.EffectiveFrom from the preceding lookback window and
// replaces the stored epoch in one transaction. Dry runs compute and return without writing.
func (s *DayTypeRatioService) Recompute(ctx context.Context, req RecomputeRequest) (res *RecomputeResult, err error) {
	defer func() { metrics.EmitRatioRecompute(s.metrics, req.DryRun, err) }()

	lookback := req.LookbackYears
	if lookback == 0 {
		lookback = s.cfg.LookbackYears
	}

	from, to, err := forecast.RatioWindow(req.EffectiveFrom, lookback)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid recompute request")
	}

	actuals, err := s.features.FetchActuals(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch actuals %s..%s: %w", from, to, err)
	}

	stats := forecast.DayTypeStats(s.calendar, actuals)
	ratios, err := forecast.ComputeRatios(forecast.RatioInput{
		EffectiveFrom: req.EffectiveFrom,
		LookbackYears: lookback,
		Baseline:      s.cfg.Baseline,
		Stats:         stats,
		ComputedAt:    s.clock.Now().UTC().Truncate(time.Microsecond),
	})
	if err != nil {
		if errors.Is(err, forecast.ErrBaselineUnavailable) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeValidation, "no usable baseline in %s..%s", from, to)
		}
		return nil, fmt.Errorf("compute ratios: %w", err)
	}

	res = &RecomputeResult{
		EffectiveFrom: req.EffectiveFrom,
		WindowFrom:    from,
		WindowTo:      to,
		Baseline:      s.cfg.Baseline,
		SampleDays:    len(actuals),
		Ratios:        ratios,
		DryRun:        req.DryRun,
	}

	attrs := []any{
		"effective_from", req.EffectiveFrom,
		"window_from", from,
		"window_to", to,
		"baseline", s.cfg.Baseline,
		"day_types", len(ratios),
		"sample_days", len(actuals),
	}

	if req.DryRun {
		for _, r := range ratios {
			s.logger.InfoContext(ctx, "dry-run ratio",
				"effective_from", r.EffectiveFrom, "day_type", r.DayType,
				"mean_ton", r.MeanTon, "ratio", r.Ratio, "sample_days", r.SampleDays)
		}
		s.logger.InfoContext(ctx, "day type ratio dry run complete", attrs...)
		return res, nil
	}

	if err := s.repo.ReplaceEpoch(ctx, req.EffectiveFrom, ratios); err != nil {
		if errors.Is(err, data.ErrEpochLocked) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeConflict, "epoch %s", req.EffectiveFrom)
		}
		return nil, fmt.Errorf("replace ratio epoch %s: %w", req.EffectiveFrom, err)
	}
	res.Written = true
	s.logger.InfoContext(ctx, "day type ratios replaced", attrs...)
	return res, nil
}

// List returns the ratios stored for an epoch.
func (s *DayTypeRatioService) List(ctx context.Context, effectiveFrom model.Date) ([]model.DayTypeRatio, error) {
	if !effectiveFrom.IsMonthStart() {
		return nil, apperrors.Wrap(forecast.ErrInvalidEpoch, apperrors.ErrCodeValidation, "invalid effective_from")
	}
	ratios, err := s.repo.ListByEpoch(ctx, effectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("list ratios for %s: %w", effectiveFrom, err)
	}
	return ratios, nil
}
