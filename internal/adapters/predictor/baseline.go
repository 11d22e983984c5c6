package predictor

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// BaselineModelVersion is stamped on every baseline prediction.
const BaselineModelVersion = "baseline-dow-v1"

// minBandSamples is the number of same-weekday actuals needed before a p10/p90 band is emitted.
const minBandSamples = 3

// ErrNoHistory is returned when the feature snapshot carries no actuals to average.
var ErrNoHistory = errors.New("baseline predictor needs at least one actual")

// BaselinePredictor forecasts each date as the mean tonnage of the same weekday in the
// history window, falling back to the overall mean. Booked reservations raise the
// estimate when they exceed it.
type BaselinePredictor struct {
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewBaselinePredictor creates a BaselinePredictor. Both arguments are optional.
func NewBaselinePredictor(logger *slog.Logger, sink statsd.Sink) *BaselinePredictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BaselinePredictor{logger: logger.With("component", "baseline_predictor"), metrics: sink}
}

// Predict implements core.Predictor.
func (p *BaselinePredictor) Predict(
	ctx context.Context,
	from, to model.Date,
	features model.FeatureSet,
) (preds []model.Prediction, err error) {
	start := time.Now()
	defer func() { metrics.EmitPredictorRequest(p.metrics, "baseline", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []float64
	byWeekday := make(map[time.Weekday][]float64, 7)
	for _, a := range features.Actuals {
		if !a.Date.Before(from) {
			continue
		}
		all = append(all, a.Ton)
		byWeekday[a.Date.Weekday()] = append(byWeekday[a.Date.Weekday()], a.Ton)
	}
	if len(all) == 0 {
		return nil, ErrNoHistory
	}
	overall := mean(all)

	for _, d := range model.DatesInRange(from, to) {
		samples := byWeekday[d.Weekday()]
		pred := model.Prediction{Date: d, P50: overall, ModelVersion: BaselineModelVersion}
		if len(samples) > 0 {
			pred.P50 = mean(samples)
		}
		if len(samples) >= minBandSamples {
			lo, hi := percentile(samples, 0.1), percentile(samples, 0.9)
			lo, hi = math.Min(lo, pred.P50), math.Max(hi, pred.P50)
			pred.P10, pred.P90 = &lo, &hi
		}
		if r, ok := features.ReservationFor(d); ok && r.ReservedTon > pred.P50 {
			pred.P50 = r.ReservedTon
			if pred.P90 != nil && *pred.P90 < pred.P50 {
				hi := pred.P50
				pred.P90 = &hi
			}
		}
		preds = append(preds, pred)
	}

	p.logger.DebugContext(ctx, "baseline predictions computed",
		"from", from, "to", to, "samples", len(all), "count", len(preds))
	return preds, nil
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// percentile uses nearest-rank on a sorted copy.
func percentile(vs []float64, q float64) float64 {
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

var _ core.Predictor = (*BaselinePredictor)(nil)
