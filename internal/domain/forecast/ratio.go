package forecast

import (
	"errors"
	"fmt"
	"time"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

var (
	// ErrInvalidEpoch is returned when effective_from is not the first day of a month.
	ErrInvalidEpoch = errors.New("effective_from must be the first day of a month")
	// ErrBaselineUnavailable is returned when the baseline day type has no usable mean.
	ErrBaselineUnavailable = errors.New("baseline day type has no samples")
)

// RatioWindow returns the half-open lookback window [effectiveFrom - lookbackYears, effectiveFrom).
// The returned `to` is the last included date.
func RatioWindow(effectiveFrom model.Date, lookbackYears int) (model.Date, model.Date, error) {
	if !effectiveFrom.IsMonthStart() {
		return model.Date{}, model.Date{}, ErrInvalidEpoch
	}
	if lookbackYears < 1 {
		return model.Date{}, model.Date{}, fmt.Errorf("lookback_years must be >= 1, got %d", lookbackYears)
	}
	return effectiveFrom.AddYears(-lookbackYears), effectiveFrom.AddDays(-1), nil
}

// DayTypeStats groups actuals by day type and returns the mean per type in AllDayTypes order.
// Types without samples are omitted.
func DayTypeStats(cal *Calendar, actuals []model.DailyActual) []model.DayTypeStat {
	sums := make(map[model.DayType]float64)
	counts := make(map[model.DayType]int)
	for _, a := range actuals {
		dt := cal.Classify(a.Date)
		sums[dt] += a.Ton
		counts[dt]++
	}

	stats := make([]model.DayTypeStat, 0, len(counts))
	for _, dt := range model.AllDayTypes() {
		n := counts[dt]
		if n == 0 {
			continue
		}
		stats = append(stats, model.DayTypeStat{
			DayType:    dt,
			MeanTon:    sums[dt] / float64(n),
			SampleDays: n,
		})
	}
	return stats
}

// RatioInput describes one recompute.
type RatioInput struct {
	EffectiveFrom model.Date
	LookbackYears int
	Baseline      model.DayType
	Stats         []model.DayTypeStat
	ComputedAt    time.Time
}

// ComputeRatios derives ratio = mean_ton / baseline mean_ton for every stat.
func ComputeRatios(in RatioInput) ([]model.DayTypeRatio, error) {
	if !in.Baseline.Valid() {
		return nil, fmt.Errorf("invalid baseline day type %q", in.Baseline)
	}

	var baseline *model.DayTypeStat
	for i := range in.Stats {
		if in.Stats[i].DayType == in.Baseline {
			baseline = &in.Stats[i]
			break
		}
	}
	if baseline == nil || baseline.SampleDays == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBaselineUnavailable, in.Baseline)
	}
	if baseline.MeanTon <= 0 {
		return nil, fmt.Errorf("%w: %s mean is %g", ErrBaselineUnavailable, in.Baseline, baseline.MeanTon)
	}

	out := make([]model.DayTypeRatio, 0, len(in.Stats))
	for _, s := range in.Stats {
		out = append(out, model.DayTypeRatio{
			EffectiveFrom:   in.EffectiveFrom,
			DayType:         s.DayType,
			MeanTon:         s.MeanTon,
			Ratio:           s.MeanTon / baseline.MeanTon,
			SampleDays:      s.SampleDays,
			LookbackYears:   in.LookbackYears,
			BaselineDayType: in.Baseline,
			ComputedAt:      in.ComputedAt,
		})
	}
	return out, nil
}
