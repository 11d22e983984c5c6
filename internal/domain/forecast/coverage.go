package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// ErrIncompleteCoverage is returned when predictions do not cover every date in range exactly once.
var ErrIncompleteCoverage = errors.New("predictions do not cover the requested range")

// CoverageError lists the dates that break the one-prediction-per-date contract.
type CoverageError struct {
	Missing    []model.Date
	Duplicated []model.Date
	OutOfRange []model.Date
}

func (e *CoverageError) Error() string {
	parts := make([]string, 0, 3)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing %d date(s) %s", len(e.Missing), joinDates(e.Missing)))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, "duplicated "+joinDates(e.Duplicated))
	}
	if len(e.OutOfRange) > 0 {
		parts = append(parts, "out of range "+joinDates(e.OutOfRange))
	}
	return ErrIncompleteCoverage.Error() + ": " + strings.Join(parts, "; ")
}

func (e *CoverageError) Unwrap() error { return ErrIncompleteCoverage }

// PredictionError reports a contract violation on a single predicted date.
type PredictionError struct {
	Date model.Date
	Err  error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("invalid prediction for %s: %v", e.Date, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }

// ValidatePredictions checks that preds hold exactly one well-formed row for every date in
// [from, to] and returns them sorted by date.
func ValidatePredictions(from, to model.Date, preds []model.Prediction) ([]model.Prediction, error) {
	want := model.DatesInRange(from, to)
	if len(want) == 0 {
		return nil, fmt.Errorf("invalid range %s..%s", from, to)
	}

	seen := make(map[model.Date]int, len(preds))
	covErr := &CoverageError{}
	for _, p := range preds {
		if p.Date.IsZero() || p.Date.Before(from) || p.Date.After(to) {
			covErr.OutOfRange = append(covErr.OutOfRange, p.Date)
			continue
		}
		seen[p.Date]++
		if seen[p.Date] == 2 {
			covErr.Duplicated = append(covErr.Duplicated, p.Date)
		}
	}
	for _, d := range want {
		if seen[d] == 0 {
			covErr.Missing = append(covErr.Missing, d)
		}
	}
	if len(covErr.Missing)+len(covErr.Duplicated)+len(covErr.OutOfRange) > 0 {
		return nil, covErr
	}

	out := make([]model.Prediction, len(preds))
	copy(out, preds)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	for _, p := range out {
		if math.IsNaN(p.P50) || math.IsInf(p.P50, 0) {
			return nil, &PredictionError{Date: p.Date, Err: errors.New("p50 must be finite")}
		}
		if err := model.ValidateBand(p.P10, p.P90); err != nil {
			return nil, &PredictionError{Date: p.Date, Err: err}
		}
	}
	return out, nil
}

func joinDates(ds []model.Date) string {
	const maxListed = 5
	parts := make([]string, 0, maxListed+1)
	for i, d := range ds {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("+%d more", len(ds)-maxListed))
			break
		}
		if d.IsZero() {
			parts = append(parts, "<zero>")
			continue
		}
		parts = append(parts, d.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
