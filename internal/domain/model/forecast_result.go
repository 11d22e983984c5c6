package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultResultUnit is recorded when neither the job nor the predictor names a unit.
const DefaultResultUnit = "ton"

// ErrPartialBand is returned when exactly one of p10/p90 is present.
var ErrPartialBand = errors.New("p10 and p90 must both be set or both be absent")

// ForecastResult is one persisted prediction for a single date within a job.
type ForecastResult struct {
	ID            int64           `json:"id"                       db:"id"`
	TargetDate    Date            `json:"target_date"              db:"target_date"`
	JobID         string          `json:"job_id"                   db:"job_id"`
	P50           float64         `json:"p50"                      db:"p50"`
	P10           *float64        `json:"p10,omitempty"            db:"p10"`
	P90           *float64        `json:"p90,omitempty"            db:"p90"`
	Unit          string          `json:"unit"                     db:"unit"`
	ModelVersion  string          `json:"model_version,omitempty"  db:"model_version"`
	InputSnapshot json.RawMessage `json:"input_snapshot,omitempty" db:"input_snapshot"`
	GeneratedAt   time.Time       `json:"generated_at"             db:"generated_at"`
}

// SaveResultParams carries a single result write.
type SaveResultParams struct {
	TargetDate    Date
	JobID         string
	P50           float64
	P10           *float64
	P90           *float64
	Unit          string
	ModelVersion  string
	InputSnapshot json.RawMessage
}

// Validate enforces the result invariants that do not need the store.
func (p *SaveResultParams) Validate() error {
	if strings.TrimSpace(p.JobID) == "" {
		return errors.New("job_id is required")
	}
	if p.TargetDate.IsZero() {
		return errors.New("target_date is required")
	}
	if !isFinite(p.P50) {
		return fmt.Errorf("p50 must be finite for %s", p.TargetDate)
	}
	return ValidateBand(p.P10, p.P90)
}

// ValidateBand checks that an uncertainty band is either absent or complete and ordered.
func ValidateBand(p10, p90 *float64) error {
	if (p10 == nil) != (p90 == nil) {
		return ErrPartialBand
	}
	if p10 == nil {
		return nil
	}
	if !isFinite(*p10) || !isFinite(*p90) {
		return errors.New("p10 and p90 must be finite")
	}
	if *p10 > *p90 {
		return fmt.Errorf("p10 (%g) must not exceed p90 (%g)", *p10, *p90)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
