// Package model defines the core data types shared by the forecast worker, its repositories and the admin API.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the granularity of a forecast job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a forecast job.
type JobStatus string

const (
	// JobTypeDaily forecasts one value per calendar day.
	JobTypeDaily JobType = "daily"
	// JobTypeWeekly forecasts a weekly planning horizon, still one value per day.
	JobTypeWeekly JobType = "weekly"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a worker has claimed the job.
	JobStatusRunning JobStatus = "running"
	// JobStatusDone indicates every date in range has a persisted result.
	JobStatusDone JobStatus = "done"
	// JobStatusFailed indicates the job stopped with an error.
	JobStatusFailed JobStatus = "failed"
)

// MaxJobRangeDays bounds the inclusive date range of a single job.
const MaxJobRangeDays = 366

// ErrNoJobsAvailable is returned when no pending job could be claimed.
var ErrNoJobsAvailable = errors.New("no jobs available")

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env and JSON parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeDaily || t == JobTypeWeekly
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusDone || s == JobStatusFailed
}

// IsTerminal reports whether no further transition is allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// CanTransitionTo reports whether s -> next is a legal forward transition.
// running -> pending is reserved for the stale-claim sweep and is not listed here.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusDone || next == JobStatusFailed
	default:
		return false
	}
}

// ForecastJob is a unit of forecasting work over an inclusive date range.
type ForecastJob struct {
	ID           string          `json:"id"                      db:"id"`
	Type         JobType         `json:"job_type"                db:"job_type"`
	TargetFrom   Date            `json:"target_from"             db:"target_from"`
	TargetTo     Date            `json:"target_to"               db:"target_to"`
	Status       JobStatus       `json:"status"                  db:"status"`
	Actor        string          `json:"actor"                   db:"actor"`
	Payload      json.RawMessage `json:"payload,omitempty"       db:"payload"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	ReclaimCount int             `json:"reclaim_count"           db:"reclaim_count"`
	StartedAt    *time.Time      `json:"started_at,omitempty"    db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"   db:"finished_at"`
	CreatedAt    time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"              db:"updated_at"`
}

// JobClaim identifies one claim on a running job. The reaper bumps ReclaimCount on every
// requeue, so an attempt holding an older claim cannot touch the job after another worker
// has claimed it again.
type JobClaim struct {
	ID           string
	ReclaimCount int
}

// Claim returns the claim this copy of the job was read under.
func (j *ForecastJob) Claim() JobClaim {
	return JobClaim{ID: j.ID, ReclaimCount: j.ReclaimCount}
}

// Dates returns every calendar date the job covers.
func (j *ForecastJob) Dates() []Date {
	return DatesInRange(j.TargetFrom, j.TargetTo)
}

// DecodePayload parses the optional job payload. An empty payload yields zero options.
func (j *ForecastJob) DecodePayload() (JobPayload, error) {
	var p JobPayload
	if len(j.Payload) == 0 || string(j.Payload) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return p, fmt.Errorf("decode job payload: %w", err)
	}
	return p, p.Validate()
}

// JobPayload holds the parameters a job creator may override.
type JobPayload struct {
	// HistoryDays overrides how many days of actuals before target_from feed the predictor.
	HistoryDays *int `json:"history_days,omitempty"`
	// Unit overrides the unit recorded on each result.
	Unit string `json:"unit,omitempty"`
}

// Validate checks payload bounds.
func (p JobPayload) Validate() error {
	if p.HistoryDays != nil && (*p.HistoryDays < 0 || *p.HistoryDays > 3660) {
		return errors.New("history_days must be between 0 and 3660")
	}
	if len(p.Unit) > 32 {
		return errors.New("unit must be at most 32 characters")
	}
	return nil
}

// CreateForecastJobRequest represents a request to enqueue a new forecast job.
type CreateForecastJobRequest struct {
	Type       JobType         `json:"job_type"`
	TargetFrom Date            `json:"target_from"`
	TargetTo   Date            `json:"target_to"`
	Actor      string          `json:"actor"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Validate validates the CreateForecastJobRequest fields.
func (r *CreateForecastJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if r.TargetFrom.IsZero() || r.TargetTo.IsZero() {
		return errors.New("target_from and target_to are required")
	}
	if r.TargetFrom.After(r.TargetTo) {
		return errors.New("target_from must be on or before target_to")
	}
	if r.TargetFrom.DaysUntil(r.TargetTo)+1 > MaxJobRangeDays {
		return fmt.Errorf("date range must not exceed %d days", MaxJobRangeDays)
	}
	if strings.TrimSpace(r.Actor) == "" {
		return errors.New("actor is required")
	}
	if len(r.Payload) > 0 {
		trimmed := strings.TrimSpace(string(r.Payload))
		if !strings.HasPrefix(trimmed, "{") {
			return errors.New("payload must be a JSON object")
		}
		var p JobPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ListJobsOptions filters and pages job listings.
type ListJobsOptions struct {
	Status *JobStatus
	Type   *JobType
	Limit  int
	Offset int
}

// JobStats represents counts of jobs per status.
type JobStats struct {
	Pending int `json:"pending"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}
