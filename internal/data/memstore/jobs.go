// Package memstore provides in-memory implementations of the forecast repositories.
// They honour the same claim, transition and uniqueness rules as the Postgres
// repositories and back the worker when DB_DRIVER=memory as well as the unit tests.
package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

type jobEntry struct {
	job model.ForecastJob
	seq int64
}

// JobStore is a mutex-guarded forecast job table.
type JobStore struct {
	mu    sync.Mutex
	clock data.TimeProvider
	seq   int64
	jobs  map[string]*jobEntry

	// OnCreate, when set, is called after a job is stored (outside the lock).
	OnCreate func(ctx context.Context)
}

// NewJobStore creates an empty JobStore. A nil clock uses the system time.
func NewJobStore(clock data.TimeProvider) *JobStore {
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	return &JobStore{clock: clock, jobs: make(map[string]*jobEntry)}
}

func cloneJob(j model.ForecastJob) *model.ForecastJob {
	out := j
	if j.Payload != nil {
		out.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.ErrorMessage != nil {
		msg := *j.ErrorMessage
		out.ErrorMessage = &msg
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

func timePtr(t time.Time) *time.Time { return &t }

// Create validates req and stores a pending job.
func (s *JobStore) Create(ctx context.Context, req *model.CreateForecastJobRequest) (*model.ForecastJob, error) {
	if req == nil {
		return nil, errors.New("create forecast job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	now := s.clock.Now()
	s.seq++
	entry := &jobEntry{
		seq: s.seq,
		job: model.ForecastJob{
			ID:         uuid.Must(uuid.NewV7()).String(),
			Type:       req.Type,
			TargetFrom: req.TargetFrom,
			TargetTo:   req.TargetTo,
			Status:     model.JobStatusPending,
			Actor:      req.Actor,
			Payload:    append(json.RawMessage(nil), req.Payload...),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
	if len(req.Payload) == 0 {
		entry.job.Payload = nil
	}
	s.jobs[entry.job.ID] = entry
	out := cloneJob(entry.job)
	hook := s.OnCreate
	s.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	return out, nil
}

// ClaimNextPending moves the oldest pending job to running.
func (s *JobStore) ClaimNextPending(_ context.Context) (*model.ForecastJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest *jobEntry
	for _, e := range s.jobs {
		if e.job.Status != model.JobStatusPending {
			continue
		}
		if oldest == nil || e.seq < oldest.seq {
			oldest = e
		}
	}
	if oldest == nil {
		return nil, model.ErrNoJobsAvailable
	}

	now := s.clock.Now()
	oldest.job.Status = model.JobStatusRunning
	oldest.job.StartedAt = timePtr(now)
	oldest.job.UpdatedAt = now
	return cloneJob(oldest.job), nil
}

// transition applies fn when the job is in from; otherwise it reports why not.
func (s *JobStore) transition(id string, from model.JobStatus, fn func(*model.ForecastJob, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return data.ErrJobNotFound
	}
	if e.job.Status != from {
		return fmt.Errorf("%w: job %s is %s", data.ErrInvalidTransition, id, e.job.Status)
	}
	now := s.clock.Now()
	fn(&e.job, now)
	e.job.UpdatedAt = now
	return nil
}

// MarkRunning moves a pending job to running.
func (s *JobStore) MarkRunning(_ context.Context, id string) error {
	return s.transition(id, model.JobStatusPending, func(j *model.ForecastJob, now time.Time) {
		j.Status = model.JobStatusRunning
		j.StartedAt = timePtr(now)
	})
}

// claimTransition is transition for a running job that must still be held under claim.
func (s *JobStore) claimTransition(claim model.JobClaim, fn func(*model.ForecastJob, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[claim.ID]
	if !ok {
		return data.ErrJobNotFound
	}
	if e.job.ReclaimCount != claim.ReclaimCount {
		return fmt.Errorf("%w: job %s: claim %d, now %d (%s)",
			data.ErrClaimSuperseded, claim.ID, claim.ReclaimCount, e.job.ReclaimCount, e.job.Status)
	}
	if e.job.Status != model.JobStatusRunning {
		return fmt.Errorf("%w: job %s is %s", data.ErrInvalidTransition, claim.ID, e.job.Status)
	}
	now := s.clock.Now()
	fn(&e.job, now)
	e.job.UpdatedAt = now
	return nil
}

// MarkDone moves a running job to done.
func (s *JobStore) MarkDone(_ context.Context, claim model.JobClaim) error {
	return s.claimTransition(claim, func(j *model.ForecastJob, now time.Time) {
		j.Status = model.JobStatusDone
		j.ErrorMessage = nil
		j.FinishedAt = timePtr(now)
	})
}

// MarkFailed moves a running job to failed with errMsg.
func (s *JobStore) MarkFailed(_ context.Context, claim model.JobClaim, errMsg string) error {
	return s.claimTransition(claim, func(j *model.ForecastJob, now time.Time) {
		j.Status = model.JobStatusFailed
		j.ErrorMessage = &errMsg
		j.FinishedAt = timePtr(now)
	})
}

// Heartbeat touches updated_at of a running job.
func (s *JobStore) Heartbeat(_ context.Context, claim model.JobClaim) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[claim.ID]
	if !ok {
		return false, data.ErrJobNotFound
	}
	if e.job.Status != model.JobStatusRunning || e.job.ReclaimCount != claim.ReclaimCount {
		return false, nil
	}
	e.job.UpdatedAt = s.clock.Now()
	return true, nil
}

// GetByID returns a copy of the job.
func (s *JobStore) GetByID(_ context.Context, id string) (*model.ForecastJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	return cloneJob(e.job), nil
}

// List returns jobs newest first.
func (s *JobStore) List(_ context.Context, opts model.ListJobsOptions) ([]*model.ForecastJob, error) {
	s.mu.Lock()
	entries := make([]*jobEntry, 0, len(s.jobs))
	for _, e := range s.jobs {
		if opts.Status != nil && e.job.Status != *opts.Status {
			continue
		}
		if opts.Type != nil && e.job.Type != *opts.Type {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)
	out := make([]*model.ForecastJob, 0)
	for i := offset; i < len(entries) && len(out) < limit; i++ {
		out = append(out, cloneJob(entries[i].job))
	}
	s.mu.Unlock()
	return out, nil
}

// Stats counts jobs per status.
func (s *JobStore) Stats(_ context.Context) (*model.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st model.JobStats
	for _, e := range s.jobs {
		switch e.job.Status {
		case model.JobStatusPending:
			st.Pending++
		case model.JobStatusRunning:
			st.Running++
		case model.JobStatusDone:
			st.Done++
		case model.JobStatusFailed:
			st.Failed++
		}
	}
	return &st, nil
}

// ReclaimStaleRunning mirrors the Postgres sweep: stale running jobs under the reclaim budget go
// back to pending, the rest are failed.
func (s *JobStore) ReclaimStaleRunning(_ context.Context, params core.ReclaimStaleParams) (core.ReclaimStaleResult, error) {
	var res core.ReclaimStaleResult
	if params.StaleAfter <= 0 {
		return res, errors.New("stale threshold must be greater than zero")
	}
	if params.BatchSize <= 0 {
		return res, errors.New("batch size must be greater than zero")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	cutoff := now.Add(-params.StaleAfter)

	stale := make([]*jobEntry, 0)
	for _, e := range s.jobs {
		if e.job.Status == model.JobStatusRunning && e.job.UpdatedAt.Before(cutoff) {
			stale = append(stale, e)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].job.UpdatedAt.Before(stale[j].job.UpdatedAt) })

	for _, e := range stale {
		if e.job.ReclaimCount >= params.MaxReclaims {
			if res.Failed >= int64(params.BatchSize) {
				continue
			}
			msg := data.StaleReclaimMessage
			e.job.Status = model.JobStatusFailed
			e.job.ErrorMessage = &msg
			e.job.FinishedAt = timePtr(now)
			e.job.UpdatedAt = now
			res.Failed++
			continue
		}
		if res.Requeued >= int64(params.BatchSize) {
			continue
		}
		e.job.Status = model.JobStatusPending
		e.job.ReclaimCount++
		e.job.StartedAt = nil
		e.job.UpdatedAt = now
		res.Requeued++
	}
	return res, nil
}

var (
	_ core.ForecastJobRepository = (*JobStore)(nil)
	_ core.StaleJobReclaimer     = (*JobStore)(nil)
)
