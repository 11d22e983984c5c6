package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

type resultKey struct {
	date  model.Date
	jobID string
}

// ResultStore keeps one result per (target_date, job_id).
type ResultStore struct {
	mu      sync.Mutex
	clock   data.TimeProvider
	jobs    *JobStore
	seq     int64
	results map[resultKey]*model.ForecastResult
}

// NewResultStore creates an empty ResultStore. When jobs is non-nil, saves for unknown jobs
// fail with data.ErrJobNotFound, like the foreign key in Postgres.
func NewResultStore(clock data.TimeProvider, jobs *JobStore) *ResultStore {
	if clock == nil {
		clock = data.RealTimeProvider{}
	}
	return &ResultStore{clock: clock, jobs: jobs, results: make(map[resultKey]*model.ForecastResult)}
}

// Save stores the result unless one already exists for the key.
func (s *ResultStore) Save(ctx context.Context, params model.SaveResultParams) (int64, error) {
	if err := params.Validate(); err != nil {
		if errors.Is(err, model.ErrPartialBand) {
			return 0, fmt.Errorf("%w: %w", data.ErrInvalidBand, err)
		}
		return 0, err
	}
	if s.jobs != nil {
		if _, err := s.jobs.GetByID(ctx, params.JobID); err != nil {
			return 0, err
		}
	}

	unit := params.Unit
	if unit == "" {
		unit = model.DefaultResultUnit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resultKey{date: params.TargetDate, jobID: params.JobID}
	if _, exists := s.results[key]; exists {
		return 0, data.ErrDuplicateResult
	}
	s.seq++
	s.results[key] = &model.ForecastResult{
		ID:            s.seq,
		TargetDate:    params.TargetDate,
		JobID:         params.JobID,
		P50:           params.P50,
		P10:           copyFloat(params.P10),
		P90:           copyFloat(params.P90),
		Unit:          unit,
		ModelVersion:  params.ModelVersion,
		InputSnapshot: append(json.RawMessage(nil), params.InputSnapshot...),
		GeneratedAt:   s.clock.Now(),
	}
	return s.seq, nil
}

// ListByJob returns the job's results ordered by target date.
func (s *ResultStore) ListByJob(_ context.Context, jobID string) ([]*model.ForecastResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.ForecastResult, 0)
	for k, r := range s.results {
		if k.jobID != jobID {
			continue
		}
		cp := *r
		cp.P10 = copyFloat(r.P10)
		cp.P90 = copyFloat(r.P90)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetDate.Before(out[j].TargetDate) })
	return out, nil
}

// Count returns the number of stored results.
func (s *ResultStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ core.ForecastResultRepository = (*ResultStore)(nil)
