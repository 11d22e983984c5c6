package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// FeatureStore holds daily actuals and reservations. Adds for the same date are summed,
// matching the GROUP BY of the Postgres feature source.
type FeatureStore struct {
	mu           sync.RWMutex
	actuals      map[model.Date]float64
	reservations map[model.Date]model.DailyReservation
}

// NewFeatureStore creates an empty FeatureStore.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		actuals:      make(map[model.Date]float64),
		reservations: make(map[model.Date]model.DailyReservation),
	}
}

// AddActual records inbound tonnage for d.
func (s *FeatureStore) AddActual(d model.Date, ton float64) {
	s.mu.Lock()
	s.actuals[d] += ton
	s.mu.Unlock()
}

// AddReservation records a booking for d.
func (s *FeatureStore) AddReservation(d model.Date, ton float64, trucks int) {
	s.mu.Lock()
	r := s.reservations[d]
	r.Date = d
	r.ReservedTon += ton
	r.Trucks += trucks
	s.reservations[d] = r
	s.mu.Unlock()
}

func inRange(d, from, to model.Date) bool {
	return !d.Before(from) && !d.After(to)
}

// FetchActuals returns one row per date with actuals in [from, to], ascending.
func (s *FeatureStore) FetchActuals(_ context.Context, from, to model.Date) ([]model.DailyActual, error) {
	s.mu.RLock()
	out := make([]model.DailyActual, 0)
	for d, ton := range s.actuals {
		if inRange(d, from, to) {
			out = append(out, model.DailyActual{Date: d, Ton: ton})
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FetchReservations returns one row per date with reservations in [from, to], ascending.
func (s *FeatureStore) FetchReservations(_ context.Context, from, to model.Date) ([]model.DailyReservation, error) {
	s.mu.RLock()
	out := make([]model.DailyReservation, 0)
	for d, r := range s.reservations {
		if inRange(d, from, to) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

var _ core.FeatureSource = (*FeatureStore)(nil)
