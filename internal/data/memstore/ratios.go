package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// RatioStore keeps day-type ratios keyed by epoch. Replacing an epoch swaps the whole slice.
type RatioStore struct {
	mu     sync.RWMutex
	epochs map[model.Date][]model.DayTypeRatio
}

// NewRatioStore creates an empty RatioStore.
func NewRatioStore() *RatioStore {
	return &RatioStore{epochs: make(map[model.Date][]model.DayTypeRatio)}
}

// ReplaceEpoch validates every row first, then swaps the epoch in one step.
func (s *RatioStore) ReplaceEpoch(_ context.Context, effectiveFrom model.Date, ratios []model.DayTypeRatio) error {
	next := make([]model.DayTypeRatio, 0, len(ratios))
	seen := make(map[model.DayType]bool, len(ratios))
	for _, r := range ratios {
		if !r.EffectiveFrom.Equal(effectiveFrom) {
			return fmt.Errorf("ratio for %s has effective_from %s, want %s", r.DayType, r.EffectiveFrom, effectiveFrom)
		}
		if !r.DayType.Valid() {
			return fmt.Errorf("invalid day type %q", r.DayType)
		}
		if seen[r.DayType] {
			return fmt.Errorf("duplicate day type %s", r.DayType)
		}
		seen[r.DayType] = true
		next = append(next, r)
	}

	s.mu.Lock()
	if len(next) == 0 {
		delete(s.epochs, effectiveFrom)
	} else {
		s.epochs[effectiveFrom] = next
	}
	s.mu.Unlock()
	return nil
}

// ListByEpoch returns the epoch's ratios ordered by day type.
func (s *RatioStore) ListByEpoch(_ context.Context, effectiveFrom model.Date) ([]model.DayTypeRatio, error) {
	s.mu.RLock()
	out := append([]model.DayTypeRatio(nil), s.epochs[effectiveFrom]...)
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DayType < out[j].DayType })
	if out == nil {
		out = []model.DayTypeRatio{}
	}
	return out, nil
}

var _ core.DayTypeRatioRepository = (*RatioStore)(nil)
