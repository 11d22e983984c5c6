package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/data/memstore"
	"github.com/wastetrack/forecast-worker/internal/domain/forecast"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/mocks"
	"go.uber.org/mock/gomock"
)

// seedJanuary fills January 2025 with weekday 100t, Saturday 50t, Sunday 20t and a 10t holiday on the 1st.
func seedJanuary(fs *memstore.FeatureStore) {
	for _, d := range model.DatesInRange(model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-31")) {
		switch {
		case d.Day() == 1:
			fs.AddActual(d, 10)
		case d.Weekday() == time.Saturday:
			fs.AddActual(d, 50)
		case d.Weekday() == time.Sunday:
			fs.AddActual(d, 20)
		default:
			fs.AddActual(d, 100)
		}
	}
	// Outside the window for effective_from 2025-02-01.
	fs.AddActual(model.MustParseDate("2025-02-01"), 9999)
}

func newRatioFixture(t *testing.T) (*DayTypeRatioService, *memstore.RatioStore, *testSink) {
	t.Helper()
	fs := memstore.NewFeatureStore()
	seedJanuary(fs)
	store := memstore.NewRatioStore()
	sink := newTestSink()

	cal := forecast.NewCalendar(map[model.Date]string{model.MustParseDate("2025-01-01"): "New Year"})
	svc, err := NewDayTypeRatioService(RatioServiceOptions{
		Features: fs,
		Repo:     store,
		Calendar: cal,
		Config:   RatioServiceConfig{LookbackYears: 1, Baseline: model.DayTypeWeekday},
		Clock:    data.NewFixedTimeProvider(time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC)),
		Metrics:  sink,
	})
	require.NoError(t, err)
	return svc, store, sink
}

func TestDayTypeRatioService_Recompute(t *testing.T) {
	svc, store, sink := newRatioFixture(t)
	epoch := model.MustParseDate("2025-02-01")

	res, err := svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: epoch})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, "2024-02-01", res.WindowFrom.String())
	assert.Equal(t, "2025-01-31", res.WindowTo.String())
	assert.Equal(t, 31, res.SampleDays)

	stored, err := svc.List(context.Background(), epoch)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	byType := make(map[model.DayType]model.DayTypeRatio, len(stored))
	for _, r := range stored {
		byType[r.DayType] = r
		assert.Equal(t, 1, r.LookbackYears)
		assert.Equal(t, model.DayTypeWeekday, r.BaselineDayType)
	}
	assert.InDelta(t, 1.0, byType[model.DayTypeWeekday].Ratio, 1e-9)
	assert.Equal(t, 22, byType[model.DayTypeWeekday].SampleDays)
	assert.InDelta(t, 0.5, byType[model.DayTypeSaturday].Ratio, 1e-9)
	assert.InDelta(t, 0.2, byType[model.DayTypeSunday].Ratio, 1e-9)
	assert.InDelta(t, 0.1, byType[model.DayTypeHoliday].Ratio, 1e-9)
	assert.Equal(t, 1, byType[model.DayTypeHoliday].SampleDays)

	direct, err := store.ListByEpoch(context.Background(), epoch)
	require.NoError(t, err)
	assert.Len(t, direct, 4)
	assert.Equal(t, int64(1), sink.counts["ratios.recompute/success"])
}

func TestDayTypeRatioService_DryRunDoesNotWrite(t *testing.T) {
	svc, store, _ := newRatioFixture(t)
	epoch := model.MustParseDate("2025-02-01")

	res, err := svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: epoch, DryRun: true})
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Ratios, 4)

	stored, err := store.ListByEpoch(context.Background(), epoch)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDayTypeRatioService_RecomputeReplacesEpoch(t *testing.T) {
	svc, _, _ := newRatioFixture(t)
	epoch := model.MustParseDate("2025-02-01")

	_, err := svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: epoch})
	require.NoError(t, err)
	_, err = svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: epoch})
	require.NoError(t, err)

	stored, err := svc.List(context.Background(), epoch)
	require.NoError(t, err)
	assert.Len(t, stored, 4, "second recompute replaces rather than appends")
}

func TestDayTypeRatioService_Validation(t *testing.T) {
	svc, _, sink := newRatioFixture(t)

	_, err := svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: model.MustParseDate("2025-02-03")})
	assert.True(t, apperrors.IsValidation(err))
	assert.ErrorIs(t, err, forecast.ErrInvalidEpoch)
	assert.Equal(t, int64(1), sink.counts["ratios.recompute/error"])

	_, err = svc.List(context.Background(), model.MustParseDate("2025-02-03"))
	assert.True(t, apperrors.IsValidation(err))

	// No actuals at all for this window.
	_, err = svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: model.MustParseDate("2020-01-01")})
	assert.True(t, apperrors.IsValidation(err))
	assert.ErrorIs(t, err, forecast.ErrBaselineUnavailable)
}

func TestDayTypeRatioService_EpochLockedIsConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockDayTypeRatioRepository(ctrl)
	fs := memstore.NewFeatureStore()
	seedJanuary(fs)

	svc, err := NewDayTypeRatioService(RatioServiceOptions{
		Features: fs,
		Repo:     repo,
		Config:   RatioServiceConfig{LookbackYears: 1},
	})
	require.NoError(t, err)

	repo.EXPECT().ReplaceEpoch(gomock.Any(), model.MustParseDate("2025-02-01"), gomock.Any()).Return(data.ErrEpochLocked)
	_, err = svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: model.MustParseDate("2025-02-01")})
	assert.True(t, apperrors.IsConflict(err))
}

func TestDayTypeRatioService_FeatureError(t *testing.T) {
	ctrl := gomock.NewController(t)
	features := mocks.NewMockFeatureSource(ctrl)
	svc, err := NewDayTypeRatioService(RatioServiceOptions{
		Features: features,
		Repo:     memstore.NewRatioStore(),
	})
	require.NoError(t, err)

	features.EXPECT().FetchActuals(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	_, err = svc.Recompute(context.Background(), RecomputeRequest{EffectiveFrom: model.MustParseDate("2025-02-01")})
	require.Error(t, err)
	assert.Empty(t, apperrors.GetCode(err))
}
