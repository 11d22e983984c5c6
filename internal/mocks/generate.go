// Package mocks provides gomock implementations of the ports in internal/core.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockForecastJobRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), id).Return(job, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=forecast_job_repository_mock.go github.com/wastetrack/forecast-worker/internal/core ForecastJobRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=forecast_result_repository_mock.go github.com/wastetrack/forecast-worker/internal/core ForecastResultRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=feature_source_mock.go github.com/wastetrack/forecast-worker/internal/core FeatureSource
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=predictor_mock.go github.com/wastetrack/forecast-worker/internal/core Predictor
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=day_type_ratio_repository_mock.go github.com/wastetrack/forecast-worker/internal/core DayTypeRatioRepository
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=stale_job_reclaimer_mock.go github.com/wastetrack/forecast-worker/internal/core StaleJobReclaimer
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_publisher_mock.go github.com/wastetrack/forecast-worker/internal/core JobPublisher
