package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/data/memstore"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/mocks"
	"go.uber.org/mock/gomock"
)

// testSink aggregates metrics by name and the single distinguishing tag each metric carries.
type testSink struct {
	mu      sync.Mutex
	counts  map[string]int64
	gauges  map[string]float64
	timings map[string]int
}

func newTestSink() *testSink {
	return &testSink{
		counts:  make(map[string]int64),
		gauges:  make(map[string]float64),
		timings: make(map[string]int),
	}
}

func sinkKey(name string, tags map[string]string) string {
	return name + "/" + tags["result"] + tags["action"] + tags["outcome"]
}

func (s *testSink) Count(name string, value int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[sinkKey(name, tags)] += value
}

func (s *testSink) Gauge(_ string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[tags["status"]] = value
}

func (s *testSink) Timing(name string, _ time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings[sinkKey(name, tags)]++
}

func validCreateRequest() *model.CreateForecastJobRequest {
	return &model.CreateForecastJobRequest{
		Type:       model.JobTypeDaily,
		TargetFrom: model.MustParseDate("2025-01-01"),
		TargetTo:   model.MustParseDate("2025-01-03"),
		Actor:      "planner",
	}
}

func TestJobService_CreatePublishes(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockJobPublisher(ctrl)
	store := memstore.NewJobStore(nil)

	svc := MustNewJobService(JobServiceOptions{Repo: store, Publisher: pub, Logger: slog.Default()})

	pub.EXPECT().Publish(gomock.Any()).Return(nil)
	job, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.NotEmpty(t, job.ID)
}

func TestJobService_CreatePublishFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := mocks.NewMockJobPublisher(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: memstore.NewJobStore(nil), Publisher: pub, Logger: slog.Default()})

	pub.EXPECT().Publish(gomock.Any()).Return(errors.New("redis down"))
	job, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestJobService_CreateValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockForecastJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo})

	_, err := svc.Create(context.Background(), nil)
	assert.True(t, apperrors.IsValidation(err))

	req := validCreateRequest()
	req.TargetFrom, req.TargetTo = req.TargetTo, req.TargetFrom
	_, err = svc.Create(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err))

	req = validCreateRequest()
	req.Actor = " "
	_, err = svc.Create(context.Background(), req)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_GetNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockForecastJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo})

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)
	_, err := svc.Get(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.ErrorIs(t, err, data.ErrJobNotFound)
}

func TestJobService_ListClampsAndValidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockForecastJobRepository(ctrl)
	svc := MustNewJobService(JobServiceOptions{Repo: repo})

	repo.EXPECT().List(gomock.Any(), model.ListJobsOptions{Limit: 500, Offset: 0}).Return(nil, nil)
	_, err := svc.List(context.Background(), model.ListJobsOptions{Limit: 10000, Offset: -3})
	require.NoError(t, err)

	repo.EXPECT().List(gomock.Any(), model.ListJobsOptions{Limit: 50}).Return(nil, nil)
	_, err = svc.List(context.Background(), model.ListJobsOptions{})
	require.NoError(t, err)

	bad := model.JobStatus("queued")
	_, err = svc.List(context.Background(), model.ListJobsOptions{Status: &bad})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "status", apperrors.GetField(err))
}

func TestJobService_StatsEmitsQueueDepth(t *testing.T) {
	store := memstore.NewJobStore(nil)
	sink := newTestSink()
	svc := MustNewJobService(JobServiceOptions{Repo: store, Metrics: sink})

	_, err := store.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = store.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	_, err = store.ClaimNextPending(context.Background())
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobStats{Pending: 1, Running: 1}, *stats)
	assert.InDelta(t, 1, sink.gauges["pending"], 1e-9)
	assert.InDelta(t, 1, sink.gauges["running"], 1e-9)
	assert.InDelta(t, 0, sink.gauges["done"], 1e-9)
}

func TestJobService_Results(t *testing.T) {
	store := memstore.NewJobStore(nil)
	results := memstore.NewResultStore(nil, store)
	svc := MustNewJobService(JobServiceOptions{Repo: store, Results: results})

	job, err := store.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	for _, d := range []string{"2025-01-02", "2025-01-01"} {
		_, err = results.Save(context.Background(), model.SaveResultParams{
			TargetDate: model.MustParseDate(d), JobID: job.ID, P50: 1,
		})
		require.NoError(t, err)
	}

	got, err := svc.Results(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-01-01", got[0].TargetDate.String())

	_, err = svc.Results(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPoller(t *testing.T) {
	store := memstore.NewJobStore(nil)
	sink := newTestSink()
	poller, err := NewPoller(store, sink)
	require.NoError(t, err)

	_, err = poller.Poll(context.Background())
	require.ErrorIs(t, err, model.ErrNoJobsAvailable)

	created, err := store.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	job, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, created.ID, job.ID)
	assert.Equal(t, model.JobStatusRunning, job.Status)

	assert.Equal(t, int64(1), sink.counts["job.poll/noop"])
	assert.Equal(t, int64(1), sink.counts["job.poll/success"])
	assert.Equal(t, int64(1), sink.counts["job.transition/success"])
}

func TestPoller_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockForecastJobRepository(ctrl)
	poller, err := NewPoller(repo, nil)
	require.NoError(t, err)

	repo.EXPECT().ClaimNextPending(gomock.Any()).Return(nil, errors.New("conn reset"))
	_, err = poller.Poll(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrNoJobsAvailable)
	assert.Contains(t, err.Error(), "claim next pending job")
}
