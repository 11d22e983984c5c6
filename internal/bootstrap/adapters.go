package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/adapters/predictor"
	redisadapter "github.com/wastetrack/forecast-worker/internal/adapters/redis"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/data"
	"github.com/wastetrack/forecast-worker/internal/data/memstore"
	"github.com/wastetrack/forecast-worker/internal/domain/forecast"
	"github.com/wastetrack/forecast-worker/internal/domain/job"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// Repositories groups the data adapters behind the service ports.
type Repositories struct {
	Jobs      core.ForecastJobRepository
	Reclaimer core.StaleJobReclaimer
	Results   core.ForecastResultRepository
	Features  core.FeatureSource
	Ratios    core.DayTypeRatioRepository

	// waiter backs the default wake-up notifier: LISTEN/NOTIFY for Postgres,
	// create hooks for the memory store.
	waiter job.Waiter
}

// BuildRepositories wires the Postgres repositories; no business rules here.
func BuildRepositories(db *sql.DB, logger *slog.Logger) Repositories {
	jobs := data.NewForecastJobRepo(db, data.RepoConfig{Logger: logger})
	return Repositories{
		Jobs:      jobs,
		Reclaimer: jobs,
		Results:   data.NewForecastResultRepo(db, nil),
		Features:  data.NewFeatureRepo(db),
		Ratios:    data.NewDayTypeRatioRepo(db),
		waiter:    jobs,
	}
}

// BuildMemoryRepositories wires the process-local stores.
func BuildMemoryRepositories() Repositories {
	jobs := memstore.NewJobStore(nil)
	waiter := newMemoryWaiter()
	jobs.OnCreate = waiter.signal
	return Repositories{
		Jobs:      jobs,
		Reclaimer: jobs,
		Results:   memstore.NewResultStore(nil, jobs),
		Features:  memstore.NewFeatureStore(),
		Ratios:    memstore.NewRatioStore(),
		waiter:    waiter,
	}
}

// memoryWaiter turns memstore create hooks into job.Waiter notifications.
type memoryWaiter struct {
	ch chan struct{}
}

func newMemoryWaiter() *memoryWaiter {
	return &memoryWaiter{ch: make(chan struct{}, 1)}
}

func (w *memoryWaiter) signal(context.Context) {
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

func (w *memoryWaiter) WaitForNotification(ctx context.Context) error {
	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wakeup is the producer and consumer side of "job enqueued" signals.
// Either side may be nil: Postgres NOTIFY is sent by the insert itself, and
// WakeupNone leaves workers on the poll interval.
type Wakeup struct {
	Publisher  core.JobPublisher
	Subscriber core.JobSubscriber
	notifier   *job.DefaultNotifier
}

// Stop closes subscriber channels and ends the listen loop.
func (w Wakeup) Stop() {
	if w.notifier != nil {
		w.notifier.StopAll()
	}
}

// WakeupConfig contains the dependencies for BuildWakeup.
type WakeupConfig struct {
	Worker      config.WorkerConfig
	Redis       config.RedisConfig
	RedisClient redis.UniversalClient
	Repos       Repositories
	Logger      *slog.Logger
}

// BuildWakeup selects the wake-up backend.
func BuildWakeup(cfg WakeupConfig) (Wakeup, error) {
	var (
		waiter    job.Waiter
		publisher core.JobPublisher
	)

	switch cfg.Worker.Wakeup {
	case config.WakeupNone:
		return Wakeup{}, nil
	case config.WakeupRedis:
		if cfg.RedisClient == nil {
			return Wakeup{}, errors.New("WORKER_WAKEUP=redis requires a redis connection")
		}
		n, err := redisadapter.NewJobNotifier(cfg.RedisClient, cfg.Redis.Channel)
		if err != nil {
			return Wakeup{}, fmt.Errorf("create redis job notifier: %w", err)
		}
		waiter, publisher = n, n
	default:
		waiter = cfg.Repos.waiter
	}

	if waiter == nil {
		return Wakeup{Publisher: publisher}, nil
	}
	notifier, err := job.NewNotifier(job.NotifierOptions{Waiter: waiter, WaitWindow: cfg.Worker.WakeupWaitWindow})
	if err != nil {
		return Wakeup{}, fmt.Errorf("create job notifier: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("job wake-ups enabled", "backend", cfg.Worker.Wakeup)
	}
	return Wakeup{Publisher: publisher, Subscriber: notifier, notifier: notifier}, nil
}

// BuildPredictor returns the configured predictor.
//
//nolint:ireturn // the predictor implementation is chosen from configuration.
func BuildPredictor(cfg config.PredictorConfig, logger *slog.Logger, sink statsd.Sink) (core.Predictor, error) {
	if cfg.Kind == config.PredictorHTTP {
		p, err := predictor.NewHTTPPredictor(predictor.HTTPOptions{Config: cfg, Logger: logger, Metrics: sink})
		if err != nil {
			return nil, fmt.Errorf("create http predictor: %w", err)
		}
		return p, nil
	}
	return predictor.NewBaselinePredictor(logger, sink), nil
}

// LoadCalendar reads the holiday calendar, or returns a weekends-only calendar when path is empty.
func LoadCalendar(path string) (*forecast.Calendar, error) {
	if path == "" {
		return forecast.NewCalendar(nil), nil
	}
	cal, err := forecast.LoadCalendar(path)
	if err != nil {
		return nil, fmt.Errorf("load holiday calendar: %w", err)
	}
	return cal, nil
}
