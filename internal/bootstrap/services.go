package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/adapters/jobrunner"
	"github.com/wastetrack/forecast-worker/internal/adapters/reaper"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
	"github.com/wastetrack/forecast-worker/internal/service"
	"golang.org/x/sync/errgroup"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs     *service.JobService
	Ratios   *service.DayTypeRatioService
	Poller   *service.Poller
	Executor *service.JobExecutor

	Repos         Repositories
	Wakeup        Wakeup
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Sink fans out to StatsD and Prometheus, whichever are enabled.
	Sink           statsd.Sink
	StatsD         *statsd.Client
	MetricsHandler http.Handler
}

// Close releases the StatsD socket.
func (o ObservabilityContainer) Close() error {
	if o.StatsD == nil {
		return nil
	}
	return o.StatsD.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB // nil with the memory store
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildObservability configures the StatsD client and the Prometheus registry.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) (ObservabilityContainer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out ObservabilityContainer
	sinks := make([]statsd.Sink, 0, 2)

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.StatsdPrefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.StatsD = client
			sinks = append(sinks, client)
		}
	}

	if cfg.Metrics.PrometheusEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom, err := metrics.NewPrometheusSink(reg)
		if err != nil {
			return out, fmt.Errorf("register prometheus metrics: %w", err)
		}
		sinks = append(sinks, prom)
		out.MetricsHandler = metrics.Handler(reg)
	}

	out.Sink = metrics.NewFanout(sinks...)
	return out, nil
}

// NewServices wires repositories, the predictor and the domain services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs, err := BuildObservability(logger, cfg.Observability)
	if err != nil {
		return ServiceContainer{}, err
	}

	var repos Repositories
	if cfg.Postgres.UseMemory() {
		logger.Warn("using process-local memory store; data is lost on exit")
		repos = BuildMemoryRepositories()
	} else {
		if deps.DB == nil {
			return ServiceContainer{}, errors.New("database connection is required")
		}
		repos = BuildRepositories(deps.DB, logger)
	}

	wakeup, err := BuildWakeup(WakeupConfig{
		Worker:      cfg.Worker,
		Redis:       cfg.Redis,
		RedisClient: deps.RedisClient,
		Repos:       repos,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	calendar, err := LoadCalendar(cfg.Ratio.HolidaysFile)
	if err != nil {
		return ServiceContainer{}, err
	}

	pred, err := BuildPredictor(cfg.Predictor, logger, obs.Sink)
	if err != nil {
		return ServiceContainer{}, err
	}

	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:      repos.Jobs,
		Results:   repos.Results,
		Publisher: wakeup.Publisher,
		Logger:    logger,
		Metrics:   obs.Sink,
	})

	ratios, err := service.NewDayTypeRatioService(service.RatioServiceOptions{
		Features: repos.Features,
		Repo:     repos.Ratios,
		Calendar: calendar,
		Config:   service.RatioServiceConfig{LookbackYears: cfg.Ratio.LookbackYears, Baseline: cfg.Ratio.Baseline},
		Logger:   logger,
		Metrics:  obs.Sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create ratio service: %w", err)
	}

	poller, err := service.NewPoller(repos.Jobs, obs.Sink)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create poller: %w", err)
	}

	executor, err := service.NewJobExecutor(service.JobExecutorOptions{
		Jobs:      repos.Jobs,
		Results:   repos.Results,
		Features:  repos.Features,
		Predictor: pred,
		Config: service.ExecutorConfig{
			FeatureHistoryDays: cfg.Worker.FeatureHistoryDays,
			HeartbeatInterval:  cfg.Worker.HeartbeatInterval,
		},
		Logger:  logger,
		Metrics: obs.Sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create executor: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Ratios:        ratios,
		Poller:        poller,
		Executor:      executor,
		Repos:         repos,
		Wakeup:        wakeup,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// RunServicesWithShutdown runs every enabled service until SIGINT/SIGTERM or the first failure.
// The worker finishes its current job before returning.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices runs every enabled service until ctx ends or one of them fails.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	defer cfg.Services.Wakeup.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if enabled[config.ServiceModeHTTP] {
		server := NewHTTPServer(HTTPServerConfig{
			HTTP:     cfg.Config.HTTP,
			Services: cfg.Services,
			DB:       cfg.DB,
			Logger:   logger,
		})
		g.Go(func() error {
			return ServeHTTP(gctx, ServeConfig{
				Server:          server,
				MaxConnections:  cfg.Config.HTTP.MaxConnections,
				ShutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
				Logger:          logger,
			})
		})
	}

	if enabled[config.ServiceModeWorker] {
		runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
			Poller:       cfg.Services.Poller,
			Executor:     cfg.Services.Executor,
			Subscriber:   cfg.Services.Wakeup.Subscriber,
			PollInterval: cfg.Config.Worker.PollInterval,
			ErrorBackoff: cfg.Config.Worker.ErrorBackoff,
			JobTimeout:   cfg.Config.Worker.JobTimeout,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("create job runner: %w", err)
		}
		g.Go(func() error { return named("worker", runner.Run(gctx)) })
	}

	if enabled[config.ServiceModeReaper] {
		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			Reclaimer: cfg.Services.Repos.Reclaimer,
			Config:    cfg.Config.Reaper,
			Logger:    logger,
			Metrics:   cfg.Services.Observability.Sink,
		})
		if err != nil {
			return fmt.Errorf("create reaper runner: %w", err)
		}
		g.Go(func() error { return named("reaper", runner.Run(gctx)) })
	}

	logger.InfoContext(ctx, "services started", "services", GetEnabledServices(cfg.Config))

	start := time.Now()
	err = g.Wait()
	if err != nil {
		logger.Error("service error", "error", err)
		return err
	}
	logger.Info("services stopped", "uptime", time.Since(start).Round(time.Second))
	return nil
}

func named(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed: %w", name, err)
}
