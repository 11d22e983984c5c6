package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using
// github.com/caarlos0/env. See the domain config files for variables:
//   - database.go: Postgres and Redis
//   - http.go: admin API server
//   - services.go: service modes, worker loop and reaper
//   - forecast.go: predictor and day-type ratios
//   - observability.go: metrics sinks
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is a comma-delimited list of enabled services: http, worker, reaper.
	Services string `env:"SERVICES" envDefault:"worker"`

	Worker    WorkerConfig
	Reaper    ReaperConfig
	Predictor PredictorConfig
	Ratio     RatioConfig

	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.HTTP.Sanitize()
	c.Worker.Sanitize()
	c.Reaper.Sanitize()
	c.Predictor.Sanitize()
	c.Ratio.Sanitize()
	c.Observability.Sanitize()
}

// ValidateClaimTiming checks that the reaper cannot requeue a job a live worker still holds.
// A live attempt heartbeats every Worker.HeartbeatInterval and gives up after
// Worker.JobTimeout, so the stale threshold must exceed both together.
func (c *AppConfig) ValidateClaimTiming() error {
	floor := c.Worker.JobTimeout + c.Worker.HeartbeatInterval
	if c.Reaper.StaleRunningThreshold <= floor {
		return fmt.Errorf(
			"REAPER_STALE_RUNNING_THRESHOLD (%s) must be greater than WORKER_JOB_TIMEOUT + WORKER_HEARTBEAT_INTERVAL (%s)",
			c.Reaper.StaleRunningThreshold, floor)
	}
	return nil
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the admin API is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsWorkerEnabled returns true if the forecast job worker is enabled.
func (c *AppConfig) IsWorkerEnabled() bool { return c.serviceEnabled(ServiceModeWorker) }

// IsReaperEnabled returns true if the stale-claim reaper is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
