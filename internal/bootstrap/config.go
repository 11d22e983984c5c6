package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/wastetrack/forecast-worker/config"
)

// InitLogger initializes the structured logger at the given level.
func InitLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates the enabled services against the rest of the configuration.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	if services[config.ServiceModeWorker] && cfg.Predictor.Kind == config.PredictorHTTP && cfg.Predictor.URL == "" {
		return errors.New("PREDICTOR_URL is required when PREDICTOR_KIND=http")
	}
	if cfg.Postgres.UseMemory() && !services[config.ServiceModeHTTP] && !services[config.ServiceModeWorker] {
		return errors.New("the memory store needs http or worker in the same process")
	}
	if services[config.ServiceModeWorker] || services[config.ServiceModeReaper] {
		if err := cfg.ValidateClaimTiming(); err != nil {
			return fmt.Errorf("invalid claim timing: %w", err)
		}
	}
	return nil
}

// GetEnabledServices returns a sorted list of enabled service names.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			enabled = append(enabled, string(mode))
		}
	}
	slices.Sort(enabled)
	return enabled
}
