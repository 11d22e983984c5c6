package config

import "strings"

const defaultMetricsPrefix = "forecast_worker"

// ObservabilityConfig groups the metric sinks. Both may be active at once.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
}

// ObservabilityMetricsConfig controls StatsD push and the Prometheus /metrics endpoint.
type ObservabilityMetricsConfig struct {
	Enabled           bool   `env:"OBSERVABILITY_METRICS_ENABLED"        envDefault:"false"`
	StatsdAddress     string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
	StatsdPrefix      string `env:"OBSERVABILITY_METRICS_STATSD_PREFIX"  envDefault:"forecast_worker"`
	PrometheusEnabled bool   `env:"OBSERVABILITY_PROMETHEUS_ENABLED"     envDefault:"true"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.StatsdPrefix = strings.TrimSpace(c.StatsdPrefix); c.StatsdPrefix == "" {
		c.StatsdPrefix = defaultMetricsPrefix
	}
}

// IsEnabled returns true when StatsD emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}
