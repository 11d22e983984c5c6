package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the admin API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs the forecast job poller and executor.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the stale-claim sweep.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if strings.TrimSpace(servicesStr) == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}

		mode := ServiceMode(name)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, worker, reaper)", name)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return services, nil
}

// WakeupBackend selects how idle workers learn about new jobs.
type WakeupBackend string

const (
	// WakeupPostgres uses LISTEN/NOTIFY on the job database.
	WakeupPostgres WakeupBackend = "postgres"
	// WakeupRedis uses Redis pub/sub.
	WakeupRedis WakeupBackend = "redis"
	// WakeupNone relies on the poll interval alone.
	WakeupNone WakeupBackend = "none"
)

// WorkerConfig controls the poll loop and the executor.
type WorkerConfig struct {
	// PollInterval is the idle sleep when no job was available.
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"5s"`

	// ErrorBackoff is the sleep after a failed claim query.
	ErrorBackoff time.Duration `env:"WORKER_ERROR_BACKOFF" envDefault:"10s"`

	// JobTimeout bounds a single job execution, independent of shutdown.
	JobTimeout time.Duration `env:"WORKER_JOB_TIMEOUT" envDefault:"30m"`

	// FeatureHistoryDays is how many days of actuals before target_from feed the predictor.
	FeatureHistoryDays int `env:"WORKER_FEATURE_HISTORY_DAYS" envDefault:"56"`

	// HeartbeatInterval refreshes updated_at on running jobs so the reaper leaves them alone.
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"1m"`

	Wakeup WakeupBackend `env:"WORKER_WAKEUP" envDefault:"postgres"`

	// WakeupWaitWindow bounds a single LISTEN/SUBSCRIBE wait before it is re-armed.
	WakeupWaitWindow time.Duration `env:"WORKER_WAKEUP_WAIT_WINDOW" envDefault:"1m"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
	if w.ErrorBackoff < w.PollInterval {
		w.ErrorBackoff = w.PollInterval
	}
	if w.JobTimeout < time.Second {
		w.JobTimeout = time.Second
	}
	if w.FeatureHistoryDays < 0 {
		w.FeatureHistoryDays = 0
	}
	if w.HeartbeatInterval < time.Second {
		w.HeartbeatInterval = time.Second
	}
	switch WakeupBackend(strings.ToLower(strings.TrimSpace(string(w.Wakeup)))) {
	case WakeupRedis:
		w.Wakeup = WakeupRedis
	case WakeupNone:
		w.Wakeup = WakeupNone
	default:
		w.Wakeup = WakeupPostgres
	}
	if w.WakeupWaitWindow <= 0 {
		w.WakeupWaitWindow = time.Minute
	}
}

// ReaperConfig controls the stale-claim sweep.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// StaleRunningThreshold is how long a running job may go without an updated_at bump.
	StaleRunningThreshold time.Duration `env:"REAPER_STALE_RUNNING_THRESHOLD" envDefault:"2h"`

	// MaxReclaims is how many times a job may be returned to pending before it is failed.
	MaxReclaims int `env:"REAPER_MAX_RECLAIMS" envDefault:"3"`

	// BatchSize is the maximum number of rows to process per statement.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.StaleRunningThreshold < time.Minute {
		r.StaleRunningThreshold = time.Minute
	}
	if r.MaxReclaims < 0 {
		r.MaxReclaims = 0
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
