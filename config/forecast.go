package config

import (
	"strings"
	"time"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// PredictorKind selects the predictor implementation.
type PredictorKind string

const (
	// PredictorHTTP calls a remote model service.
	PredictorHTTP PredictorKind = "http"
	// PredictorBaseline predicts the day-of-week mean of the history window.
	PredictorBaseline PredictorKind = "baseline"
)

// PredictorConfig configures the predictor port.
type PredictorConfig struct {
	Kind PredictorKind `env:"PREDICTOR_KIND" envDefault:"baseline"`

	URL     string        `env:"PREDICTOR_URL"`
	Timeout time.Duration `env:"PREDICTOR_TIMEOUT" envDefault:"2m"`

	// ResultPath is a JMESPath expression selecting the prediction array in the response body.
	ResultPath string `env:"PREDICTOR_RESULT_PATH" envDefault:"predictions"`

	// OAuth2 client credentials. Auth is skipped when TokenURL is empty.
	TokenURL     string   `env:"PREDICTOR_TOKEN_URL"`
	ClientID     string   `env:"PREDICTOR_CLIENT_ID"`
	ClientSecret string   `env:"PREDICTOR_CLIENT_SECRET"`
	Scopes       []string `env:"PREDICTOR_SCOPES"`

	// ModelVersion is stamped on predictions that do not carry one.
	ModelVersion string `env:"PREDICTOR_MODEL_VERSION" envDefault:""`
}

// Sanitize applies guardrails to predictor configuration values.
func (p *PredictorConfig) Sanitize() {
	p.Kind = PredictorKind(strings.ToLower(strings.TrimSpace(string(p.Kind))))
	if p.Kind != PredictorHTTP {
		p.Kind = PredictorBaseline
	}
	p.URL = strings.TrimSpace(p.URL)
	p.TokenURL = strings.TrimSpace(p.TokenURL)
	p.ResultPath = strings.TrimSpace(p.ResultPath)
	if p.Timeout <= 0 {
		p.Timeout = 2 * time.Minute
	}
}

// OAuthEnabled reports whether client-credentials auth should wrap predictor calls.
func (p *PredictorConfig) OAuthEnabled() bool {
	return p.TokenURL != "" && p.ClientID != ""
}

// RatioConfig configures the day-type ratio recompute.
type RatioConfig struct {
	LookbackYears int           `env:"RATIO_LOOKBACK_YEARS"    envDefault:"3"`
	Baseline      model.DayType `env:"RATIO_BASELINE_DAY_TYPE" envDefault:"weekday"`

	// HolidaysFile is a YAML holiday calendar. Empty means weekends only.
	HolidaysFile string `env:"RATIO_HOLIDAYS_FILE"`
}

// Sanitize applies guardrails to ratio configuration values.
func (r *RatioConfig) Sanitize() {
	if r.LookbackYears < 1 {
		r.LookbackYears = 1
	}
	if !r.Baseline.Valid() {
		r.Baseline = model.DayTypeWeekday
	}
	r.HolidaysFile = strings.TrimSpace(r.HolidaysFile)
}
