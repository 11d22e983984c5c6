// Package predictor provides the Predictor implementations the worker can run with.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/core"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"github.com/wastetrack/forecast-worker/internal/observability/metrics"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	maxResponseBytes  = 32 << 20
	maxErrorBodyBytes = 4 * 1024
)

// ErrUnexpectedStatus is returned when the model service answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("predictor returned unexpected status")

// HTTPOptions configures an HTTPPredictor.
type HTTPOptions struct {
	Config config.PredictorConfig

	// BaseClient is used for prediction and token calls. Defaults to a client with Config.Timeout.
	BaseClient *http.Client
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// HTTPPredictor posts the feature snapshot to a remote model service and maps the
// response through a JMESPath expression.
type HTTPPredictor struct {
	url          string
	client       *http.Client
	resultPath   string
	modelVersion string
	logger       *slog.Logger
	metrics      statsd.Sink
}

type predictRequest struct {
	From     model.Date       `json:"from"`
	To       model.Date       `json:"to"`
	Features model.FeatureSet `json:"features"`
}

// NewHTTPPredictor validates the configuration and builds the HTTP client. With OAuth2
// client credentials configured, tokens are fetched and refreshed transparently.
func NewHTTPPredictor(opts HTTPOptions) (*HTTPPredictor, error) {
	cfg := opts.Config
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("predictor URL is required")
	}

	path := strings.TrimSpace(cfg.ResultPath)
	if path == "" {
		path = "@"
	}
	if _, err := jmespath.Compile(path); err != nil {
		return nil, fmt.Errorf("compile result path %q: %w", path, err)
	}

	base := opts.BaseClient
	if base == nil {
		base = &http.Client{Timeout: cfg.Timeout}
	}

	client := base
	if cfg.OAuthEnabled() {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = cc.Client(tokenCtx)
		client.Timeout = base.Timeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPPredictor{
		url:          cfg.URL,
		client:       client,
		resultPath:   path,
		modelVersion: cfg.ModelVersion,
		logger:       logger.With("component", "http_predictor"),
		metrics:      opts.Metrics,
	}, nil
}

// Predict implements core.Predictor.
func (p *HTTPPredictor) Predict(
	ctx context.Context,
	from, to model.Date,
	features model.FeatureSet,
) (preds []model.Prediction, err error) {
	start := time.Now()
	defer func() { metrics.EmitPredictorRequest(p.metrics, "http", time.Since(start), err) }()

	body, err := json.Marshal(predictRequest{From: from, To: to, Features: features})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		return nil, fmt.Errorf("predict response exceeds %d bytes", maxResponseBytes)
	}

	preds, err = p.decode(raw)
	if err != nil {
		return nil, err
	}

	p.logger.DebugContext(ctx, "predictions received", "from", from, "to", to, "count", len(preds))
	return preds, nil
}

func (p *HTTPPredictor) decode(raw []byte) ([]model.Prediction, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}

	selected, err := jmespath.Search(p.resultPath, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate result path: %w", err)
	}
	if _, ok := selected.([]any); !ok {
		return nil, fmt.Errorf("result path selected %T, want an array", selected)
	}

	// Round-trip through JSON so model.Date and the optional band decode the usual way.
	reencoded, err := json.Marshal(selected)
	if err != nil {
		return nil, fmt.Errorf("re-encode predictions: %w", err)
	}
	var preds []model.Prediction
	if err := json.Unmarshal(reencoded, &preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	for i := range preds {
		if preds[i].ModelVersion == "" {
			preds[i].ModelVersion = p.modelVersion
		}
	}
	return preds, nil
}

var _ core.Predictor = (*HTTPPredictor)(nil)
