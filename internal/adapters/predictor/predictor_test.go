package predictor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

type timingSink struct {
	mu    sync.Mutex
	calls []map[string]string
}

func (s *timingSink) Count(string, int64, map[string]string)   {}
func (s *timingSink) Gauge(string, float64, map[string]string) {}
func (s *timingSink) Timing(_ string, _ time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, tags)
}

func (s *timingSink) last() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func sampleFeatures() model.FeatureSet {
	return model.FeatureSet{
		ActualsFrom: model.MustParseDate("2024-12-25"),
		ActualsTo:   model.MustParseDate("2024-12-31"),
		Actuals: []model.DailyActual{
			{Date: model.MustParseDate("2024-12-30"), Ton: 120},
			{Date: model.MustParseDate("2024-12-31"), Ton: 80},
		},
	}
}

func TestNewHTTPPredictor_Validation(t *testing.T) {
	_, err := NewHTTPPredictor(HTTPOptions{})
	require.Error(t, err)

	_, err = NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{URL: "http://x", ResultPath: "[["}})
	require.Error(t, err)
}

func TestHTTPPredictor_Predict(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","predictions":[
			{"date":"2025-01-01","p50":100,"p10":90,"p90":110},
			{"date":"2025-01-02","p50":105,"model_version":"gbm-7"}
		]}`))
	}))
	defer srv.Close()

	sink := &timingSink{}
	p, err := NewHTTPPredictor(HTTPOptions{
		Config: config.PredictorConfig{
			URL:          srv.URL,
			Timeout:      time.Second,
			ResultPath:   "predictions",
			ModelVersion: "gbm-6",
		},
		Metrics: sink,
	})
	require.NoError(t, err)

	from, to := model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-02")
	preds, err := p.Predict(context.Background(), from, to, sampleFeatures())
	require.NoError(t, err)
	require.Len(t, preds, 2)

	assert.Equal(t, from, got.From)
	assert.Equal(t, to, got.To)
	assert.Len(t, got.Features.Actuals, 2)

	assert.Equal(t, "2025-01-01", preds[0].Date.String())
	assert.InDelta(t, 100.0, preds[0].P50, 1e-9)
	require.NotNil(t, preds[0].P10)
	assert.InDelta(t, 90.0, *preds[0].P10, 1e-9)
	assert.Equal(t, "gbm-6", preds[0].ModelVersion)
	assert.Equal(t, "gbm-7", preds[1].ModelVersion)
	assert.Nil(t, preds[1].P10)

	assert.Equal(t, map[string]string{"predictor": "http", "result": "success"}, sink.last())
}

func TestHTTPPredictor_ResultPathReshapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"rows":[{"day":"2025-01-01","median":7.5}]}}`))
	}))
	defer srv.Close()

	p, err := NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{
		URL:        srv.URL,
		ResultPath: "data.rows[*].{date: day, p50: median}",
	}})
	require.NoError(t, err)

	d := model.MustParseDate("2025-01-01")
	preds, err := p.Predict(context.Background(), d, d, sampleFeatures())
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.InDelta(t, 7.5, preds[0].P50, 1e-9)
}

func TestHTTPPredictor_Errors(t *testing.T) {
	d := model.MustParseDate("2025-01-01")

	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		sink := &timingSink{}
		p, err := NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{URL: srv.URL}, Metrics: sink})
		require.NoError(t, err)

		_, err = p.Predict(context.Background(), d, d, sampleFeatures())
		require.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Contains(t, err.Error(), "model not loaded")
		assert.Equal(t, "error", sink.last()["result"])
	})

	t.Run("selection is not an array", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"predictions":{"date":"2025-01-01"}}`))
		}))
		defer srv.Close()

		p, err := NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{URL: srv.URL, ResultPath: "predictions"}})
		require.NoError(t, err)

		_, err = p.Predict(context.Background(), d, d, sampleFeatures())
		require.ErrorContains(t, err, "want an array")
	})

	t.Run("invalid json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		p, err := NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{URL: srv.URL}})
		require.NoError(t, err)

		_, err = p.Predict(context.Background(), d, d, sampleFeatures())
		require.ErrorContains(t, err, "decode predict response")
	})
}

func TestHTTPPredictor_ClientCredentials(t *testing.T) {
	var tokenCalls int
	var mu sync.Mutex
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenCalls++
		mu.Unlock()
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	modelSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"predictions":[{"date":"2025-01-01","p50":1}]}`))
	}))
	defer modelSrv.Close()

	p, err := NewHTTPPredictor(HTTPOptions{Config: config.PredictorConfig{
		URL:          modelSrv.URL,
		ResultPath:   "predictions",
		TokenURL:     tokenSrv.URL,
		ClientID:     "forecast-worker",
		ClientSecret: "s3cret",
		Scopes:       []string{"predict"},
	}})
	require.NoError(t, err)

	d := model.MustParseDate("2025-01-01")
	for range 2 {
		preds, err := p.Predict(context.Background(), d, d, sampleFeatures())
		require.NoError(t, err)
		require.Len(t, preds, 1)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, tokenCalls, "token is cached between calls")
}

func TestBaselinePredictor_WeekdayMeans(t *testing.T) {
	// Mondays in history: 100, 110, 120. Tuesdays: 50.
	features := model.FeatureSet{Actuals: []model.DailyActual{
		{Date: model.MustParseDate("2024-12-16"), Ton: 100},
		{Date: model.MustParseDate("2024-12-17"), Ton: 50},
		{Date: model.MustParseDate("2024-12-23"), Ton: 110},
		{Date: model.MustParseDate("2024-12-30"), Ton: 120},
		// On or after from; ignored.
		{Date: model.MustParseDate("2025-01-06"), Ton: 9999},
	}}

	sink := &timingSink{}
	p := NewBaselinePredictor(nil, sink)
	from, to := model.MustParseDate("2025-01-06"), model.MustParseDate("2025-01-08")
	preds, err := p.Predict(context.Background(), from, to, features)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	monday := preds[0]
	assert.Equal(t, "2025-01-06", monday.Date.String())
	assert.InDelta(t, 110.0, monday.P50, 1e-9)
	require.NotNil(t, monday.P10)
	require.NotNil(t, monday.P90)
	assert.InDelta(t, 100.0, *monday.P10, 1e-9)
	assert.InDelta(t, 120.0, *monday.P90, 1e-9)
	assert.Equal(t, BaselineModelVersion, monday.ModelVersion)

	tuesday := preds[1]
	assert.InDelta(t, 50.0, tuesday.P50, 1e-9)
	assert.Nil(t, tuesday.P10, "too few samples for a band")

	// No Wednesday history: overall mean of the four samples.
	assert.InDelta(t, 95.0, preds[2].P50, 1e-9)

	assert.Equal(t, map[string]string{"predictor": "baseline", "result": "success"}, sink.last())
}

func TestBaselinePredictor_ReservationsRaiseEstimate(t *testing.T) {
	features := model.FeatureSet{
		Actuals: []model.DailyActual{{Date: model.MustParseDate("2024-12-31"), Ton: 40}},
		Reservations: []model.DailyReservation{
			{Date: model.MustParseDate("2025-01-02"), ReservedTon: 75, Trucks: 5},
		},
	}
	p := NewBaselinePredictor(nil, nil)
	preds, err := p.Predict(context.Background(), model.MustParseDate("2025-01-01"), model.MustParseDate("2025-01-02"), features)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.InDelta(t, 40.0, preds[0].P50, 1e-9)
	assert.InDelta(t, 75.0, preds[1].P50, 1e-9)
}

func TestBaselinePredictor_NoHistory(t *testing.T) {
	sink := &timingSink{}
	p := NewBaselinePredictor(nil, sink)
	d := model.MustParseDate("2025-01-01")
	_, err := p.Predict(context.Background(), d, d, model.FeatureSet{})
	require.ErrorIs(t, err, ErrNoHistory)
	assert.Equal(t, "error", sink.last()["result"])
}

func TestPercentile(t *testing.T) {
	vs := []float64{5, 1, 4, 2, 3}
	assert.InDelta(t, 1.0, percentile(vs, 0.1), 1e-9)
	assert.InDelta(t, 5.0, percentile(vs, 0.9), 1e-9)
	assert.InDelta(t, 3.0, percentile(vs, 0.5), 1e-9)
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, vs, "input is not mutated")
}
