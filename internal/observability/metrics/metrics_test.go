package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *recordingSink) add(kind, name string, v float64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{kind: kind, name: name, value: v, tags: tags})
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.add("count", name, float64(value), tags)
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.add("gauge", name, value, tags)
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.add("timing", name, value.Seconds(), tags)
}

func TestEmitJobLifecycle(t *testing.T) {
	sink := &recordingSink{}
	EmitJobLifecycle(sink, JobMetric{
		JobType:    "daily",
		Transition: TransitionFailed,
		Result:     ResultError,
		Duration:   2 * time.Second,
		Err:        errors.New("predictor down"),
	})

	require.Len(t, sink.seen, 2)
	assert.Equal(t, NameJobTransition, sink.seen[0].name)
	assert.Equal(t, "errors_errorstring", sink.seen[0].tags["error_class"])
	assert.Equal(t, NameJobDuration, sink.seen[1].name)
	assert.InDelta(t, 2.0, sink.seen[1].value, 1e-9)

	EmitJobLifecycle(nil, JobMetric{})
}

func TestEmitReaperSweep(t *testing.T) {
	sink := &recordingSink{}
	EmitReaperSweep(sink, ReaperMetric{Requeued: 2, Duration: time.Millisecond})
	EmitReaperSweep(sink, ReaperMetric{})

	require.Len(t, sink.seen, 3)
	assert.Equal(t, "requeued", sink.seen[0].tags["action"])
	assert.Equal(t, ResultSuccess, sink.seen[1].tags["result"])
	assert.Equal(t, ResultNoop, sink.seen[2].tags["result"])
}

func TestFanoutSkipsNil(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := NewFanout(a, nil, b)
	EmitPoll(sink, ResultNoop)

	assert.Len(t, a.seen, 1)
	assert.Len(t, b.seen, 1)

	single := NewFanout(nil, a)
	assert.Same(t, a, single)
	NewFanout().Count("ignored", 1, nil)
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	EmitJobLifecycle(sink, JobMetric{JobType: "daily", Transition: TransitionDone, Result: ResultSuccess})
	EmitJobLifecycle(sink, JobMetric{JobType: "daily", Transition: TransitionDone, Result: ResultSuccess})
	EmitResults(sink, "daily", 3, 1)
	EmitQueueDepth(sink, map[string]int{"pending": 7})
	sink.Count("not.declared", 1, nil)

	transitions := sink.counters[NameJobTransition].vec
	assert.InDelta(t, 2.0, promtest.ToFloat64(transitions.WithLabelValues("daily", TransitionDone, ResultSuccess, "")), 1e-9)
	results := sink.counters[NameJobResults].vec
	assert.InDelta(t, 3.0, promtest.ToFloat64(results.WithLabelValues("daily", "written")), 1e-9)
	assert.InDelta(t, 7.0, promtest.ToFloat64(sink.gauges[NameQueueDepth].vec.WithLabelValues("pending")), 1e-9)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "forecast_job_transitions_total"))

	_, err = NewPrometheusSink(reg)
	assert.Error(t, err, "collectors register once per registry")
}
