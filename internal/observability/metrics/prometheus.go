package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

const namespace = "forecast"

type promCounter struct {
	vec    *prometheus.CounterVec
	labels []string
}

type promGauge struct {
	vec    *prometheus.GaugeVec
	labels []string
}

type promHistogram struct {
	vec    *prometheus.HistogramVec
	labels []string
}

// PrometheusSink maps the named metrics onto fixed Prometheus collectors. Tags that are not
// a declared label are ignored and missing labels are exported as "". Unknown names are dropped.
type PrometheusSink struct {
	counters   map[string]promCounter
	gauges     map[string]promGauge
	histograms map[string]promHistogram
}

var _ statsd.Sink = (*PrometheusSink)(nil)

// NewPrometheusSink registers the worker collectors on reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		counters:   make(map[string]promCounter),
		gauges:     make(map[string]promGauge),
		histograms: make(map[string]promHistogram),
	}

	s.counter(NameJobTransition, "job_transitions_total", "Forecast job state transitions.",
		"job_type", "transition", "result", "error_class")
	s.counter(NameJobResults, "job_results_total", "Result rows handled by the executor.", "job_type", "outcome")
	s.counter(NameJobPoll, "job_polls_total", "Claim attempts by outcome.", "result")
	s.counter(NameReaperReclaimed, "reaper_reclaimed_total", "Stale running jobs handled by the reaper.", "action")
	s.counter(NameRatioRecompute, "ratio_recomputes_total", "Day-type ratio recomputes.", "result", "dry_run")
	s.gauge(NameQueueDepth, "jobs", "Forecast jobs per status at the last stats read.", "status")
	s.histogram(NameJobDuration, "job_duration_seconds", "Time from claim to terminal state.",
		[]float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600}, "job_type", "transition")
	s.histogram(NameReaperSweep, "reaper_sweep_seconds", "Reaper sweep latency.", prometheus.DefBuckets, "result")
	s.histogram(NamePredictorRequest, "predictor_request_seconds", "Predictor call latency.",
		[]float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}, "predictor", "result")

	for _, c := range s.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler serves the exposition format for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (s *PrometheusSink) counter(name, promName, help string, labels ...string) {
	s.counters[name] = promCounter{
		vec:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: promName, Help: help}, labels),
		labels: labels,
	}
}

func (s *PrometheusSink) gauge(name, promName, help string, labels ...string) {
	s.gauges[name] = promGauge{
		vec:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: promName, Help: help}, labels),
		labels: labels,
	}
}

func (s *PrometheusSink) histogram(name, promName, help string, buckets []float64, labels ...string) {
	s.histograms[name] = promHistogram{
		vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: promName, Help: help, Buckets: buckets,
		}, labels),
		labels: labels,
	}
}

func (s *PrometheusSink) collectors() []prometheus.Collector {
	out := make([]prometheus.Collector, 0, len(s.counters)+len(s.gauges)+len(s.histograms))
	for _, c := range s.counters {
		out = append(out, c.vec)
	}
	for _, g := range s.gauges {
		out = append(out, g.vec)
	}
	for _, h := range s.histograms {
		out = append(out, h.vec)
	}
	return out
}

func labelValues(labels []string, tags map[string]string) []string {
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = tags[l]
	}
	return values
}

func (s *PrometheusSink) Count(name string, value int64, tags map[string]string) {
	c, ok := s.counters[name]
	if !ok || value < 0 {
		return
	}
	c.vec.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
}

func (s *PrometheusSink) Gauge(name string, value float64, tags map[string]string) {
	g, ok := s.gauges[name]
	if !ok {
		return
	}
	g.vec.WithLabelValues(labelValues(g.labels, tags)...).Set(value)
}

func (s *PrometheusSink) Timing(name string, value time.Duration, tags map[string]string) {
	h, ok := s.histograms[name]
	if !ok {
		return
	}
	h.vec.WithLabelValues(labelValues(h.labels, tags)...).Observe(value.Seconds())
}
