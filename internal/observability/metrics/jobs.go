// Package metrics names the worker's metrics and emits them through a statsd.Sink.
package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/wastetrack/forecast-worker/internal/observability/errors"
	"github.com/wastetrack/forecast-worker/internal/observability/statsd"
)

// Metric names shared by every sink.
const (
	NameJobTransition    = "job.transition"
	NameJobDuration      = "job.duration"
	NameJobResults       = "job.results"
	NameJobPoll          = "job.poll"
	NameQueueDepth       = "job.queue_depth"
	NameReaperReclaimed  = "reaper.reclaimed"
	NameReaperSweep      = "reaper.sweep"
	NameRatioRecompute   = "ratios.recompute"
	NamePredictorRequest = "predictor.request"
)

// Result tag values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition tag values for forecast jobs.
const (
	TransitionClaim  = "claim"
	TransitionDone   = "done"
	TransitionFailed = "failed"
)

// JobMetric captures a job lifecycle event.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle counts one transition and, when a duration is known, records it.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count(NameJobTransition, 1, tags)

	if in.Duration > 0 {
		sink.Timing(NameJobDuration, in.Duration, map[string]string{
			"job_type":   in.JobType,
			"transition": in.Transition,
		})
	}
}

// EmitResults records how many result rows a job wrote and how many were idempotent skips.
func EmitResults(sink statsd.Sink, jobType string, written, skipped int) {
	if sink == nil {
		return
	}
	if written > 0 {
		sink.Count(NameJobResults, int64(written), map[string]string{"job_type": jobType, "outcome": "written"})
	}
	if skipped > 0 {
		sink.Count(NameJobResults, int64(skipped), map[string]string{"job_type": jobType, "outcome": "skipped"})
	}
}

// EmitPoll counts one claim attempt. result is ResultSuccess, ResultNoop (queue empty) or ResultError.
func EmitPoll(sink statsd.Sink, result string) {
	if sink == nil {
		return
	}
	sink.Count(NameJobPoll, 1, map[string]string{"result": result})
}

// EmitQueueDepth publishes the per-status job counts.
func EmitQueueDepth(sink statsd.Sink, counts map[string]int) {
	if sink == nil {
		return
	}
	for status, n := range counts {
		sink.Gauge(NameQueueDepth, float64(n), map[string]string{"status": status})
	}
}

// ReaperMetric describes one stale-claim sweep.
type ReaperMetric struct {
	Requeued int64
	Failed   int64
	Duration time.Duration
	Err      error
}

// EmitReaperSweep records a sweep outcome.
func EmitReaperSweep(sink statsd.Sink, in ReaperMetric) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Requeued+in.Failed == 0:
		result = ResultNoop
	}
	if in.Requeued > 0 {
		sink.Count(NameReaperReclaimed, in.Requeued, map[string]string{"action": "requeued"})
	}
	if in.Failed > 0 {
		sink.Count(NameReaperReclaimed, in.Failed, map[string]string{"action": "failed"})
	}
	sink.Timing(NameReaperSweep, in.Duration, map[string]string{"result": result})
}

// EmitRatioRecompute counts a day-type ratio recompute.
func EmitRatioRecompute(sink statsd.Sink, dryRun bool, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Count(NameRatioRecompute, 1, map[string]string{
		"result":  result,
		"dry_run": strconv.FormatBool(dryRun),
	})
}

// EmitPredictorRequest records one predictor call.
func EmitPredictorRequest(sink statsd.Sink, predictor string, d time.Duration, err error) {
	if sink == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	sink.Timing(NamePredictorRequest, d, map[string]string{"predictor": predictor, "result": result})
}

// Fanout forwards every metric to each non-nil sink.
type Fanout []statsd.Sink

// NewFanout drops nil sinks. With none left it returns statsd.Noop.
func NewFanout(sinks ...statsd.Sink) statsd.Sink {
	out := make(Fanout, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return statsd.Noop{}
	case 1:
		return out[0]
	default:
		return out
	}
}

func (f Fanout) Count(name string, value int64, tags map[string]string) {
	for _, s := range f {
		s.Count(name, value, CloneTags(tags))
	}
}

func (f Fanout) Gauge(name string, value float64, tags map[string]string) {
	for _, s := range f {
		s.Gauge(name, value, CloneTags(tags))
	}
}

func (f Fanout) Timing(name string, value time.Duration, tags map[string]string) {
	for _, s := range f {
		s.Timing(name, value, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
