package testutil

import (
	"encoding/json"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateForecastJobRequest values in tests.
type JobRequestBuilder struct {
	req     model.CreateForecastJobRequest
	payload model.JobPayload
}

// NewJobRequest starts a daily job for 2025-01-01..2025-01-03 requested by "test".
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: model.CreateForecastJobRequest{
			Type:       model.JobTypeDaily,
			TargetFrom: model.MustParseDate("2025-01-01"),
			TargetTo:   model.MustParseDate("2025-01-03"),
			Actor:      "test",
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithRange sets the inclusive target range from YYYY-MM-DD strings.
func (b *JobRequestBuilder) WithRange(from, to string) *JobRequestBuilder {
	b.req.TargetFrom = model.MustParseDate(from)
	b.req.TargetTo = model.MustParseDate(to)
	return b
}

// WithActor sets who requested the job.
func (b *JobRequestBuilder) WithActor(actor string) *JobRequestBuilder {
	b.req.Actor = actor
	return b
}

// WithHistoryDays overrides the feature history window.
func (b *JobRequestBuilder) WithHistoryDays(days int) *JobRequestBuilder {
	b.payload.HistoryDays = &days
	return b
}

// WithUnit overrides the result unit.
func (b *JobRequestBuilder) WithUnit(unit string) *JobRequestBuilder {
	b.payload.Unit = unit
	return b
}

// Build returns the request. The payload is only set when an override was given.
func (b *JobRequestBuilder) Build() *model.CreateForecastJobRequest {
	req := b.req
	if b.payload.HistoryDays != nil || b.payload.Unit != "" {
		raw, err := json.Marshal(b.payload)
		if err != nil {
			//nolint:forbidigo // test helper; JobPayload always marshals
			panic(err)
		}
		req.Payload = raw
	}
	return &req
}

// DailyJobRequest is shorthand for a daily job over from..to.
func DailyJobRequest(from, to string) *model.CreateForecastJobRequest {
	return NewJobRequest().WithRange(from, to).Build()
}
