// Package httpx provides the admin HTTP API of the forecast worker.
package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/service"
)

const (
	defaultJobsLimit = 50
	maxJobsLimit     = 500
)

// JobHandlers provides HTTP handlers for forecast job operations.
type JobHandlers struct {
	Svc    *service.JobService
	Logger *slog.Logger
}

// CreateJob enqueues a forecast job.
func (h *JobHandlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req model.CreateForecastJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Create(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+job.ID)
	WriteJSON(w, http.StatusCreated, job)
}

// ListJobs returns jobs newest first, filtered by the optional status and job_type query params.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultJobsLimit, maxJobsLimit)
	opts := model.ListJobsOptions{Limit: limit, Offset: offset}

	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status := model.JobStatus(strings.ToLower(v))
		opts.Status = &status
	}
	if v := strings.TrimSpace(q.Get("job_type")); v != "" {
		jt := model.JobType(strings.ToLower(v))
		opts.Type = &jt
	}

	jobs, err := h.Svc.List(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if jobs == nil {
		jobs = []*model.ForecastJob{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "limit": limit, "offset": offset})
}

// Stats returns job counts per status.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Svc.Stats(r.Context())
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// GetJob returns a single job.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	job, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// Results returns the persisted results of a job.
func (h *JobHandlers) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := jobIDParam(w, r)
	if !ok {
		return
	}
	results, err := h.Svc.Results(r.Context(), id)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if results == nil {
		results = []*model.ForecastResult{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job_id": id, "results": results})
}

func jobIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		WriteServiceError(w, r, nil, apperrors.ValidationField("id", "job id must be a UUID"))
		return "", false
	}
	return id, true
}
