package httpx

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/wastetrack/forecast-worker/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs   *service.JobService
	Ratios *service.DayTypeRatioService // Optional: ratio routes are skipped when nil

	// Optional: /metrics is only mounted when set.
	Metrics http.Handler
	// Optional: /readyz pings it when set.
	DB Pinger

	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter creates the admin API router with its middleware chain:
// Recover -> RequestID -> Logging -> MaxBody -> routes.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(Recover(logger), RequestID(), Logging(logger), MaxBody(services.MaxBodyBytes))

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(services.DB))
	if services.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", services.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		if services.Jobs != nil {
			registerJobRoutes(r, &JobHandlers{Svc: services.Jobs, Logger: logger})
		}
		if services.Ratios != nil {
			registerRatioRoutes(r, &RatioHandlers{Svc: services.Ratios, Logger: logger})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "route not found"})
	})
	return r
}

func registerJobRoutes(r chi.Router, h *JobHandlers) {
	r.Post("/jobs", h.CreateJob)
	r.Get("/jobs", h.ListJobs)
	r.Get("/jobs/stats", h.Stats)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/jobs/{id}/results", h.Results)
}

func registerRatioRoutes(r chi.Router, h *RatioHandlers) {
	r.Post("/day-type-ratios/recompute", h.Recompute)
	r.Get("/day-type-ratios", h.List)
}
