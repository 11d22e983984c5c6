package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
	"github.com/wastetrack/forecast-worker/internal/service"
)

// RatioHandlers exposes day-type ratio recomputation and lookup.
type RatioHandlers struct {
	Svc    *service.DayTypeRatioService
	Logger *slog.Logger
}

// Recompute derives ratios for an epoch. With dry_run set nothing is stored.
func (h *RatioHandlers) Recompute(w http.ResponseWriter, r *http.Request) {
	var req service.RecomputeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	res, err := h.Svc.Recompute(r.Context(), req)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// List returns the stored ratios of the epoch named by effective_from.
func (h *RatioHandlers) List(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("effective_from"))
	if raw == "" {
		WriteServiceError(w, r, h.Logger, apperrors.ValidationField("effective_from", "effective_from is required"))
		return
	}
	effectiveFrom, err := model.ParseDate(raw)
	if err != nil {
		WriteServiceError(w, r, h.Logger,
			apperrors.Wrap(err, apperrors.ErrCodeValidation, "effective_from must be YYYY-MM-DD"))
		return
	}

	ratios, err := h.Svc.List(r.Context(), effectiveFrom)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	if ratios == nil {
		ratios = []model.DayTypeRatio{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"effective_from": effectiveFrom, "ratios": ratios})
}
