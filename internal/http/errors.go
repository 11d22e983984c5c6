package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/wastetrack/forecast-worker/internal/errors"
)

// statusForCode maps application error codes onto HTTP statuses.
//
//nolint:gochecknoglobals // static read-only lookup
var statusForCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeValidation: http.StatusBadRequest,
	apperrors.ErrCodeNotFound:   http.StatusNotFound,
	apperrors.ErrCodeConflict:   http.StatusConflict,
	apperrors.ErrCodeForeignKey: http.StatusConflict,
	apperrors.ErrCodeTimeout:    http.StatusGatewayTimeout,
	apperrors.ErrCodeCanceled:   499,
	apperrors.ErrCodeInternal:   http.StatusInternalServerError,
}

// WriteServiceError renders a service error. AppErrors keep their code and message;
// anything else is logged and reported as a generic 500.
func WriteServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			code = apperrors.ErrCodeTimeout
		case errors.Is(err, context.Canceled):
			code = apperrors.ErrCodeCanceled
		}
	}

	status, ok := statusForCode[code]
	if !ok {
		if logger != nil {
			logger.ErrorContext(r.Context(), "request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err,
			)
		}
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New("internal error"),
		})
		return
	}

	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(w, ErrorParams{Code: status, ErrCode: string(code), Err: err, Field: apperrors.GetField(err)})
}
