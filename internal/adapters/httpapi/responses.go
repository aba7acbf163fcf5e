package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain failures onto HTTP responses. DomainError carries
// its own status code; sentinels get a stable mapping.
func writeError(w http.ResponseWriter, logger infrastructure.Logger, err error) {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		status := domainErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}

		writeJSON(w, status, errorResponse{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		})

		return
	}

	switch {
	case errors.Is(err, domain.ErrConfirmationRequired):
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:    "CONFIRMATION_REQUIRED",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrMessageNotFound),
		errors.Is(err, domain.ErrQueueNotFound),
		errors.Is(err, domain.ErrConnectionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	default:
		logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		})
	}
}
