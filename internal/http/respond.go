package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/domain"
	"go.uber.org/zap"
)

// Error codes carried in ErrorResponse.Code. The Order API client maps them
// back to domain errors.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeValidation         = "validation_failed"
	CodeUnauthorized       = "unauthorized"
	CodePaymentDeclined    = "payment_declined"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeTransitionConflict = "transition_conflict"
	CodeTimeout            = "timeout"
	CodeInternal           = "internal_error"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusPaymentRequired, CodePaymentDeclined
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrTransitionConflict):
		return http.StatusConflict, CodeTransitionConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func handleServiceError(w http.ResponseWriter, l *zap.Logger, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", zap.Error(err))
		respondError(w, status, code, "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
