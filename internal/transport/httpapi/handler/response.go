package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/earnx/earnx/internal/shared/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// respondAppError maps a classified error to its HTTP status. The message is
// the user-facing text; unclassified errors become a generic 500.
func respondAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondJSON(w, ErrorResponse{Error: "internal server error", Code: apperrors.ErrCodeInternal}, http.StatusInternalServerError)
		return
	}
	respondJSON(w, ErrorResponse{Error: appErr.Message, Code: appErr.Code}, statusFor(appErr.Code))
}

func statusFor(code string) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeUserRejected:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeInsufficientBalance,
		apperrors.ErrCodeInsufficientAllowance,
		apperrors.ErrCodePreconditionFailed,
		apperrors.ErrCodeContractRevert:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeTransportFailure, apperrors.ErrCodeApprovalVerificationFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
