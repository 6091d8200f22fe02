package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message, never internal detail
	Details string `json:"details,omitempty"` // Optional additional context
}

// Error codes returned by the security middleware.
const (
	CodeBadRequest      = "bad_request"
	CodeSuspiciousInput = "suspicious_input"
	CodeCSRFInvalid     = "csrf_invalid"
	CodeAccountLocked   = "account_locked"
	CodeRateLimited     = "rate_limit_exceeded"
	CodeUnauthorized    = "unauthorized"
	CodeInternal        = "internal_error"
)

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, message)
}

// WriteSuspiciousInput rejects a request that tripped the injection guard. The
// message is fixed so field names and patterns stay server-side.
func WriteSuspiciousInput(w http.ResponseWriter) {
	WriteError(w, http.StatusBadRequest, CodeSuspiciousInput, "Request contains invalid characters")
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func WriteCSRFInvalid(w http.ResponseWriter) {
	WriteError(w, http.StatusForbidden, CodeCSRFInvalid, "Invalid or missing CSRF token")
}

func WriteAccountLocked(w http.ResponseWriter) {
	WriteError(w, http.StatusTooManyRequests, CodeAccountLocked, "Too many failed attempts, try again later")
}

func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, message)
}
