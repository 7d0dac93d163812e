package http

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the standard API error body. Error is a machine-readable
// kind from the service's error taxonomy; Message is safe to show a user.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}

	// Encoding errors are not exposed to the client
	_ = json.NewEncoder(w).Encode(resp)
}

// Taxonomy-aligned writers. Handlers pick exactly one per failure:
// validation -> 400, auth -> 401, eligibility -> 403, rate limit -> 429,
// everything unexpected -> 500 with a generic message.

func WriteValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "validation_error", message)
}

func WriteAuthError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "auth_error", message)
}

func WriteEligibilityError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "eligibility_error", message)
}

func WriteRateLimitError(w http.ResponseWriter) {
	WriteError(w, http.StatusTooManyRequests, "rate_limit_error", "Too many attempts")
}

func WriteServerError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
}

// WriteJSON writes any payload as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
