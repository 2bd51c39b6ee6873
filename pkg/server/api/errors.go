package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/server/jobs"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/tasks"
)

// ErrorResponse represents a standard JSON error response.
//
// Example:
//
//	{
//	  "error": "Bad Request",
//	  "code": "INVALID_PARAMETER",
//	  "message": "parameter \"target\": missing required parameter"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationError is a lightweight error used for 400 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return "validation failed"
	}
	if e.Reason == "" {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + e.Reason
}

// classify maps err onto an HTTP status, error type and code.
func classify(err error) (int, string, string) {
	var (
		paramErr    *tasks.ParamError
		validErr    *ValidationError
		upstreamErr *shodan.APIError
	)
	switch {
	case results.IsNotFound(err):
		return http.StatusNotFound, "Not Found", "NOT_FOUND"
	case results.IsInvalidInput(err):
		return http.StatusBadRequest, "Bad Request", "INVALID_INPUT"
	case errors.As(err, &paramErr):
		return http.StatusBadRequest, "Bad Request", "INVALID_PARAMETER"
	case errors.Is(err, tasks.ErrUnknownTask):
		return http.StatusBadRequest, "Bad Request", "UNKNOWN_TASK"
	case errors.As(err, &validErr):
		return http.StatusBadRequest, "Bad Request", "VALIDATION_FAILED"
	case errors.Is(err, shodan.ErrMissingKey):
		return http.StatusBadRequest, "Bad Request", "MISSING_API_KEY"
	case errors.Is(err, nvd.ErrNotFound):
		return http.StatusNotFound, "Not Found", "NOT_FOUND"
	case errors.Is(err, jobs.ErrQueueFull), errors.Is(err, jobs.ErrNotRunning):
		return http.StatusServiceUnavailable, "Service Unavailable", "JOBS_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Gateway Timeout", "TIMEOUT"
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway, "Bad Gateway", "UPSTREAM_ERROR"
	default:
		return http.StatusInternalServerError, "Internal Server Error", "INTERNAL"
	}
}

// HTTPStatus returns the status WriteError would use for err.
func HTTPStatus(err error) int {
	status, _, _ := classify(err)
	return status
}

// WriteError writes a standard JSON error response, deriving the status
// from the error type, and logs it.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode, errorType, code := classify(err)

	logEvent := log.Warn()
	if statusCode >= http.StatusInternalServerError {
		logEvent = log.Error()
	}
	logEvent.
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Str("error_code", code).
		Err(err).
		Msg("Request failed")

	WriteJSONError(w, statusCode, errorType, code, err.Error())
}

// WriteJSONError writes a custom JSON error response with a specific status code.
//
// Example:
//
//	WriteJSONError(w, http.StatusBadRequest, "Bad Request", "MISSING_PARAM", "cve is required")
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, code, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorType, Code: code, Message: message})
}

// WriteJSON writes a JSON response to the client. HTML characters are not
// escaped so that banners and descriptions round-trip verbatim.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}
