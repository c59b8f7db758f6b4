// Package response provides the standardized JSON envelope shared by the
// development server handlers and the client-side decoder.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jamqueueapp/jamqueue-client/internal/errors"
)

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Success bool            `json:"success"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	payload, err := json.Marshal(data)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
		return
	}

	envelope := Envelope{
		Success: status < 400,
		Data:    payload,
	}

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		if logger != nil {
			logger.Error("Failed to write JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Created writes a created response (201 Created).
func Created(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusCreated, data, logger)
}

// NoContent writes a no content response (204 No Content).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	envelope := Envelope{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		if logger != nil {
			logger.Error("Failed to write error response", "error", err)
		}
	}
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusBadRequest, message, logger)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, message, logger)
}

// Conflict writes a 409 Conflict response.
func Conflict(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusConflict, message, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, message, logger)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusInternalServerError, message, logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain errors are mapped to their HTTP codes, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		Error(w, statusFor(domainErr.Code), domainErr.Message, logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error", logger)
}

// statusFor maps a domain error code to an HTTP status code.
func statusFor(code errors.Code) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
