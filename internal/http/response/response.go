// Package response writes the versioned JSON envelope for handlers that run
// outside huma, such as middleware rejecting a request early.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/slatehq/slate-server/internal/errors"
)

// Version is the envelope version sent as "v" on every response.
const Version = 1

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(data any) *Envelope {
	return &Envelope{Version: Version, Success: true, Data: data}
}

// Failure builds an error envelope.
func Failure(code domainerrors.Code, message string, details any) *Envelope {
	return &Envelope{Version: Version, Success: false, Error: message, Code: string(code), Details: details}
}

// JSON writes an envelope with the given status code.
func JSON(w http.ResponseWriter, status int, env *Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// Error writes an error envelope whose status follows code.
func Error(w http.ResponseWriter, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, code.HTTPStatus(), Failure(code, message, nil), logger)
}

// Unauthorized writes a 401 envelope.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.CodeUnauthorized, message, logger)
}

// TooManyRequests writes a 429 envelope.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, domainerrors.CodeRateLimited, message, logger)
}

// HandleError writes a coded domain error, or a 500 for anything else.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		JSON(w, domainErr.HTTPStatus(), Failure(domainErr.Code, domainErr.Message, domainErr.Details), logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	Error(w, domainerrors.CodeInternal, "internal server error", logger)
}
