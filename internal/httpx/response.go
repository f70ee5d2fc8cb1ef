// Package httpx holds the JSON response helpers shared by middleware and
// handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gamevault/api-gateway/internal/services"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Message writes {"message": msg}.
func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}

// Error writes err with the status of its kind. Internal errors are logged
// in full and shown to the client as a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = &services.Error{Kind: services.KindInternal, Err: err}
	}

	msg := svcErr.Message
	if svcErr.Kind == services.KindInternal {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		msg = "Internal server error"
	}
	JSON(w, svcErr.Kind.Status(), ErrorBody{Error: ErrorDetail{Code: svcErr.Kind.String(), Message: msg}})
}

// BadRequest writes a validation error.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Code: services.KindValidation.String(), Message: msg}})
}

// Decode reads a JSON body into v. Unknown fields are ignored.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &services.Error{Kind: services.KindValidation, Message: "Invalid request body", Err: err}
	}
	return nil
}
