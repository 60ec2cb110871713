// Package httputil holds JSON response and request-decoding helpers
// shared by all handlers.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"admitdesk/pkg/apperrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// WriteJSON serializes v with the given status. Encoding failures are
// past the point of recovery; the status line has already been sent.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a coded error onto an HTTP response. Internal errors
// omit the description so store failures never leak detail to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	if code != apperrors.CodeInternal {
		if msg := apperrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}
	WriteJSON(w, StatusOf(code), body)
}

// StatusOf maps an error code to its HTTP status.
func StatusOf(code apperrors.Code) int {
	switch code {
	case apperrors.CodeBadRequest, apperrors.CodeUnsupportedTarget:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// DecodeAndValidate decodes the request body into T and runs struct
// validation. On failure it writes the error response and returns
// ok=false; the handler just returns.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "error", err, "path", r.URL.Path)
		WriteError(w, apperrors.New(apperrors.CodeBadRequest, "invalid JSON body"))
		return req, false
	}
	if err := validate.Struct(req); err != nil {
		logger.WarnContext(ctx, "request validation failed", "error", err, "path", r.URL.Path)
		WriteError(w, apperrors.Wrap(err, apperrors.CodeBadRequest, "invalid request payload"))
		return req, false
	}
	return req, true
}
