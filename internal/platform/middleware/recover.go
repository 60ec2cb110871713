package middleware

import (
	"log/slog"
	"net/http"

	"admitdesk/internal/audit"
	"admitdesk/internal/platform/httputil"
	"admitdesk/pkg/apperrors"
)

// Recover converts a handler panic into a 500 response and leaves an
// EXCEPTION entry in the journal. The entry is best effort; a broken
// journal must not mask the original failure.
func Recover(auditor *audit.Writer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "handler panicked", "path", r.URL.Path, "panic", rec)

				if auditor != nil {
					auditor.WriteBestEffort(ctx, audit.Record{
						Action: audit.ActionException,
						Status: audit.StatusFailure,
						New: map[string]any{
							"path":       r.URL.Path,
							"error_kind": "panic",
						},
					})
				}
				httputil.WriteError(w, apperrors.New(apperrors.CodeInternal, "internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
