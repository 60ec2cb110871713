package middleware

import (
	"log/slog"
	"net/http"

	"admitdesk/internal/platform/httputil"
	"admitdesk/pkg/apperrors"
	"admitdesk/pkg/requestcontext"
)

// RequireRoles rejects requests whose actor carries none of the allowed
// roles. An absent actor yields 401, a role mismatch 403.
func RequireRoles(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			actor := requestcontext.ActorFrom(ctx)

			if actor.IsZero() {
				logger.WarnContext(ctx, "unauthenticated access rejected",
					"path", r.URL.Path,
					"correlation_id", requestcontext.CorrelationID(ctx),
				)
				httputil.WriteError(w, apperrors.New(apperrors.CodeUnauthorized, "authentication required"))
				return
			}

			for _, role := range roles {
				if actor.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.WarnContext(ctx, "forbidden access rejected",
				"path", r.URL.Path,
				"actor_id", actor.ID,
				"correlation_id", requestcontext.CorrelationID(ctx),
			)
			httputil.WriteError(w, apperrors.New(apperrors.CodeForbidden, "insufficient role"))
		})
	}
}
