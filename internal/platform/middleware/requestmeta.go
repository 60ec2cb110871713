// Package middleware holds the HTTP middleware chain shared by all
// routes: request metadata, metrics instrumentation, and role guards.
package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"admitdesk/pkg/requestcontext"
)

// RequestMeta stamps every request with a correlation ID, client IP,
// request path, and request time. The correlation ID is taken from the
// X-Correlation-ID header when the caller supplies one, so audit entries
// from a multi-hop flow link together; otherwise a fresh UUID is issued.
// The ID is echoed back on the response.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		ctx := r.Context()
		ctx = requestcontext.WithCorrelationID(ctx, correlationID)
		ctx = requestcontext.WithClientIP(ctx, clientIP(r))
		ctx = requestcontext.WithRequestPath(ctx, r.URL.Path)
		ctx = requestcontext.WithUserAgent(ctx, r.UserAgent())
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		w.Header().Set("X-Correlation-ID", correlationID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
