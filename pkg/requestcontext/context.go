// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values once at the boundary; services read them
// without importing net/http. Actor attribution for audit entries flows
// through here explicitly rather than through ambient session state, so
// it is trivially injectable in tests:
//
//	ctx = requestcontext.WithActor(ctx, requestcontext.Actor{ID: "7", Name: "Nguyen Van A"})
//	ctx = requestcontext.WithCorrelationID(ctx, "c9f1...")
package requestcontext

import (
	"context"
	"time"
)

// Actor identifies the authenticated session performing an operation.
// Zero value means unauthenticated (both IDs absent on audit entries).
type Actor struct {
	ID    string
	Name  string
	Roles []string
}

// IsZero reports whether no actor has been attached.
func (a Actor) IsZero() bool { return a.ID == "" && a.Name == "" }

// HasRole reports whether the actor carries the given role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type (
	actorKey         struct{}
	clientIPKey      struct{}
	requestPathKey   struct{}
	correlationIDKey struct{}
	requestTimeKey   struct{}
	userAgentKey     struct{}
)

// ActorFrom retrieves the authenticated actor from the context.
func ActorFrom(ctx context.Context) Actor {
	if actor, ok := ctx.Value(actorKey{}).(Actor); ok {
		return actor
	}
	return Actor{}
}

// WithActor injects the authenticated actor into the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP address into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// RequestPath retrieves the request URL path from the context.
func RequestPath(ctx context.Context) string {
	if path, ok := ctx.Value(requestPathKey{}).(string); ok {
		return path
	}
	return ""
}

// WithRequestPath injects the request URL path into the context.
func WithRequestPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, requestPathKey{}, path)
}

// CorrelationID retrieves the correlation ID linking all audit entries
// produced by one originating request.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation ID into the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// UserAgent retrieves the client User-Agent header from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithUserAgent injects the client User-Agent header into the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, ua)
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Useful for service
// unit tests that don't run the full HTTP middleware chain.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
