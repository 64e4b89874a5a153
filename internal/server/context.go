package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"resume-hub/auth-service/internal/auth/gate"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the authenticated identity.
// The auth middleware sets it; handlers read it via GetIdentity.
func WithIdentity(ctx context.Context, id *gate.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the authenticated identity from context and true if set.
func GetIdentity(ctx context.Context) (*gate.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*gate.Identity)
	return id, ok
}

// ClientIP returns the client IP from proxy headers (X-Forwarded-For, X-Real-IP)
// or the connection's remote address, or "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// first hop is the original client
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
