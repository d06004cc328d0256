// Package requestcontext carries per-request values through context without
// leaking transport types into domain packages.
package requestcontext

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	principalKey
)

// WithRequestID stores a correlation id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the correlation id, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithPrincipal stores the authenticated caller identity in the context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Principal extracts the authenticated caller identity, or "" when absent.
func Principal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey).(string)
	return p
}
