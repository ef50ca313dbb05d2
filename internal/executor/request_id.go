package executor

import "context"

type requestIDKey struct{}

// RequestIDHeader carries the call's request ID on HTTP attempts
const RequestIDHeader = "X-Request-Id"

// WithRequestID returns a context carrying the idempotency request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID set by Execute, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}
