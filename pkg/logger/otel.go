package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// WithOTelTraceContext copies the active span's trace and span IDs into the
// log fields so log entries can be joined with traces.
// Returns ctx unchanged when there is no valid span.
func WithOTelTraceContext(ctx context.Context) context.Context {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ctx
	}
	return WithLogFields(ctx, LogFields{
		string(TraceIDKey): spanCtx.TraceID().String(),
		string(SpanIDKey):  spanCtx.SpanID().String(),
	})
}
