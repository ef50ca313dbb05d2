package logger

import (
	"context"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// Correlation fields (distributed tracing)
	TraceIDKey   contextKey = "trace_id"
	SpanIDKey    contextKey = "span_id"
	RequestIDKey contextKey = "request_id"

	// Call fields
	MethodKey        contextKey = "method"
	AttemptKey       contextKey = "attempt"
	OperationNameKey contextKey = "operation"

	// Resource fields
	ProjectKey  contextKey = "project"
	BucketKey   contextKey = "bucket"
	ObjectKey   contextKey = "object"
	InstanceKey contextKey = "instance"
	ClusterKey  contextKey = "cluster"

	// Dynamic log fields
	LogFieldsKey contextKey = "log_fields"
)

// LogFields holds dynamic key-value pairs for logging
type LogFields map[string]interface{}

// -----------------------------------------------------------------------------
// Context Setters
// -----------------------------------------------------------------------------

// WithLogField adds a single dynamic log field to the context
// These fields will be extracted and included in all log entries
func WithLogField(ctx context.Context, key string, value interface{}) context.Context {
	fields := GetLogFields(ctx)
	if fields == nil {
		fields = make(LogFields)
	}
	fields[key] = value
	return context.WithValue(ctx, LogFieldsKey, fields)
}

// WithLogFields adds multiple dynamic log fields to the context
// These fields will be extracted and included in all log entries
func WithLogFields(ctx context.Context, newFields LogFields) context.Context {
	fields := GetLogFields(ctx)
	if fields == nil {
		fields = make(LogFields)
	}
	for k, v := range newFields {
		fields[k] = v
	}
	return context.WithValue(ctx, LogFieldsKey, fields)
}

// WithTraceID returns a context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return WithLogField(ctx, string(TraceIDKey), traceID)
}

// WithSpanID returns a context with the span ID set
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return WithLogField(ctx, string(SpanIDKey), spanID)
}

// WithRequestID returns a context with the idempotency request ID set
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithLogField(ctx, string(RequestIDKey), requestID)
}

// WithMethod returns a context with the logical call name set (e.g. "storage.PatchObject")
func WithMethod(ctx context.Context, method string) context.Context {
	return WithLogField(ctx, string(MethodKey), method)
}

// WithAttempt returns a context with the current attempt number set
func WithAttempt(ctx context.Context, attempt int) context.Context {
	return WithLogField(ctx, string(AttemptKey), attempt)
}

// WithOperationName returns a context with the long-running operation name set
func WithOperationName(ctx context.Context, name string) context.Context {
	return WithLogField(ctx, string(OperationNameKey), name)
}

// WithProject returns a context with the project set
func WithProject(ctx context.Context, project string) context.Context {
	return WithLogField(ctx, string(ProjectKey), project)
}

// WithBucket returns a context with the bucket name set
func WithBucket(ctx context.Context, bucket string) context.Context {
	return WithLogField(ctx, string(BucketKey), bucket)
}

// WithObject returns a context with the bucket and object names set
func WithObject(ctx context.Context, bucket, object string) context.Context {
	return WithLogFields(ctx, LogFields{
		string(BucketKey): bucket,
		string(ObjectKey): object,
	})
}

// WithInstance returns a context with the instance ID set
func WithInstance(ctx context.Context, instanceID string) context.Context {
	return WithLogField(ctx, string(InstanceKey), instanceID)
}

// WithCluster returns a context with the cluster ID set
func WithCluster(ctx context.Context, clusterID string) context.Context {
	return WithLogField(ctx, string(ClusterKey), clusterID)
}

// -----------------------------------------------------------------------------
// Context Getters
// -----------------------------------------------------------------------------

// GetLogFields returns the dynamic log fields from the context, or nil if not set
func GetLogFields(ctx context.Context) LogFields {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(LogFieldsKey).(LogFields); ok {
		// Return a copy to avoid mutation
		fields := make(LogFields, len(v))
		for k, val := range v {
			fields[k] = val
		}
		return fields
	}
	return nil
}
