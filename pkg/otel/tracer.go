// Package otel wires OpenTelemetry tracing for admin calls: a tracer provider
// with a ratio sampler and W3C trace context propagation on outgoing requests.
package otel

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

const (
	// EnvTraceSampleRatio overrides the default sampling ratio (0.0 - 1.0)
	EnvTraceSampleRatio = "HFADMIN_TRACE_SAMPLE_RATIO"

	// DefaultTraceSampleRatio samples 10% of root spans
	DefaultTraceSampleRatio = 0.1
)

// GetTraceSampleRatio reads the sample ratio from the environment.
// Invalid or out-of-range values are logged and replaced by the default.
func GetTraceSampleRatio(log logger.Logger, ctx context.Context) float64 {
	raw := os.Getenv(EnvTraceSampleRatio)
	if raw == "" {
		return DefaultTraceSampleRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		log.Warnf(ctx, "Invalid %s=%q, using default %.2f", EnvTraceSampleRatio, raw, DefaultTraceSampleRatio)
		return DefaultTraceSampleRatio
	}
	return ratio
}

// InitTracer installs a global TracerProvider and the W3C propagators.
// Callers must Shutdown the returned provider.
func InitTracer(serviceName, serviceVersion string, sampleRatio float64) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// InjectHTTPHeaders writes the trace context of ctx into h (traceparent, baggage).
func InjectHTTPHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}
