package observability

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name for hashing spans.
const TracerName = "github.com/quantarax/filehash"

// EndpointEnv names the fallback variable for the Jaeger collector endpoint.
const EndpointEnv = "OTEL_EXPORTER_JAEGER_ENDPOINT"

// InitTracing initializes OpenTelemetry tracing with Jaeger exporter.
// endpoint is the collector URL (e.g. http://localhost:14268/api/traces); when
// empty, OTEL_EXPORTER_JAEGER_ENDPOINT is used, and when both are empty tracing
// stays a no-op. Every hashed file produces one span, "hashing.DigestFile" or
// "hashing.WalkFile" for manifests, carrying file.path, hash.algorithm,
// hash.chunk_size, hash.bytes and hash.chunks.
func InitTracing(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		endpoint = os.Getenv(EndpointEnv)
	}
	if endpoint == "" {
		// no-op
		return func(ctx context.Context) error { return nil }, nil
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter for %s: %w", endpoint, err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, err
	}
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exp, trace.WithMaxExportBatchSize(512), trace.WithBatchTimeout(5*time.Second)),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the hashing tracer from the global provider.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(TracerName)
}
