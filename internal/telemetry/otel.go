// Package telemetry bootstraps OpenTelemetry for a miniservice: the W3C
// propagators used to read and forward trace context, and an optional OTLP
// trace exporter.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/MKhiriev/go-miniservice/internal/config"
)

const exporterDialTimeout = 10 * time.Second

// ShutdownFunc flushes buffered spans and releases the exporter.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Propagator returns the composite TraceContext + Baggage propagator.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
}

// Setup installs the global propagator and, when cfg.OTLPEndpoint is set, a
// batching tracer provider exporting over OTLP/gRPC. The returned func must
// be called on shutdown.
func Setup(ctx context.Context, cfg config.Telemetry, app config.App) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(Propagator())

	if cfg.OTLPEndpoint == "" {
		return noopShutdown, nil
	}

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithDialOption(
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		))
	} else {
		clientOpts = append(clientOpts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	dialCtx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	exporter, err := otlptrace.New(dialCtx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := Resource(ctx, cfg, app)
	if err != nil {
		return nil, err
	}

	provider := NewTracerProvider(res, exporter)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Resource describes the service in exported spans.
func Resource(ctx context.Context, cfg config.Telemetry, app config.App) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = app.Name
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if app.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(app.Version))
	}
	if app.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", app.Environment))
	}

	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(attrs...),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}

// NewTracerProvider batches spans into exporter.
func NewTracerProvider(res *resource.Resource, exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithMaxExportBatchSize(100), sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
}
