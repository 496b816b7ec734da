package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"mibelpanel/internal/config"
)

// TracingConfig holds OpenTelemetry tracing configuration
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
	SampleRatio    float64
	// Output receives the stdout exporter's spans; nil means os.Stdout.
	Output io.Writer
}

// DefaultTracingConfig returns the tracing configuration of the CLI tools
func DefaultTracingConfig(service string) TracingConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	return TracingConfig{
		ServiceName:    service,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		SampleRatio:    1.0,
	}
}

// Tracing holds the tracer provider of one process
type Tracing struct {
	Provider trace.TracerProvider
	sdk      *sdktrace.TracerProvider
	logger   *slog.Logger
}

// InitializeTracing installs a global tracer provider. Disabled tracing
// installs a no-op provider so instrumented code needs no checks.
func InitializeTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (*Tracing, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		provider := noop.NewTracerProvider()
		otel.SetTracerProvider(provider)
		return &Tracing{Provider: provider, logger: logger}, nil
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", GenerateTraceID()),
	)

	// Spans are exported synchronously: the tools are short-lived batch runs.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "Tracing initialized",
		slog.String("service", cfg.ServiceName),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return &Tracing{Provider: tp, sdk: tp, logger: logger}, nil
}

// Shutdown flushes and stops the provider
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.sdk == nil {
		return nil
	}
	if err := t.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}
	t.logger.InfoContext(ctx, "Tracing shutdown complete")
	return nil
}
