package dataprocessing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mibelpanel/pkg/contracts/domain"
)

const (
	TracerName = "mibelpanel.build"
)

// BuildTracer wraps the spans of one panel build: a root span per build and
// a child span per stage.
type BuildTracer struct {
	tracer trace.Tracer
}

// NewBuildTracer creates a tracer on provider; nil uses the global provider
func NewBuildTracer(provider trace.TracerProvider) *BuildTracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &BuildTracer{tracer: provider.Tracer(TracerName)}
}

// TraceBuild starts the root span of a build
func (bt *BuildTracer) TraceBuild(ctx context.Context, req domain.BuildRequest) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "panel.build",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("build.start", req.Start.UTC().Format(time.RFC3339)),
			attribute.String("build.end", req.End.UTC().Format(time.RFC3339)),
			attribute.StringSlice("build.countries", req.Countries),
			attribute.String("build.policy", req.Policy.Name),
		),
	)
}

// TraceStage starts the span of one stage
func (bt *BuildTracer) TraceStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return bt.tracer.Start(ctx, "panel.stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append([]attribute.KeyValue{attribute.String("stage", stage)}, attrs...)...),
	)
}

// RecordStageCompletion closes a stage span with its item count and outcome
func (bt *BuildTracer) RecordStageCompletion(span trace.Span, started time.Time, items int, err error) {
	span.SetAttributes(
		attribute.Float64("stage.duration_seconds", time.Since(started).Seconds()),
		attribute.Int("stage.items", items),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// RecordBuildCompletion closes the root span
func (bt *BuildTracer) RecordBuildCompletion(span trace.Span, report *domain.QualityReport, err error) {
	if report != nil {
		span.SetAttributes(
			attribute.String("build.id", report.BuildID),
			attribute.Int("build.flagged", len(report.Flags)),
		)
		for _, reason := range domain.ReasonCodes {
			n := report.Events[reason]
			if n == 0 {
				continue
			}
			span.AddEvent("quality.events", trace.WithAttributes(
				attribute.String("reason", string(reason)),
				attribute.Int("count", n),
			))
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "panel built")
	}
	span.End()
}
