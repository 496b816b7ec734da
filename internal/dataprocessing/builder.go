package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/observability"
	"mibelpanel/internal/store"
	"mibelpanel/pkg/contracts/domain"
)

// Builder runs the full pipeline: read, normalize, assemble, enrich and
// diagnose. A Builder holds only immutable configuration and may serve
// several builds.
type Builder struct {
	reader     store.Reader
	sources    []SourceSpec
	grouping   LocationGrouping
	opts       ProcessingOptions
	logger     *slog.Logger
	metrics    *observability.BuildMetrics
	tracer     *BuildTracer
	validate   *validator.Validate
	newBuildID func() string
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithMetrics records every build on m
func WithMetrics(m *observability.BuildMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithTracerProvider traces builds on provider instead of the global one
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(b *Builder) { b.tracer = NewBuildTracer(provider) }
}

// WithOptions replaces the processing options
func WithOptions(opts ProcessingOptions) Option {
	return func(b *Builder) { b.opts = opts }
}

// WithGrouping sets the location grouping used by location sources
func WithGrouping(g LocationGrouping) Option {
	return func(b *Builder) { b.grouping = g }
}

// WithBuildID overrides how build identifiers are generated
func WithBuildID(fn func() string) Option {
	return func(b *Builder) { b.newBuildID = fn }
}

// NewBuilder creates a builder reading sources through reader
func NewBuilder(reader store.Reader, sources []SourceSpec, opts ...Option) *Builder {
	b := &Builder{
		reader:     reader,
		sources:    append([]SourceSpec(nil), sources...),
		grouping:   DefaultGrouping(),
		opts:       DefaultOptions(),
		logger:     slog.Default(),
		validate:   validator.New(),
		newBuildID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tracer == nil {
		b.tracer = NewBuildTracer(nil)
	}
	b.logger = b.logger.With("component", "panel_builder")
	return b
}

// BuildPanel builds the hourly panel for req and its quality report.
// Errors are returned only for an invalid request or range, an unreadable
// source, or cancellation; data problems end up in the report.
func (b *Builder) BuildPanel(ctx context.Context, req domain.BuildRequest) (panel *domain.Panel, report *domain.QualityReport, err error) {
	started := time.Now()
	ctx, span := b.tracer.TraceBuild(ctx, req)
	defer func() {
		b.tracer.RecordBuildCompletion(span, report, err)
		b.metrics.RecordBuild(err, time.Since(started), time.Now())
	}()

	if err = b.validate.Struct(req); err != nil {
		return nil, nil, apperrors.NewValidationError("invalid build request", err)
	}
	timeline, err := BuildTimeline(req.Start, req.End)
	if err != nil {
		return nil, nil, err
	}

	b.logger.InfoContext(ctx, "Building panel",
		slog.String("start", timeline.Start().Format(time.RFC3339)),
		slog.String("end", timeline.End().Format(time.RFC3339)),
		slog.Int("hours", timeline.Len()),
		slog.Any("countries", req.Countries),
		slog.Int("sources", len(b.sources)))

	series, sourceStats, err := b.collect(ctx, timeline, req.Countries)
	if err != nil {
		return nil, nil, err
	}

	stageStart := time.Now()
	assembleCtx, stageSpan := b.tracer.TraceStage(ctx, "assemble", attribute.Int("series", len(series)))
	panel, assembly, err := NewAssembler(b.opts.Workers, b.logger).Assemble(assembleCtx, timeline, req.Countries, series)
	b.tracer.RecordStageCompletion(stageSpan, stageStart, len(series), err)
	if err != nil {
		return nil, nil, err
	}

	EnrichFeatures(panel, req.Policy)

	report = Diagnose(panel, assembly, sourceStats, b.opts.Quality)
	report.BuildID = b.newBuildID()
	LogReport(b.logger, report)
	b.metrics.RecordPanel(panel, report)

	b.logger.InfoContext(ctx, "Panel built",
		slog.String("build_id", report.BuildID),
		slog.Int("rows", len(panel.Rows)),
		slog.Int("columns", len(panel.Columns)),
		slog.Duration("elapsed", time.Since(started)))
	return panel, report, nil
}

// collect reads and normalizes every source into joinable series
func (b *Builder) collect(ctx context.Context, timeline *domain.Timeline, countries []string) ([]domain.Series, []NormalizeStats, error) {
	normalizer := NewNormalizer(withLogger(b.opts.Normalizer, b.logger))

	var (
		series []domain.Series
		stats  []NormalizeStats
	)
	for _, spec := range b.sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		stageStart := time.Now()
		stageCtx, span := b.tracer.TraceStage(ctx, "source",
			attribute.String("source", spec.Name),
			attribute.String("kind", string(spec.Kind)))

		rng := store.TimeRange{Start: timeline.Start(), End: timeline.End()}
		n := normalizer
		if spec.Table.Local() {
			rng = rng.Pad(b.opts.LocalPadding)
			n = normalizer.Within(timeline.Start(), timeline.End())
		}
		records, err := b.reader.Read(stageCtx, spec.Table, rng, b.keysFor(spec, countries))
		if err != nil {
			b.tracer.RecordStageCompletion(span, stageStart, 0, err)
			return nil, nil, apperrors.NewSourceError(fmt.Sprintf("read source %s", spec.Name), err).
				WithContext("table", spec.Table.Table)
		}

		produced, st, err := b.toSeries(n, spec, records)
		b.tracer.RecordStageCompletion(span, stageStart, len(records), err)
		if err != nil {
			return nil, nil, err
		}
		series = append(series, produced...)
		stats = append(stats, st)

		b.logger.DebugContext(ctx, "Source normalized",
			slog.String("source", spec.Name),
			slog.Int("read", st.Read),
			slog.Int("normalized", st.Normalized),
			slog.Int("padding", st.Padding),
			slog.Int("columns", len(produced)))
	}
	return series, stats, nil
}

func (b *Builder) toSeries(n *Normalizer, spec SourceSpec, records []domain.SourceRecord) ([]domain.Series, NormalizeStats, error) {
	switch spec.Kind {
	case SourceCountry:
		recs, st := n.Normalize(spec.Name, records)
		return []domain.Series{{
			Family:  spec.Family,
			Column:  spec.ColumnName(),
			Scope:   domain.ScopeCountry,
			Records: recs,
		}}, st, nil

	case SourceLocation:
		recs, st := n.Normalize(spec.Name, records)
		agg, ast := AggregateLocations(b.grouping, recs)
		if ast.Ungrouped > 0 {
			st.Counts[domain.ReasonUngroupedLocation] += ast.Ungrouped
		}
		return []domain.Series{{
			Family:  spec.Family,
			Column:  spec.ColumnName(),
			Scope:   domain.ScopeCountry,
			Records: agg,
		}}, st, nil

	case SourceFlow:
		flows, st := n.NormalizeFlows(spec.Name, records)
		pivot, pst := PivotFlows(spec.Name, flows)
		for reason, count := range pst.Counts {
			st.Counts[reason] += count
		}
		return pivot.Series(spec.Family), st, nil

	default:
		return nil, NormalizeStats{}, apperrors.NewConfigError(
			fmt.Sprintf("source %s has unknown kind %q", spec.Name, spec.Kind), nil)
	}
}

func (b *Builder) keysFor(spec SourceSpec, countries []string) []string {
	switch spec.Kind {
	case SourceCountry:
		return countries
	case SourceLocation:
		return b.grouping.Locations(countries)
	default:
		return nil
	}
}

func withLogger(opts NormalizerOptions, logger *slog.Logger) NormalizerOptions {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return opts
}
