// Command processor builds the hourly MIBEL panel for a range of UTC days
// from the staging store and writes the panel artifact with its quality
// report.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mibelpanel/internal/config"
	"mibelpanel/internal/dataprocessing"
	"mibelpanel/internal/exporter"
	"mibelpanel/internal/infrastructure"
	"mibelpanel/internal/observability"
	"mibelpanel/internal/store"
	"mibelpanel/internal/validation"
	"mibelpanel/pkg/contracts/domain"
)

const dayLayout = "2006-01-02"

// options are the command line flags of one run
type options struct {
	configPath string
	first      time.Time
	last       time.Time
	countries  []string
	format     string
	compress   *bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = infrastructure.EnsureTraceID(ctx)
	if err := run(ctx, opts, os.Stdout); err != nil {
		infrastructure.WithError(infrastructure.LoggerWithContext(ctx), err).Error("Panel build failed")
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("processor", flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "path to the YAML config (defaults to config.yaml next to the executable)")
	start := fs.String("start", "", "first UTC day of the panel, YYYY-MM-DD (required)")
	end := fs.String("end", "", "last UTC day of the panel, YYYY-MM-DD, inclusive (defaults to -start)")
	countries := fs.String("countries", "", "comma-separated ISO country codes (defaults to the configured set)")
	format := fs.String("format", "", "artifact format: parquet or csv (defaults to the configured format)")
	compress := fs.Bool("compress", false, "snappy-compress CSV artifacts")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{configPath: *configPath, format: *format}
	if *start == "" {
		return options{}, fmt.Errorf("-start is required")
	}
	first, err := time.Parse(dayLayout, *start)
	if err != nil {
		return options{}, fmt.Errorf("invalid -start %q: %w", *start, err)
	}
	last := first
	if *end != "" {
		if last, err = time.Parse(dayLayout, *end); err != nil {
			return options{}, fmt.Errorf("invalid -end %q: %w", *end, err)
		}
	}
	opts.first, opts.last = first, last

	if *countries != "" {
		for _, c := range strings.Split(*countries, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				opts.countries = append(opts.countries, c)
			}
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "compress" {
			opts.compress = compress
		}
	})
	return opts, nil
}

// loadConfig reads the configuration and applies command line overrides
func loadConfig(opts options) (*config.Config, *config.Paths, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if len(opts.countries) > 0 {
		cfg.Build.Countries = opts.countries
	}
	if opts.format != "" {
		cfg.Export.Format = opts.format
	}
	if opts.compress != nil {
		cfg.Export.Compress = *opts.compress
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	paths, err := config.NewPaths(cfg.Paths.BaseDir)
	if err != nil {
		return nil, nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.BaseDir, cfg.Logging.FilePath)
	}
	return cfg, paths, nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, paths, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()
	paths.LogPathResolution(logger)

	tracingCfg := infrastructure.DefaultTracingConfig("mibel-processor")
	tracingCfg.Enabled = cfg.Telemetry.Tracing
	tracingCfg.Output = os.Stderr
	tracing, err := infrastructure.InitializeTracing(ctx, tracingCfg, logger)
	if err != nil {
		return err
	}
	defer tracing.Shutdown(context.Background())

	ctx = infrastructure.EnsureTraceID(ctx)

	if err := validation.NewFileValidator(logger).ValidateOutputDirectory(paths.ProcessedDir); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewBuildMetrics(reg)
	if cfg.Telemetry.WriteMetrics {
		defer func() {
			if err := observability.WriteTextfile(cfg.MetricsPath(paths), reg); err != nil {
				infrastructure.WithError(logger, err).WarnContext(ctx, "Failed to write metrics")
			}
		}()
	}

	src, err := openSource(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	specs, err := cfg.SourceSpecs()
	if err != nil {
		return err
	}
	builder := dataprocessing.NewBuilder(src.reader, specs,
		dataprocessing.WithLogger(logger),
		dataprocessing.WithMetrics(metrics),
		dataprocessing.WithTracerProvider(tracing.Provider),
		dataprocessing.WithOptions(cfg.ProcessingOptions()),
		dataprocessing.WithGrouping(cfg.Grouping()),
	)

	start, end := dataprocessing.DayRange(opts.first, opts.last)
	panel, report, err := builder.BuildPanel(ctx, domain.BuildRequest{
		Start:     start,
		End:       end,
		Countries: cfg.Build.Countries,
		Policy:    cfg.PolicyWindow(),
	})
	if err != nil {
		return err
	}
	ctx = infrastructure.WithBuildID(ctx, report.BuildID)

	artifact, err := writeArtifacts(ctx, cfg, paths, src.duckdb, panel, report, logger)
	if err != nil {
		return err
	}

	if cfg.Export.PostgresDSN != "" {
		if err := loadPostgres(ctx, cfg, panel, logger); err != nil {
			return err
		}
	}

	fmt.Fprintf(stdout, "%s\n", artifact)
	if len(report.Flags) > 0 {
		fmt.Fprintf(stdout, "%d coverage flags, see %s\n", len(report.Flags), paths.GetQualityReportPath(artifact))
	}
	return nil
}

// source is the staging store a build reads from
type source struct {
	reader store.Reader
	// duckdb is set when the store is DuckDB; the Parquet writer reuses it.
	duckdb *sql.DB
	close  func() error
}

func (s *source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openSource(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*source, error) {
	dsn := cfg.StoreDSN(paths)
	logger.InfoContext(ctx, "Opening staging store", slog.String("driver", cfg.Store.Driver))

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &source{
			reader: store.NewPGReader(pool, logger),
			close:  func() error { pool.Close(); return nil },
		}, nil
	default:
		db, err := store.Open(cfg.Store.Driver, dsn)
		if err != nil {
			return nil, err
		}
		s := &source{reader: store.NewSQLReader(db, logger), close: db.Close}
		if cfg.Store.Driver == config.DriverDuckDB {
			if err := store.CreateSchema(ctx, db); err != nil {
				db.Close()
				return nil, err
			}
			s.duckdb = db
		}
		return s, nil
	}
}

// writeArtifacts writes the panel and its report files and returns the
// panel artifact path
func writeArtifacts(ctx context.Context, cfg *config.Config, paths *config.Paths, duck *sql.DB,
	panel *domain.Panel, report *domain.QualityReport, logger *slog.Logger) (string, error) {
	ext, err := exporter.ArtifactExt(cfg.Export.Format, cfg.Export.Compress)
	if err != nil {
		return "", err
	}
	first := panel.Timeline.Start()
	last := panel.Timeline.End().Add(-time.Hour)
	artifact := paths.GetPanelPath(first, last, ext)

	csvWriter := exporter.NewCSVWriter(cfg.Export.Compress, logger)
	var writer exporter.PanelWriter = csvWriter
	if cfg.Export.Format == exporter.FormatParquet {
		if duck == nil {
			mem, err := store.OpenDuckDB("")
			if err != nil {
				return "", err
			}
			defer mem.Close()
			duck = mem
		}
		writer = exporter.NewParquetWriter(duck, logger)
	}

	if err := writer.WritePanel(ctx, artifact, panel); err != nil {
		return "", err
	}
	if err := exporter.WriteQualityReport(paths.GetQualityReportPath(artifact), report); err != nil {
		return "", err
	}
	// Coverage is a plain CSV even when the panel is compressed.
	if err := exporter.NewCSVWriter(false, logger).WriteCoverage(paths.GetCoveragePath(artifact), report); err != nil {
		return "", err
	}

	logger.InfoContext(ctx, "Artifacts written",
		slog.String("panel", artifact),
		slog.String("format", cfg.Export.Format),
		slog.Int("flags", len(report.Flags)))
	return artifact, nil
}

func loadPostgres(ctx context.Context, cfg *config.Config, panel *domain.Panel, logger *slog.Logger) error {
	pool, err := store.OpenPostgres(ctx, cfg.Export.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	return exporter.NewPanelTableWriter(pool, logger).WritePanel(ctx, cfg.Export.PostgresTable, panel)
}
