// Command loader stages OMIE day-ahead price workbooks into the DuckDB
// staging store read by the panel processor.
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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mibelpanel/internal/config"
	"mibelpanel/internal/dataprocessing"
	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/files"
	"mibelpanel/internal/infrastructure"
	"mibelpanel/internal/observability"
	"mibelpanel/internal/store"
	"mibelpanel/internal/validation"
	"mibelpanel/pkg/contracts/domain"
)

type options struct {
	configPath string
	dir        string
	file       string
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = infrastructure.EnsureTraceID(ctx)
	if err := run(ctx, opts, os.Stdout); err != nil {
		infrastructure.WithError(infrastructure.LoggerWithContext(ctx), err).Error("Staging failed")
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("loader", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML config (defaults to config.yaml next to the executable)")
	fs.StringVar(&opts.dir, "dir", "", "directory of OMIE .xlsx workbooks (defaults to data/raw/omie)")
	fs.StringVar(&opts.file, "file", "", "stage a single workbook instead of a directory")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cfg.Store.Driver != config.DriverDuckDB {
		return apperrors.NewConfigError(fmt.Sprintf("loader stages into duckdb, store driver is %s", cfg.Store.Driver), nil)
	}
	paths, err := config.NewPaths(cfg.Paths.BaseDir)
	if err != nil {
		return err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}
	if cfg.Logging.FilePath != "" && !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = filepath.Join(paths.BaseDir, cfg.Logging.FilePath)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()
	ctx = infrastructure.EnsureTraceID(ctx)
	logger = infrastructure.WithComponent(logger, "loader")

	workbooks, err := findWorkbooks(opts, paths)
	if err != nil {
		return err
	}
	if len(workbooks) == 0 {
		logger.WarnContext(ctx, "No workbooks to stage", slog.String("dir", paths.OMIEDir))
		return nil
	}

	db, err := store.OpenDuckDB(cfg.StoreDSN(paths))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.CreateSchema(ctx, db); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := observability.NewBuildMetrics(reg)

	omie := dataprocessing.DefaultOMIEOptions()
	omie.Zone = cfg.Build.DefaultZone
	omie.Logger = logger

	validator := validation.NewFileValidator(logger)
	total, staged := 0, 0
	for _, wb := range workbooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := validator.ValidateWorkbook(wb.Path); err != nil {
			if opts.file != "" {
				return err
			}
			infrastructure.WithError(logger, err).WarnContext(ctx, "Skipping workbook",
				slog.String("file", wb.Name))
			continue
		}
		n, err := stageWorkbook(ctx, db, wb.Path, omie)
		if err != nil {
			return err
		}
		metrics.RecordStaged(store.TablePrices, n)
		total += n
		staged++
		logger.InfoContext(ctx, "Workbook staged",
			slog.String("file", wb.Name),
			slog.Int("rows", n))
	}

	summary, err := store.Summarize(ctx, db, store.TablePrices)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "staged %d rows from %d workbooks\n", total, staged)
	fmt.Fprintf(stdout, "%s: %d rows, %s to %s\n", summary.Table, summary.Rows,
		formatNullTime(summary.First), formatNullTime(summary.Last))

	if cfg.Telemetry.WriteMetrics {
		if err := observability.WriteTextfile(cfg.MetricsPath(paths), reg); err != nil {
			infrastructure.WithError(logger, err).WarnContext(ctx, "Failed to write metrics")
		}
	}
	return nil
}

func findWorkbooks(opts options, paths *config.Paths) ([]files.FileInfo, error) {
	if opts.file != "" {
		path := opts.file
		// A bare file name that is not in the working directory is looked up
		// in the OMIE raw directory.
		if !config.FileExists(path) && filepath.Base(path) == path {
			path = paths.GetOMIEPath(path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, apperrors.NewConfigError("workbook not found", err).WithContext("file", opts.file)
		}
		return []files.FileInfo{{Path: path, Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}}, nil
	}
	dir := opts.dir
	if dir == "" {
		dir = paths.OMIEDir
	}
	return files.NewDiscovery(paths.BaseDir).FindWorkbooks(dir)
}

// stageWorkbook parses one workbook and upserts its prices. Rows keep the
// local wall clock and its UTC offset so the store never guesses at DST.
func stageWorkbook(ctx context.Context, db *sql.DB, path string, opts dataprocessing.OMIEOptions) (int, error) {
	wb, err := dataprocessing.ParseOMIEFile(path, opts)
	if err != nil {
		return 0, err
	}
	return store.StageRows(ctx, db, store.TablePrices, priceRows(wb.Records))
}

// priceRows maps records onto the prices_day_ahead column order
func priceRows(records []domain.SourceRecord) [][]any {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			rec.Timestamp,
			rec.Key,
			rec.Value,
			sql.NullFloat64{},
			int32(rec.OffsetSeconds),
		})
	}
	return rows
}

func formatNullTime(t sql.NullTime) string {
	if !t.Valid {
		return "-"
	}
	return t.Time.Format(time.DateTime)
}
