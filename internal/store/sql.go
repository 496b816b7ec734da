package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// Driver names accepted by Open
const (
	DriverDuckDB   = "duckdb"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// SQLReader reads staged tables through database/sql. It serves DuckDB and
// MySQL, which share the "?" placeholder dialect.
type SQLReader struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLReader creates a reader over an open database
func NewSQLReader(db *sql.DB, logger *slog.Logger) *SQLReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLReader{db: db, logger: logger.With("component", "sql_reader")}
}

// Read implements Reader
func (r *SQLReader) Read(ctx context.Context, spec TableSpec, rng TimeRange, keys []string) ([]domain.SourceRecord, error) {
	query, args, err := buildSelect(spec, rng, keys, QuestionPlaceholder)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewSourceError(fmt.Sprintf("query %s", spec.Table), err)
	}
	defer rows.Close()

	records, err := scanRecords(rows, spec)
	if err != nil {
		return nil, apperrors.NewSourceError(fmt.Sprintf("read %s", spec.Table), err)
	}

	r.logger.DebugContext(ctx, "Read source table",
		slog.String("table", spec.Table),
		slog.Int("records", len(records)),
		slog.Duration("elapsed", time.Since(start)))
	return records, nil
}

// Open opens a database/sql staging store for driver
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverDuckDB:
		return OpenDuckDB(dsn)
	case DriverMySQL:
		return OpenMySQL(dsn)
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported sql driver %q", driver), nil)
	}
}

// OpenMySQL opens a MySQL staging store. Timestamps are always parsed and
// returned in UTC regardless of the DSN.
func OpenMySQL(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid mysql dsn", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, apperrors.NewConfigError("create mysql connector", err)
	}
	return sql.OpenDB(connector), nil
}
