package exporter

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"strings"

	duckdb "github.com/marcboeker/go-duckdb/v2"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/files"
	"mibelpanel/pkg/contracts/domain"
)

const exportTable = "panel_export"

// ParquetWriter writes panels as Parquet through DuckDB: rows are appended
// into a scratch table and copied out with COPY ... TO.
type ParquetWriter struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewParquetWriter creates a writer on a DuckDB handle. Any DuckDB database
// works, an in-memory one included.
func NewParquetWriter(db *sql.DB, logger *slog.Logger) *ParquetWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParquetWriter{db: db, logger: logger.With("component", "parquet_writer")}
}

// WritePanel implements PanelWriter
func (w *ParquetWriter) WritePanel(ctx context.Context, path string, panel *domain.Panel) error {
	conn, err := w.db.Conn(ctx)
	if err != nil {
		return apperrors.NewPersistenceError("acquire duckdb connection", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, createExportTable(panel)); err != nil {
		return apperrors.NewPersistenceError("create export table", err)
	}
	defer conn.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+exportTable)

	if err := appendPanel(ctx, conn, panel); err != nil {
		return apperrors.NewPersistenceError("append panel rows", err)
	}

	tmp, err := files.TempPathFor(path)
	if err != nil {
		return apperrors.NewPersistenceError("reserve parquet path", err)
	}
	// row_id only fixes the row order of the file.
	copyStmt := fmt.Sprintf(
		"COPY (SELECT * EXCLUDE (row_id) FROM %s ORDER BY row_id) TO '%s' (FORMAT PARQUET, COMPRESSION ZSTD)",
		exportTable, strings.ReplaceAll(tmp, "'", "''"))
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		return apperrors.NewPersistenceError("copy panel to parquet", err).WithContext("path", path)
	}
	if err := files.ReplaceFile(tmp, path); err != nil {
		return apperrors.NewPersistenceError("commit parquet", err)
	}

	w.logger.InfoContext(ctx, "Panel written",
		slog.String("path", path),
		slog.Int("rows", len(panel.Rows)),
		slog.Int("columns", len(panel.Columns)))
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func createExportTable(panel *domain.Panel) string {
	cols := []string{"row_id BIGINT", "timestamp TIMESTAMPTZ", "country VARCHAR"}
	for _, name := range panel.ColumnNames() {
		cols = append(cols, quoteIdent(name)+" DOUBLE")
	}
	for _, name := range calendarColumns {
		cols = append(cols, quoteIdent(name)+" BIGINT")
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", exportTable, strings.Join(cols, ", "))
}

func appendPanel(ctx context.Context, conn *sql.Conn, panel *domain.Panel) error {
	return conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", exportTable)
		if err != nil {
			return err
		}

		width := 3 + len(panel.Columns) + len(calendarColumns)
		values := make([]driver.Value, width)
		for i := range panel.Rows {
			if i%4096 == 0 {
				if err := ctx.Err(); err != nil {
					appender.Close()
					return err
				}
			}
			row := &panel.Rows[i]
			values[0] = int64(i)
			values[1] = row.Instant.UTC()
			values[2] = row.Country
			for j, v := range row.Metrics {
				if v.Valid {
					values[3+j] = v.Float64
				} else {
					values[3+j] = nil
				}
			}
			for j, v := range calendarValues(row) {
				values[3+len(row.Metrics)+j] = int64(v)
			}
			if err := appender.AppendRow(values...); err != nil {
				appender.Close()
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		return appender.Close()
	})
}
