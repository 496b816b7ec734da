package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/store"
	"mibelpanel/pkg/contracts/domain"
)

// PanelTableWriter loads a panel into a PostgreSQL table, replacing its
// previous contents in one transaction
type PanelTableWriter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPanelTableWriter creates a writer on pool
func NewPanelTableWriter(pool *pgxpool.Pool, logger *slog.Logger) *PanelTableWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PanelTableWriter{pool: pool, logger: logger.With("component", "panel_table_writer")}
}

// WritePanel implements PanelWriter; path is the table name
func (w *PanelTableWriter) WritePanel(ctx context.Context, table string, panel *domain.Panel) error {
	if !store.ValidIdentifier(table) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid table %q", table), nil)
	}

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return apperrors.NewPersistenceError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	ident := pgx.Identifier{table}.Sanitize()
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return apperrors.NewPersistenceError("drop panel table", err)
	}
	if _, err := tx.Exec(ctx, createPanelTable(ident, panel)); err != nil {
		return apperrors.NewPersistenceError("create panel table", err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, PanelHeaders(panel), pgx.CopyFromSlice(len(panel.Rows), func(i int) ([]any, error) {
		return panelValues(&panel.Rows[i]), nil
	}))
	if err != nil {
		return apperrors.NewPersistenceError("copy panel rows", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.NewPersistenceError("commit panel table", err)
	}

	w.logger.InfoContext(ctx, "Panel loaded",
		slog.String("table", table),
		slog.Int64("rows", n))
	return nil
}

func createPanelTable(ident string, panel *domain.Panel) string {
	cols := []string{"timestamp TIMESTAMPTZ NOT NULL", "country CHAR(2) NOT NULL"}
	for _, name := range panel.ColumnNames() {
		cols = append(cols, pgx.Identifier{name}.Sanitize()+" DOUBLE PRECISION")
	}
	for _, name := range calendarColumns {
		cols = append(cols, pgx.Identifier{name}.Sanitize()+" INTEGER NOT NULL")
	}
	cols = append(cols, "PRIMARY KEY (timestamp, country)")
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(cols, ", "))
}

func panelValues(row *domain.PanelRow) []any {
	values := make([]any, 0, len(keyColumns)+len(row.Metrics)+len(calendarColumns))
	values = append(values, row.Instant.UTC(), row.Country)
	for _, v := range row.Metrics {
		if v.Valid {
			values = append(values, v.Float64)
		} else {
			values = append(values, nil)
		}
	}
	for _, v := range calendarValues(row) {
		values = append(values, int32(v))
	}
	return values
}
