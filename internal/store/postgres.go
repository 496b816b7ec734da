package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// PGReader reads staged tables from PostgreSQL
type PGReader struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGReader creates a reader backed by a pgx pool
func NewPGReader(pool *pgxpool.Pool, logger *slog.Logger) *PGReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGReader{pool: pool, logger: logger.With("component", "pg_reader")}
}

// OpenPostgres connects a pool and verifies the connection
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.NewConfigError("create postgres pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewSourceError("ping postgres", err)
	}
	return pool, nil
}

// Read implements Reader
func (r *PGReader) Read(ctx context.Context, spec TableSpec, rng TimeRange, keys []string) ([]domain.SourceRecord, error) {
	query, args, err := buildSelect(spec, rng, keys, DollarPlaceholder)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
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
		slog.Int("records", len(records)))
	return records, nil
}
