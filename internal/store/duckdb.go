package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	duckdb "github.com/marcboeker/go-duckdb/v2"

	apperrors "mibelpanel/internal/errors"
)

// Staged table names
const (
	TablePrices   = "prices_day_ahead"
	TableGen      = "generation"
	TableFlows    = "cross_border_flows"
	TableWeather  = "weather"
	stagingSuffix = "_staging"
)

// SchemaStatements create the staging tables. OMIE prices keep the local
// wall clock plus its UTC offset, which is part of the key because the
// autumn change repeats one wall-clock hour. The other tables are stored
// in UTC.
var SchemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS prices_day_ahead (
		timestamp TIMESTAMP NOT NULL,
		country VARCHAR(2) NOT NULL,
		price_eur_mwh DOUBLE NOT NULL,
		energy_mwh DOUBLE,
		utc_offset_s INTEGER NOT NULL,
		PRIMARY KEY (timestamp, country, utc_offset_s)
	)`,
	`CREATE TABLE IF NOT EXISTS generation (
		timestamp TIMESTAMP NOT NULL,
		country VARCHAR(2) NOT NULL,
		technology VARCHAR(50) NOT NULL,
		generation_mw DOUBLE NOT NULL,
		PRIMARY KEY (timestamp, country, technology)
	)`,
	`CREATE TABLE IF NOT EXISTS cross_border_flows (
		timestamp TIMESTAMP NOT NULL,
		country_from VARCHAR(2) NOT NULL,
		country_to VARCHAR(2) NOT NULL,
		flow_mw DOUBLE NOT NULL,
		PRIMARY KEY (timestamp, country_from, country_to)
	)`,
	`CREATE TABLE IF NOT EXISTS weather (
		timestamp TIMESTAMP NOT NULL,
		location VARCHAR(50) NOT NULL,
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		temperature_c DOUBLE,
		wind_speed_10m DOUBLE,
		wind_speed_100m DOUBLE,
		wind_direction_100m DOUBLE,
		solar_radiation DOUBLE,
		dni DOUBLE,
		diffuse_radiation DOUBLE,
		cloud_cover DOUBLE,
		PRIMARY KEY (timestamp, location)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_timestamp ON prices_day_ahead(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_prices_country ON prices_day_ahead(country)`,
	`CREATE INDEX IF NOT EXISTS idx_generation_timestamp ON generation(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_weather_timestamp ON weather(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_flows_timestamp ON cross_border_flows(timestamp)`,
}

// OpenDuckDB opens a DuckDB database file. An empty path opens an
// in-memory database.
func OpenDuckDB(path string) (*sql.DB, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("open duckdb %q", path), err)
	}
	return sql.OpenDB(connector), nil
}

// CreateSchema creates every staging table that does not exist yet
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range SchemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewPersistenceError("create schema", err)
		}
	}
	return nil
}

// TableSummary is a quick health check of one staged table
type TableSummary struct {
	Table string
	Rows  int64
	First sql.NullTime
	Last  sql.NullTime
}

// Summarize counts rows and reports the time span of table
func Summarize(ctx context.Context, db *sql.DB, table string) (TableSummary, error) {
	if !ValidIdentifier(table) {
		return TableSummary{}, apperrors.NewValidationError(fmt.Sprintf("invalid table %q", table), nil)
	}
	summary := TableSummary{Table: table}
	query := fmt.Sprintf("SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM %s", table)
	if err := db.QueryRowContext(ctx, query).Scan(&summary.Rows, &summary.First, &summary.Last); err != nil {
		return TableSummary{}, apperrors.NewSourceError(fmt.Sprintf("summarize %s", table), err)
	}
	return summary, nil
}

// StageRows upserts rows into table through the DuckDB appender. Rows must
// follow the table's column order. Existing rows with the same primary key
// are replaced, so reloading a file is idempotent and later loads win.
func StageRows(ctx context.Context, db *sql.DB, table string, rows [][]any) (int, error) {
	if !ValidIdentifier(table) {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid table %q", table), nil)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, apperrors.NewPersistenceError("acquire connection", err)
	}
	defer conn.Close()

	staging := table + stagingSuffix
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", staging),
		fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s LIMIT 0", staging, table),
	}
	for _, stmt := range stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return 0, apperrors.NewPersistenceError("prepare staging table", err)
		}
	}
	defer conn.ExecContext(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", staging))

	err = conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", staging)
		if err != nil {
			return err
		}
		for i, row := range rows {
			values := make([]driver.Value, len(row))
			for j, v := range row {
				values[j] = appenderValue(v)
			}
			if err := appender.AppendRow(values...); err != nil {
				appender.Close()
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		return appender.Close()
	})
	if err != nil {
		return 0, apperrors.NewPersistenceError(fmt.Sprintf("stage %s", table), err)
	}

	upsert := fmt.Sprintf("INSERT OR REPLACE INTO %s SELECT * FROM %s", table, staging)
	if _, err := conn.ExecContext(ctx, upsert); err != nil {
		return 0, apperrors.NewPersistenceError(fmt.Sprintf("upsert %s", table), err)
	}
	return len(rows), nil
}

// appenderValue unwraps database/sql null types for the appender
func appenderValue(v any) driver.Value {
	switch x := v.(type) {
	case sql.NullFloat64:
		if !x.Valid {
			return nil
		}
		return x.Float64
	case sql.NullInt32:
		if !x.Valid {
			return nil
		}
		return x.Int32
	case sql.NullString:
		if !x.Valid {
			return nil
		}
		return x.String
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}
