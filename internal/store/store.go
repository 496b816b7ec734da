package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// TimeRange is a half-open interval [Start, End) on the stored timestamp column
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Pad widens the range on both sides. Tables holding local wall-clock
// timestamps are read with padding so no hour at the edges is lost to the
// offset.
func (r TimeRange) Pad(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(-d), End: r.End.Add(d)}
}

// TableSpec describes how one staged table maps onto SourceRecords.
type TableSpec struct {
	Table             string `yaml:"table" validate:"required"`
	TimeColumn        string `yaml:"time_column" validate:"required"`
	KeyColumn         string `yaml:"key_column" validate:"required"`
	CounterpartColumn string `yaml:"counterpart_column,omitempty"`
	ValueColumn       string `yaml:"value_column" validate:"required"`
	// OffsetColumn holds a UTC offset in seconds. When set, rows with a
	// non-null offset are read as local-with-offset.
	OffsetColumn string `yaml:"offset_column,omitempty"`
	FilterColumn string `yaml:"filter_column,omitempty"`
	FilterValue  string `yaml:"filter_value,omitempty"`
	// Kind and Zone describe the stored timestamp column.
	Kind domain.TimestampKind `yaml:"-"`
	Zone string               `yaml:"zone,omitempty"`
}

// Local reports whether the table stores wall-clock timestamps
func (s TableSpec) Local() bool {
	return s.Kind != domain.TimestampAbsolute || s.OffsetColumn != ""
}

// Reader reads source records from a staging store. keys restricts the
// KeyColumn; an empty slice reads every key.
type Reader interface {
	Read(ctx context.Context, spec TableSpec, r TimeRange, keys []string) ([]domain.SourceRecord, error)
}

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name can be spliced into SQL as a table
// or column name
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks every table and column identifier
func (s TableSpec) Validate() error {
	required := map[string]string{
		"table":        s.Table,
		"time_column":  s.TimeColumn,
		"key_column":   s.KeyColumn,
		"value_column": s.ValueColumn,
	}
	for field, name := range required {
		if !ValidIdentifier(name) {
			return apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", field, name), nil)
		}
	}
	optional := map[string]string{
		"counterpart_column": s.CounterpartColumn,
		"offset_column":      s.OffsetColumn,
		"filter_column":      s.FilterColumn,
	}
	for field, name := range optional {
		if name != "" && !ValidIdentifier(name) {
			return apperrors.NewValidationError(fmt.Sprintf("invalid %s %q", field, name), nil)
		}
	}
	if s.FilterColumn != "" && s.FilterValue == "" {
		return apperrors.NewValidationError("filter_column requires filter_value", nil)
	}
	return nil
}

// Placeholder renders the n-th (1-based) bind parameter of a dialect
type Placeholder func(n int) string

// QuestionPlaceholder is used by DuckDB and MySQL
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder is used by PostgreSQL
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// buildSelect renders the query behind Read. The projection order is fixed
// for every dialect: time, key, counterpart, value, offset.
func buildSelect(spec TableSpec, r TimeRange, keys []string, ph Placeholder) (string, []any, error) {
	if err := spec.Validate(); err != nil {
		return "", nil, err
	}

	counterpart := "NULL"
	if spec.CounterpartColumn != "" {
		counterpart = spec.CounterpartColumn
	}
	offset := "NULL"
	if spec.OffsetColumn != "" {
		offset = spec.OffsetColumn
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s, %s, %s, %s, %s FROM %s",
		spec.TimeColumn, spec.KeyColumn, counterpart, spec.ValueColumn, offset, spec.Table)

	args := []any{r.Start.UTC(), r.End.UTC()}
	if spec.Local() {
		args = []any{wallClock(r.Start), wallClock(r.End)}
	}
	fmt.Fprintf(&b, " WHERE %s >= %s AND %s < %s", spec.TimeColumn, ph(1), spec.TimeColumn, ph(2))

	if spec.FilterColumn != "" {
		args = append(args, spec.FilterValue)
		fmt.Fprintf(&b, " AND %s = %s", spec.FilterColumn, ph(len(args)))
	}

	if len(keys) > 0 {
		marks := make([]string, len(keys))
		for i, k := range keys {
			args = append(args, k)
			marks[i] = ph(len(args))
		}
		fmt.Fprintf(&b, " AND %s IN (%s)", spec.KeyColumn, strings.Join(marks, ", "))
	}

	// Every projected column takes part in the order, so rows that collide on
	// (time, key) still reach the normalizer in the same sequence on every
	// read. Of two such rows a present value outranks a NULL and the larger
	// value gets the later Seq, which wins.
	order := []string{spec.TimeColumn, spec.KeyColumn}
	if spec.CounterpartColumn != "" {
		order = append(order, spec.CounterpartColumn)
	}
	if spec.OffsetColumn != "" {
		order = append(order, spec.OffsetColumn)
	}
	order = append(order, spec.ValueColumn+" IS NOT NULL", spec.ValueColumn)
	fmt.Fprintf(&b, " ORDER BY %s", strings.Join(order, ", "))
	return b.String(), args, nil
}

// wallClock keeps the clock reading of t and relabels it UTC. Only local
// wall-clock values go through it; absolute instants are converted with UTC().
func wallClock(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}

// rowScanner is satisfied by *sql.Rows and pgx.Rows
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRecords turns the fixed projection of buildSelect into SourceRecords.
// Seq follows row order, which the query makes total with ORDER BY.
func scanRecords(rows rowScanner, spec TableSpec) ([]domain.SourceRecord, error) {
	var out []domain.SourceRecord
	for rows.Next() {
		var (
			rec         domain.SourceRecord
			counterpart sql.NullString
			offset      sql.NullInt64
		)
		if err := rows.Scan(&rec.Timestamp, &rec.Key, &counterpart, &rec.Value, &offset); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", spec.Table, err)
		}
		rec.Counterpart = counterpart.String
		rec.Source = spec.Table
		rec.Seq = int64(len(out) + 1)

		switch {
		case offset.Valid:
			rec.Kind = domain.TimestampLocalOffset
			rec.OffsetSeconds = int(offset.Int64)
		case spec.Kind == domain.TimestampLocal:
			rec.Kind = domain.TimestampLocal
			rec.Zone = spec.Zone
		default:
			rec.Kind = domain.TimestampAbsolute
			rec.Timestamp = rec.Timestamp.UTC()
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", spec.Table, err)
	}
	return out, nil
}
