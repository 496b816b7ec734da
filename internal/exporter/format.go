package exporter

import (
	"database/sql"
	"strconv"
	"time"
)

// formatValue renders a metric cell. Missing cells are empty; present values
// use the shortest representation that round-trips.
func formatValue(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

// formatInstant renders an instant as RFC 3339 in UTC
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatBool formats a boolean as 1 or 0 so it loads as a number
func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatRate renders a share with fixed precision
func formatRate(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
