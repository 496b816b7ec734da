package exporter

import (
	"context"
	"fmt"

	"mibelpanel/pkg/contracts/domain"
)

// Leading and trailing columns around the metric columns of a panel
// artifact.
var (
	keyColumns      = []string{"timestamp", "country"}
	calendarColumns = []string{"hour", "day_of_week", "day_of_year", "month", "year", "quarter", "is_weekend", "policy_flag"}
)

// Formats of panel artifacts
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
)

// PanelWriter writes a panel artifact to path
type PanelWriter interface {
	WritePanel(ctx context.Context, path string, panel *domain.Panel) error
}

// PanelHeaders returns the artifact columns: keys, metrics in panel order,
// then calendar features and the policy flag
func PanelHeaders(panel *domain.Panel) []string {
	headers := make([]string, 0, len(keyColumns)+len(panel.Columns)+len(calendarColumns))
	headers = append(headers, keyColumns...)
	headers = append(headers, panel.ColumnNames()...)
	return append(headers, calendarColumns...)
}

// ArtifactExt returns the file extension for format
func ArtifactExt(format string, compress bool) (string, error) {
	switch format {
	case FormatParquet:
		return "parquet", nil
	case FormatCSV:
		if compress {
			return "csv.sz", nil
		}
		return "csv", nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// calendarValues returns the trailing columns of row in calendarColumns order
func calendarValues(row *domain.PanelRow) []int {
	c := row.Calendar
	weekend := 0
	if c.IsWeekend {
		weekend = 1
	}
	return []int{c.Hour, c.DayOfWeek, c.DayOfYear, c.Month, c.Year, c.Quarter, weekend, row.PolicyFlag}
}

// panelRecord renders one row as CSV fields
func panelRecord(row *domain.PanelRow) []string {
	record := make([]string, 0, len(keyColumns)+len(row.Metrics)+len(calendarColumns))
	record = append(record, formatInstant(row.Instant), row.Country)
	for _, v := range row.Metrics {
		record = append(record, formatValue(v))
	}
	for _, v := range calendarValues(row) {
		record = append(record, formatInt(v))
	}
	return record
}
