package exporter

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/internal/files"
	"mibelpanel/pkg/contracts/domain"
)

var coverageHeaders = []string{
	"family", "column", "country", "expected", "present", "missing", "missing_rate", "flagged", "gaps",
}

// WriteQualityReport writes report as indented JSON
func WriteQualityReport(path string, report *domain.QualityReport) error {
	err := files.WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	})
	if err != nil {
		return apperrors.NewPersistenceError("write quality report", err).WithContext("path", path)
	}
	return nil
}

// ReadQualityReport loads a report written by WriteQualityReport
func ReadQualityReport(r io.Reader) (*domain.QualityReport, error) {
	var report domain.QualityReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, apperrors.NewParsingError("decode quality report", err)
	}
	return &report, nil
}

// WriteCoverage writes one CSV line per coverage entry. Gaps are rendered as
// from/to pairs separated by semicolons.
func (w *CSVWriter) WriteCoverage(path string, report *domain.QualityReport) error {
	records := make([][]string, 0, len(report.Coverage))
	for _, e := range report.Coverage {
		records = append(records, []string{
			e.Family,
			e.Column,
			e.Country,
			formatInt(e.Expected),
			formatInt(e.Present),
			formatInt(e.Missing),
			formatRate(e.MissingRate),
			formatBool(e.Flagged),
			formatGaps(e.Gaps),
		})
	}
	if err := w.WriteCSV(path, WriteOptions{Headers: coverageHeaders, Records: records, BOMPrefix: true}); err != nil {
		return apperrors.NewPersistenceError("write coverage", err).WithContext("path", path)
	}
	return nil
}

func formatGaps(gaps []domain.Gap) string {
	parts := make([]string, len(gaps))
	for i, g := range gaps {
		parts[i] = g.From.UTC().Format(time.RFC3339) + "/" + g.To.UTC().Format(time.RFC3339)
	}
	return strings.Join(parts, ";")
}
