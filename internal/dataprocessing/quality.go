package dataprocessing

import (
	"fmt"
	"log/slog"

	"mibelpanel/pkg/contracts/domain"
)

// Diagnose measures the completeness of panel and folds in what the
// normalizer and the join discarded. It never fails: a panel with no data at
// all still gets a report, it is just full of flags.
func Diagnose(panel *domain.Panel, assembly AssemblyStats, sources []NormalizeStats, opts QualityOptions) *domain.QualityReport {
	hours := panel.Timeline.Len()
	report := &domain.QualityReport{
		Start:        panel.Timeline.Start(),
		End:          panel.Timeline.End(),
		Countries:    append([]string(nil), panel.Countries...),
		ExpectedRows: hours,
		Events:       make(map[domain.ReasonCode]int),
	}

	for col, column := range panel.Columns {
		for ci, country := range panel.Countries {
			entry := coverageFor(panel.Rows[ci*hours:(ci+1)*hours], col, opts.MaxGapsPerEntry)
			entry.Family = column.Family
			entry.Column = column.Name
			entry.Country = country
			if entry.MissingRate > opts.MissingRateThreshold {
				entry.Flagged = true
				report.Flags = append(report.Flags,
					fmt.Sprintf("%s/%s missing %.1f%%", column.Name, country, entry.MissingRate*100))
			}
			report.Coverage = append(report.Coverage, entry)
		}
	}

	for _, s := range sources {
		src := domain.SourceStats{
			Source:     s.Source,
			Read:       s.Read,
			Normalized: s.Normalized,
			Dropped:    s.Dropped(),
		}
		for reason, n := range s.Counts {
			if n == 0 {
				continue
			}
			if src.Events == nil {
				src.Events = make(map[domain.ReasonCode]int)
			}
			src.Events[reason] = n
			report.Events[reason] += n
		}
		report.Sources = append(report.Sources, src)

		for _, ev := range s.Events {
			if opts.MaxSamples > 0 && len(report.Samples) >= opts.MaxSamples {
				break
			}
			report.Samples = append(report.Samples, ev)
		}
	}

	if n := assembly.OutOfRange(); n > 0 {
		report.Events[domain.ReasonOutOfRange] += n
	}
	if n := assembly.InactiveKeys(); n > 0 {
		report.Events[domain.ReasonInactiveKey] += n
	}
	return report
}

func coverageFor(rows []domain.PanelRow, col, maxGaps int) domain.CoverageEntry {
	entry := domain.CoverageEntry{Expected: len(rows)}

	gapStart := -1
	closeGap := func(end int) {
		if gapStart < 0 {
			return
		}
		if maxGaps <= 0 || len(entry.Gaps) < maxGaps {
			entry.Gaps = append(entry.Gaps, domain.Gap{
				From:  rows[gapStart].Instant,
				To:    rows[end].Instant,
				Hours: end - gapStart + 1,
			})
		}
		gapStart = -1
	}

	for i, row := range rows {
		if row.Metrics[col].Valid {
			entry.Present++
			closeGap(i - 1)
			continue
		}
		entry.Missing++
		if gapStart < 0 {
			gapStart = i
		}
	}
	closeGap(len(rows) - 1)

	if entry.Expected > 0 {
		entry.MissingRate = float64(entry.Missing) / float64(entry.Expected)
	}
	return entry
}

// LogReport writes a summary of report at info level and one warning per
// flagged entry
func LogReport(logger *slog.Logger, report *domain.QualityReport) {
	if logger == nil {
		logger = slog.Default()
	}

	flagged := 0
	for _, e := range report.Coverage {
		if !e.Flagged {
			continue
		}
		flagged++
		logger.Warn("Column coverage below threshold",
			slog.String("column", e.Column),
			slog.String("country", e.Country),
			slog.Int("missing", e.Missing),
			slog.Int("expected", e.Expected),
			slog.Float64("missing_rate", e.MissingRate))
	}

	attrs := []any{
		slog.String("build_id", report.BuildID),
		slog.Int("expected_rows", report.ExpectedRows),
		slog.Int("coverage_entries", len(report.Coverage)),
		slog.Int("flagged", flagged),
	}
	for _, reason := range domain.ReasonCodes {
		if n := report.Events[reason]; n > 0 {
			attrs = append(attrs, slog.Int(string(reason), n))
		}
	}
	logger.Info("Quality report", attrs...)
}
