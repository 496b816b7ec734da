package dataprocessing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// maxPeriods is the longest market day: 25 hours on the autumn DST change
const maxPeriods = 25

// OMIEOptions configures the workbook parser
type OMIEOptions struct {
	// Concepts maps a CONCEPT cell to the country key it reports.
	Concepts map[string]string
	// Zone is the market's local zone; periods count from local midnight.
	Zone   string
	Logger *slog.Logger
}

// DefaultOMIEOptions reads the Spanish and Portuguese marginal prices
func DefaultOMIEOptions() OMIEOptions {
	return OMIEOptions{
		Concepts: map[string]string{
			"PRICE_SP": "ES",
			"PRICE_PT": "PT",
		},
		Zone: "Europe/Madrid",
	}
}

// OMIEWorkbook is the result of parsing one day-ahead workbook
type OMIEWorkbook struct {
	Path    string
	Sheet   string
	Records []domain.SourceRecord
	// Skipped counts periods that do not exist on their market day,
	// such as H24 on a 23-hour day.
	Skipped int
	// Unparsed counts non-empty cells that are not numbers.
	Unparsed int
}

// ParseOMIEFile reads an OMIE day-ahead workbook with one row per
// (DATE, CONCEPT) and hourly periods H1..H25 as columns.
func ParseOMIEFile(filePath string, opts OMIEOptions) (*OMIEWorkbook, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("open workbook %s", filePath), err)
	}
	defer f.Close()

	wb, err := ParseOMIE(f, opts)
	if err != nil {
		return nil, err
	}
	wb.Path = filePath
	return wb, nil
}

// ParseOMIE parses an already opened workbook.
//
// Period h of market day d starts at local midnight of d plus h-1 hours,
// counted in elapsed time. This keeps 23- and 25-period days exact across
// DST changes. Every record carries its local wall clock and explicit UTC
// offset, so it is unambiguous downstream.
func ParseOMIE(f *excelize.File, opts OMIEOptions) (*OMIEWorkbook, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.Concepts) == 0 {
		opts.Concepts = DefaultOMIEOptions().Concepts
	}
	if opts.Zone == "" {
		opts.Zone = DefaultOMIEOptions().Zone
	}
	loc, err := time.LoadLocation(opts.Zone)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("load zone %s", opts.Zone), err)
	}

	sheetName, rows, header, err := findOMIESheet(f)
	if err != nil {
		return nil, err
	}
	logger.Info("Found OMIE price sheet",
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", len(rows)),
		slog.Int("header_row", header.row))

	wb := &OMIEWorkbook{Sheet: sheetName}
	for i := header.row + 1; i < len(rows); i++ {
		row := rows[i]
		concept := strings.ToUpper(strings.TrimSpace(cell(row, header.concept)))
		country, ok := opts.Concepts[concept]
		if !ok {
			continue
		}

		day, err := parseMarketDate(cell(row, header.date))
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: invalid DATE", i+1), err).
				WithContext("sheet", sheetName)
		}

		midnight, res := ResolveLocal(day, loc)
		if res == ResolvedGap {
			return nil, apperrors.NewParsingError(fmt.Sprintf("row %d: local midnight does not exist", i+1), nil)
		}
		periods := int(ResolveNextMidnight(day, loc).Sub(midnight) / time.Hour)

		for p := 1; p <= maxPeriods; p++ {
			col, ok := header.periods[p]
			if !ok {
				continue
			}
			raw := strings.TrimSpace(cell(row, col))
			if raw == "" {
				continue
			}
			if p > periods {
				wb.Skipped++
				continue
			}
			value, err := parseDecimal(raw)
			if err != nil {
				wb.Unparsed++
				logger.Debug("Unparsed price cell",
					slog.Int("row", i+1),
					slog.String("period", fmt.Sprintf("H%d", p)),
					slog.String("value", raw))
				continue
			}

			local := midnight.Add(time.Duration(p-1) * time.Hour).In(loc)
			_, offset := local.Zone()
			wb.Records = append(wb.Records, domain.SourceRecord{
				Timestamp:     wallAsUTC(local),
				Kind:          domain.TimestampLocalOffset,
				OffsetSeconds: offset,
				Key:           country,
				Value:         domain.Present(value),
				Source:        "omie",
				Seq:           int64(len(wb.Records) + 1),
			})
		}
	}

	logger.Info("Parsed OMIE workbook",
		slog.Int("records", len(wb.Records)),
		slog.Int("skipped_periods", wb.Skipped),
		slog.Int("unparsed_cells", wb.Unparsed))
	return wb, nil
}

// ResolveNextMidnight returns the instant of local midnight after day
func ResolveNextMidnight(day time.Time, loc *time.Location) time.Time {
	next, _ := ResolveLocal(wallAsUTC(day).AddDate(0, 0, 1), loc)
	return next
}

type omieHeader struct {
	row     int
	date    int
	concept int
	periods map[int]int
}

func findOMIESheet(f *excelize.File) (string, [][]string, omieHeader, error) {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		for i, row := range rows {
			if h, ok := mapOMIEHeader(row); ok {
				h.row = i
				return name, rows, h, nil
			}
		}
	}
	return "", nil, omieHeader{}, apperrors.NewParsingError("could not find a sheet with DATE, CONCEPT and H1 columns", nil)
}

func mapOMIEHeader(row []string) (omieHeader, bool) {
	h := omieHeader{date: -1, concept: -1, periods: make(map[int]int)}
	for j, raw := range row {
		name := strings.ToUpper(strings.TrimSpace(raw))
		switch {
		case name == "DATE" || name == "FECHA":
			h.date = j
		case name == "CONCEPT" || name == "CONCEPTO":
			h.concept = j
		case strings.HasPrefix(name, "H"):
			if p, err := strconv.Atoi(name[1:]); err == nil && p >= 1 && p <= maxPeriods {
				h.periods[p] = j
			}
		}
	}
	return h, h.date >= 0 && h.concept >= 0 && len(h.periods) > 0
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01-02-06",
	"1/2/06",
}

// parseMarketDate accepts formatted dates and raw Excel serials
func parseMarketDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// parseDecimal reads numbers written with either decimal separator
func parseDecimal(raw string) (float64, error) {
	s := strings.ReplaceAll(raw, " ", "")
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
