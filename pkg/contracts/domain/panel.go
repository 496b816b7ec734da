package domain

import (
	"database/sql"
	"slices"
	"time"
)

// Scope says which panel key a series is joined on.
type Scope int

const (
	// ScopeCountry series are keyed by (instant, country).
	ScopeCountry Scope = iota
	// ScopeMarket series are keyed by instant only and apply to every country row.
	ScopeMarket
)

// String returns the scope name used in reports
func (s Scope) String() string {
	if s == ScopeMarket {
		return "market"
	}
	return "country"
}

// Series is one metric column ready to be joined onto the panel.
type Series struct {
	Family  string
	Column  string
	Scope   Scope
	Records []NormalizedRecord
}

// Column describes a metric column of the panel
type Column struct {
	Name   string `json:"name"`
	Family string `json:"family"`
	Scope  Scope  `json:"scope"`
}

// CalendarFeatures are derived from the UTC instant of a row.
// DayOfWeek runs from 0 (Monday) to 6 (Sunday).
type CalendarFeatures struct {
	Hour      int  `json:"hour"`
	DayOfWeek int  `json:"day_of_week"`
	DayOfYear int  `json:"day_of_year"`
	Month     int  `json:"month"`
	Year      int  `json:"year"`
	Quarter   int  `json:"quarter"`
	IsWeekend bool `json:"is_weekend"`
}

// PanelRow is one (instant, country) observation of the panel. Metrics is
// aligned with Panel.Columns.
type PanelRow struct {
	Instant    time.Time
	Country    string
	Metrics    []sql.NullFloat64
	Calendar   CalendarFeatures
	PolicyFlag int
}

// Panel is the assembled hourly panel. Rows are ordered country-major:
// row countryIndex*Timeline.Len()+instantIndex.
type Panel struct {
	Timeline  *Timeline
	Countries []string
	Columns   []Column
	Rows      []PanelRow
}

// ColumnIndex returns the position of the named metric column, or -1
func (p *Panel) ColumnIndex(name string) int {
	return slices.IndexFunc(p.Columns, func(c Column) bool { return c.Name == name })
}

// ColumnNames returns the metric column names in panel order
func (p *Panel) ColumnNames() []string {
	names := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		names[i] = c.Name
	}
	return names
}

// Row returns the row for (country, instant)
func (p *Panel) Row(country string, instant time.Time) (*PanelRow, bool) {
	ci := slices.Index(p.Countries, country)
	if ci < 0 {
		return nil, false
	}
	ti, ok := p.Timeline.Index(instant)
	if !ok {
		return nil, false
	}
	return &p.Rows[ci*p.Timeline.Len()+ti], true
}

// Value returns the cell for (country, instant, column)
func (p *Panel) Value(country string, instant time.Time, column string) (sql.NullFloat64, bool) {
	row, ok := p.Row(country, instant)
	if !ok {
		return sql.NullFloat64{}, false
	}
	col := p.ColumnIndex(column)
	if col < 0 {
		return sql.NullFloat64{}, false
	}
	return row.Metrics[col], true
}

// PolicyWindow is a half-open UTC interval during which a regulatory
// regime applies to the listed countries.
type PolicyWindow struct {
	Name      string    `json:"name" yaml:"name"`
	Start     time.Time `json:"start" yaml:"start"`
	End       time.Time `json:"end" yaml:"end"`
	Countries []string  `json:"countries" yaml:"countries"`
}

// Applies reports whether the window covers country at instant
func (w PolicyWindow) Applies(instant time.Time, country string) bool {
	if instant.Before(w.Start) || !instant.Before(w.End) {
		return false
	}
	return slices.Contains(w.Countries, country)
}

// IberianException is the window of the Iberian gas price cap.
func IberianException() PolicyWindow {
	return PolicyWindow{
		Name:      "iberian_exception",
		Start:     time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Countries: []string{"ES", "PT"},
	}
}

// BuildRequest is the input of a panel build. Start and End are UTC hour
// boundaries of the half-open range [Start, End).
type BuildRequest struct {
	Start     time.Time    `json:"start"`
	End       time.Time    `json:"end"`
	Countries []string     `json:"countries" validate:"required,min=1,unique,dive,len=2,uppercase"`
	Policy    PolicyWindow `json:"policy"`
}
