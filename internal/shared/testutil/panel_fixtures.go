package testutil

import (
	"database/sql"
	"time"

	"mibelpanel/pkg/contracts/domain"
)

// Missing marks a fixture cell with no observation
var Missing = sql.NullFloat64{}

// Value returns a present fixture cell
func Value(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// PanelFixture builds small panels for writer and report tests.
type PanelFixture struct {
	start     time.Time
	hours     int
	countries []string
	columns   []domain.Column
	policy    *domain.PolicyWindow
	fill      func(country string, instant time.Time, column int) sql.NullFloat64
}

// NewPanelFixture starts a fixture of hours instants from start
func NewPanelFixture(start time.Time, hours int, countries ...string) *PanelFixture {
	return &PanelFixture{
		start:     start.UTC(),
		hours:     hours,
		countries: countries,
		fill: func(string, time.Time, int) sql.NullFloat64 {
			return Missing
		},
	}
}

// WithColumn adds a country-scoped metric column
func (f *PanelFixture) WithColumn(name, family string) *PanelFixture {
	f.columns = append(f.columns, domain.Column{Name: name, Family: family, Scope: domain.ScopeCountry})
	return f
}

// WithMarketColumn adds a market-scoped metric column
func (f *PanelFixture) WithMarketColumn(name, family string) *PanelFixture {
	f.columns = append(f.columns, domain.Column{Name: name, Family: family, Scope: domain.ScopeMarket})
	return f
}

// WithPolicy sets the window used for PolicyFlag
func (f *PanelFixture) WithPolicy(w domain.PolicyWindow) *PanelFixture {
	f.policy = &w
	return f
}

// WithValues sets the cell generator
func (f *PanelFixture) WithValues(fill func(country string, instant time.Time, column int) sql.NullFloat64) *PanelFixture {
	f.fill = fill
	return f
}

// Build materializes the panel in country-major order
func (f *PanelFixture) Build() *domain.Panel {
	timeline := domain.NewTimeline(f.start, f.hours)
	panel := &domain.Panel{
		Timeline:  timeline,
		Countries: f.countries,
		Columns:   f.columns,
		Rows:      make([]domain.PanelRow, 0, len(f.countries)*f.hours),
	}
	for _, country := range f.countries {
		for i := 0; i < f.hours; i++ {
			instant := timeline.At(i)
			metrics := make([]sql.NullFloat64, len(f.columns))
			for j := range f.columns {
				metrics[j] = f.fill(country, instant, j)
			}
			row := domain.PanelRow{
				Instant:  instant,
				Country:  country,
				Metrics:  metrics,
				Calendar: Calendar(instant),
			}
			if f.policy != nil && f.policy.Applies(instant, country) {
				row.PolicyFlag = 1
			}
			panel.Rows = append(panel.Rows, row)
		}
	}
	return panel
}

// Calendar computes the calendar features of a UTC instant
func Calendar(instant time.Time) domain.CalendarFeatures {
	t := instant.UTC()
	dow := (int(t.Weekday()) + 6) % 7
	return domain.CalendarFeatures{
		Hour:      t.Hour(),
		DayOfWeek: dow,
		DayOfYear: t.YearDay(),
		Month:     int(t.Month()),
		Year:      t.Year(),
		Quarter:   (int(t.Month())-1)/3 + 1,
		IsWeekend: dow >= 5,
	}
}
