package dataprocessing

import (
	"time"

	"mibelpanel/pkg/contracts/domain"
)

// CalendarFor derives calendar features from the UTC instant t
func CalendarFor(t time.Time) domain.CalendarFeatures {
	t = t.UTC()
	month := int(t.Month())
	dow := (int(t.Weekday()) + 6) % 7
	return domain.CalendarFeatures{
		Hour:      t.Hour(),
		DayOfWeek: dow,
		DayOfYear: t.YearDay(),
		Month:     month,
		Year:      t.Year(),
		Quarter:   (month-1)/3 + 1,
		IsWeekend: dow >= 5,
	}
}

// PolicyFlag is 1 when window applies to country at t
func PolicyFlag(t time.Time, country string, window domain.PolicyWindow) int {
	if window.Applies(t, country) {
		return 1
	}
	return 0
}

// EnrichFeatures fills the calendar features and policy flag of every row.
// Each row depends only on its own instant and country.
func EnrichFeatures(panel *domain.Panel, window domain.PolicyWindow) {
	for i := range panel.Rows {
		row := &panel.Rows[i]
		row.Calendar = CalendarFor(row.Instant)
		row.PolicyFlag = PolicyFlag(row.Instant, row.Country, window)
	}
}
