package domain

import "time"

// QualityReport summarizes completeness of a built panel. It is produced
// for every build and never blocks one.
type QualityReport struct {
	BuildID      string             `json:"build_id"`
	Start        time.Time          `json:"start"`
	End          time.Time          `json:"end"`
	Countries    []string           `json:"countries"`
	ExpectedRows int                `json:"expected_rows"`
	Coverage     []CoverageEntry    `json:"coverage"`
	Events       map[ReasonCode]int `json:"events"`
	Sources      []SourceStats      `json:"sources"`
	Samples      []Event            `json:"samples,omitempty"`
	Flags        []string           `json:"flags,omitempty"`
}

// CoverageEntry is the completeness of one column for one country.
type CoverageEntry struct {
	Family      string  `json:"family"`
	Column      string  `json:"column"`
	Country     string  `json:"country"`
	Expected    int     `json:"expected"`
	Present     int     `json:"present"`
	Missing     int     `json:"missing"`
	MissingRate float64 `json:"missing_rate"`
	Flagged     bool    `json:"flagged"`
	Gaps        []Gap   `json:"gaps,omitempty"`
}

// Gap is a run of consecutive missing hours, both ends inclusive.
type Gap struct {
	From  time.Time `json:"from"`
	To    time.Time `json:"to"`
	Hours int       `json:"hours"`
}

// SourceStats counts what happened to the records of one source. Dropped is
// Read minus Normalized; Events also counts resolutions such as
// AMBIGUOUS_RESOLVED, which keep the record.
type SourceStats struct {
	Source     string             `json:"source"`
	Read       int                `json:"read"`
	Normalized int                `json:"normalized"`
	Dropped    int                `json:"dropped"`
	Events     map[ReasonCode]int `json:"events,omitempty"`
}

// EventCount returns the number of events recorded for reason
func (r *QualityReport) EventCount(reason ReasonCode) int {
	if r == nil || r.Events == nil {
		return 0
	}
	return r.Events[reason]
}

// Entry returns the coverage entry for (column, country)
func (r *QualityReport) Entry(column, country string) (CoverageEntry, bool) {
	for _, e := range r.Coverage {
		if e.Column == column && e.Country == country {
			return e, true
		}
	}
	return CoverageEntry{}, false
}
