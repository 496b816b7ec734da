package domain

import "time"

// Timeline is a gapless, strictly increasing hourly sequence of UTC
// instants covering [Start, End). It is immutable once built.
type Timeline struct {
	start time.Time
	hours int
}

// NewTimeline returns a timeline of hours instants beginning at start.
// The caller guarantees start is on the hour; use
// dataprocessing.BuildTimeline for validated construction.
func NewTimeline(start time.Time, hours int) *Timeline {
	if hours < 0 {
		hours = 0
	}
	return &Timeline{start: start.UTC(), hours: hours}
}

// Len returns the number of instants
func (t *Timeline) Len() int { return t.hours }

// Start returns the first instant
func (t *Timeline) Start() time.Time { return t.start }

// End returns the exclusive upper bound
func (t *Timeline) End() time.Time { return t.start.Add(time.Duration(t.hours) * time.Hour) }

// At returns the i-th instant
func (t *Timeline) At(i int) time.Time {
	return t.start.Add(time.Duration(i) * time.Hour)
}

// Index returns the position of instant on the timeline. It is arithmetic,
// so lookups cost the same for any timeline length.
func (t *Timeline) Index(instant time.Time) (int, bool) {
	if instant.Before(t.start) {
		return 0, false
	}
	d := instant.Sub(t.start)
	if d%time.Hour != 0 {
		return 0, false
	}
	i := d / time.Hour
	if i >= time.Duration(t.hours) {
		return 0, false
	}
	return int(i), true
}

// Contains reports whether instant lies in [Start, End)
func (t *Timeline) Contains(instant time.Time) bool {
	return !instant.Before(t.start) && instant.Before(t.End())
}

// Instants returns a copy of every instant on the timeline
func (t *Timeline) Instants() []time.Time {
	out := make([]time.Time, t.hours)
	for i := range out {
		out[i] = t.At(i)
	}
	return out
}
