package domain

import (
	"database/sql"
	"time"
)

// TimestampKind says how the Timestamp of a SourceRecord must be read.
type TimestampKind int

const (
	// TimestampAbsolute is an instant that is already unambiguous.
	TimestampAbsolute TimestampKind = iota
	// TimestampLocal is a wall-clock reading in a named zone with DST.
	TimestampLocal
	// TimestampLocalOffset is a wall-clock reading with an explicit UTC offset.
	TimestampLocalOffset
)

// String returns the configuration name of the kind
func (k TimestampKind) String() string {
	switch k {
	case TimestampAbsolute:
		return "absolute"
	case TimestampLocal:
		return "local"
	case TimestampLocalOffset:
		return "local_offset"
	default:
		return "unknown"
	}
}

// ParseTimestampKind maps a configuration name onto a TimestampKind
func ParseTimestampKind(s string) (TimestampKind, bool) {
	switch s {
	case "", "absolute", "utc":
		return TimestampAbsolute, true
	case "local":
		return TimestampLocal, true
	case "local_offset":
		return TimestampLocalOffset, true
	}
	return TimestampAbsolute, false
}

// SourceRecord is a single observation as delivered by a source table.
// For local kinds only the wall-clock fields of Timestamp are meaningful;
// its Location is ignored.
type SourceRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Kind          TimestampKind   `json:"kind"`
	Zone          string          `json:"zone,omitempty"`
	OffsetSeconds int             `json:"offset_seconds,omitempty"`
	Key           string          `json:"key"`
	Counterpart   string          `json:"counterpart,omitempty"`
	Value         sql.NullFloat64 `json:"value"`
	Source        string          `json:"source"`
	// Seq is the receive order. Zero means unknown and defers to input position.
	Seq int64 `json:"seq,omitempty"`
}

// NormalizedRecord is an observation pinned to an hour of the UTC timeline.
type NormalizedRecord struct {
	Instant time.Time       `json:"instant"`
	Key     string          `json:"key"`
	Value   sql.NullFloat64 `json:"value"`
}

// FlowRecord is a directed cross-border exchange at one instant.
type FlowRecord struct {
	Instant     time.Time       `json:"instant"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	Value       sql.NullFloat64 `json:"value"`
}

// Missing returns the missing-value marker.
func Missing() sql.NullFloat64 {
	return sql.NullFloat64{}
}

// Present wraps an observed value.
func Present(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}
