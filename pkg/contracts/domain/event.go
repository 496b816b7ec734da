package domain

import "time"

// ReasonCode classifies a record that was dropped or altered on its way to the panel.
type ReasonCode string

const (
	ReasonSkippedLocalGap     ReasonCode = "SKIPPED_LOCAL_GAP"
	ReasonAmbiguousResolved   ReasonCode = "AMBIGUOUS_RESOLVED"
	ReasonDuplicateResolved   ReasonCode = "DUPLICATE_RESOLVED"
	ReasonOffHourGrid         ReasonCode = "OFF_HOUR_GRID"
	ReasonUnknownZone         ReasonCode = "UNKNOWN_ZONE"
	ReasonOutOfRange          ReasonCode = "OUT_OF_RANGE"
	ReasonInactiveKey         ReasonCode = "INACTIVE_KEY"
	ReasonUngroupedLocation   ReasonCode = "UNGROUPED_LOCATION"
	ReasonMalformedFlowRecord ReasonCode = "MALFORMED_FLOW_RECORD"
)

// ReasonCodes lists every code in report order
var ReasonCodes = []ReasonCode{
	ReasonSkippedLocalGap,
	ReasonAmbiguousResolved,
	ReasonDuplicateResolved,
	ReasonOffHourGrid,
	ReasonUnknownZone,
	ReasonOutOfRange,
	ReasonInactiveKey,
	ReasonUngroupedLocation,
	ReasonMalformedFlowRecord,
}

// Event records one occurrence of a ReasonCode. Instant is zero when the
// record never resolved to an instant.
type Event struct {
	Reason    ReasonCode `json:"reason"`
	Source    string     `json:"source"`
	Key       string     `json:"key"`
	Timestamp time.Time  `json:"timestamp"`
	Instant   time.Time  `json:"instant,omitempty"`
}
