package dataprocessing

import (
	"fmt"
	"time"

	apperrors "mibelpanel/internal/errors"
	"mibelpanel/pkg/contracts/domain"
)

// BuildTimeline returns the hourly UTC timeline covering [start, end).
// Both bounds must sit on the hour and end must come after start.
func BuildTimeline(start, end time.Time) (*domain.Timeline, error) {
	start, end = start.UTC(), end.UTC()

	if !end.After(start) {
		return nil, apperrors.NewInvalidRangeError(
			fmt.Sprintf("end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}
	if !onHour(start) {
		return nil, apperrors.NewInvalidRangeError(
			fmt.Sprintf("start %s is not on an hour boundary", start.Format(time.RFC3339Nano)))
	}
	if !onHour(end) {
		return nil, apperrors.NewInvalidRangeError(
			fmt.Sprintf("end %s is not on an hour boundary", end.Format(time.RFC3339Nano)))
	}

	hours := int(end.Sub(start) / time.Hour)
	return domain.NewTimeline(start, hours), nil
}

// DayRange converts inclusive calendar dates into the half-open range used
// by BuildTimeline, so 2023-01-01..2023-01-31 covers all of January.
func DayRange(firstDay, lastDay time.Time) (time.Time, time.Time) {
	y, m, d := firstDay.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	y, m, d = lastDay.Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return start, end
}

func onHour(t time.Time) bool {
	return t.Truncate(time.Hour).Equal(t)
}
