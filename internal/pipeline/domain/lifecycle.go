package domain

import (
	"strings"

	"cloud.google.com/go/civil"
)

// Bucket places a booking's class date relative to today.
type Bucket string

const (
	BucketToday   Bucket = "today"
	BucketWeek    Bucket = "week"
	BucketPast    Bucket = "past"
	BucketFuture  Bucket = "future"
	BucketUnknown Bucket = "unknown"
)

// WeekWindowDays is how far ahead, inclusive, a date still counts as this week.
const WeekWindowDays = 7

// ParseClassDate parses a YYYY-MM-DD class date. ok is false for blank or invalid input.
func ParseClassDate(raw string) (civil.Date, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return civil.Date{}, false
	}
	d, err := civil.ParseDate(trimmed)
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}

// BucketFor classifies classDate against today, both as civil dates. Checks run in
// order: today, past, within the week window, future.
func BucketFor(classDate string, today civil.Date) Bucket {
	d, ok := ParseClassDate(classDate)
	if !ok || !today.IsValid() {
		return BucketUnknown
	}

	days := d.DaysSince(today)
	switch {
	case days == 0:
		return BucketToday
	case days < 0:
		return BucketPast
	case days <= WeekWindowDays:
		return BucketWeek
	default:
		return BucketFuture
	}
}
