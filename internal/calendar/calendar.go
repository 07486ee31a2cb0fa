package calendar

import (
	"log"
	"time"
)

// ReferenceZone is the civil time zone all streak day-boundary decisions
// use, regardless of where the server or the user is located.
var ReferenceZone *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Printf("calendar: failed to load America/New_York, falling back to UTC: %v", err)
		loc = time.UTC
	}
	ReferenceZone = loc
}

// SameDay reports whether a and b fall on the same civil calendar day
// in the reference zone.
func SameDay(a, b time.Time) bool {
	a = a.In(ReferenceZone)
	b = b.In(ReferenceZone)
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// IsNextDay reports whether the calendar day of a is exactly one day
// after the calendar day of b.
func IsNextDay(a, b time.Time) bool {
	return SameDay(a.In(ReferenceZone).AddDate(0, 0, -1), b)
}
