package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSameDay(t *testing.T) {
	morning := time.Date(2024, 1, 1, 10, 0, 0, 0, ReferenceZone)
	evening := time.Date(2024, 1, 1, 20, 0, 0, 0, ReferenceZone)
	nextDay := time.Date(2024, 1, 2, 0, 0, 1, 0, ReferenceZone)

	assert.True(t, SameDay(morning, evening))
	assert.True(t, SameDay(morning, morning))
	assert.False(t, SameDay(evening, nextDay))
}

func TestSameDayUsesReferenceZone(t *testing.T) {
	// 03:00 UTC on Jan 2 is still the evening of Jan 1 in New York.
	utc := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	nyEvening := time.Date(2024, 1, 1, 21, 0, 0, 0, ReferenceZone)

	assert.True(t, SameDay(utc, nyEvening))
}

func TestIsNextDay(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 23, 59, 0, 0, ReferenceZone)
	day2 := time.Date(2024, 1, 2, 0, 1, 0, 0, ReferenceZone)
	day3 := time.Date(2024, 1, 3, 12, 0, 0, 0, ReferenceZone)

	assert.True(t, IsNextDay(day2, day1))
	assert.False(t, IsNextDay(day3, day1))
	assert.False(t, IsNextDay(day1, day2))
	assert.False(t, IsNextDay(day1, day1))
}

func TestIsNextDayAcrossMonthBoundary(t *testing.T) {
	jan31 := time.Date(2024, 1, 31, 18, 0, 0, 0, ReferenceZone)
	feb1 := time.Date(2024, 2, 1, 9, 0, 0, 0, ReferenceZone)

	assert.True(t, IsNextDay(feb1, jan31))
}
