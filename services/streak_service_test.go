package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swallowSafeAPI/internal/calendar"
	"swallowSafeAPI/internal/types/streak"
)

func at(day int, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, calendar.ReferenceZone)
}

func TestAdvanceFirstCompletion(t *testing.T) {
	prev := streak.Record{UserID: uuid.New()}

	next, applied := advance(prev, at(1, 10))

	require.True(t, applied)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 1, next.LongestStreak)
	assert.Equal(t, 1, next.TotalSessions)
	require.NotNil(t, next.LastCompletedAt)
	assert.Equal(t, at(1, 10), *next.LastCompletedAt)
}

func TestAdvanceSameDayIsNoOp(t *testing.T) {
	first := at(1, 10)
	prev := streak.Record{
		CurrentStreak:   3,
		LongestStreak:   5,
		TotalSessions:   12,
		LastCompletedAt: &first,
	}

	next, applied := advance(prev, at(1, 20))

	assert.False(t, applied)
	assert.Equal(t, prev, next)
}

func TestAdvanceIsIdempotentUnderRedelivery(t *testing.T) {
	prev := streak.Record{}

	once, applied := advance(prev, at(1, 10))
	require.True(t, applied)

	// Redelivered event, same calendar day
	twice, applied := advance(once, at(1, 10))
	assert.False(t, applied)
	assert.Equal(t, once, twice)
}

func TestAdvanceConsecutiveDayGrows(t *testing.T) {
	last := at(1, 10)
	prev := streak.Record{
		CurrentStreak:   4,
		LongestStreak:   4,
		TotalSessions:   9,
		LastCompletedAt: &last,
	}

	next, applied := advance(prev, at(2, 9))

	require.True(t, applied)
	assert.Equal(t, 5, next.CurrentStreak)
	assert.Equal(t, 5, next.LongestStreak)
	assert.Equal(t, 10, next.TotalSessions)
}

func TestAdvanceGapRestartsAtOne(t *testing.T) {
	last := at(2, 9)
	prev := streak.Record{
		CurrentStreak:   2,
		LongestStreak:   2,
		TotalSessions:   2,
		LastCompletedAt: &last,
	}

	next, applied := advance(prev, at(5, 9))

	require.True(t, applied)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 2, next.LongestStreak, "longest streak survives the reset")
	assert.Equal(t, 3, next.TotalSessions)
}

func TestAdvanceOutOfOrderTimestampRestarts(t *testing.T) {
	// An event older than the last completion by more than a day falls
	// through to the restart branch rather than being rejected.
	last := at(10, 9)
	prev := streak.Record{
		CurrentStreak:   6,
		LongestStreak:   6,
		TotalSessions:   6,
		LastCompletedAt: &last,
	}

	next, applied := advance(prev, at(3, 9))

	require.True(t, applied)
	assert.Equal(t, 1, next.CurrentStreak)
	assert.Equal(t, 6, next.LongestStreak)
}

func TestAdvanceMonotonicity(t *testing.T) {
	rec := streak.Record{}
	days := []int{1, 2, 3, 3, 7, 8, 9, 10, 10, 11, 20}

	prevLongest := 0
	for _, d := range days {
		next, applied := advance(rec, at(d, 12))
		if applied {
			rec = next
		}
		assert.GreaterOrEqual(t, rec.LongestStreak, rec.CurrentStreak)
		assert.GreaterOrEqual(t, rec.LongestStreak, prevLongest)
		prevLongest = rec.LongestStreak
	}

	assert.Equal(t, 1, rec.CurrentStreak) // day 20 restarted after the gap
	assert.Equal(t, 5, rec.LongestStreak) // days 7..11
	assert.Equal(t, 9, rec.TotalSessions) // duplicates on 3 and 10 not counted
}

// Scenario chain: new user, same-day duplicate, next day, gap.
func TestAdvanceScenarioChain(t *testing.T) {
	rec := streak.Record{}

	rec, applied := advance(rec, at(1, 10))
	require.True(t, applied)
	assert.Equal(t, 1, rec.CurrentStreak)

	same, applied := advance(rec, at(1, 20))
	assert.False(t, applied)
	assert.Equal(t, rec, same)

	rec, applied = advance(rec, at(2, 9))
	require.True(t, applied)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 2, rec.TotalSessions)

	rec, applied = advance(rec, at(5, 9))
	require.True(t, applied)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 3, rec.TotalSessions)
}

func TestDaysSinceCompletion(t *testing.T) {
	base := at(1, 0)

	assert.Equal(t, 0, daysSinceCompletion(base.Add(2*time.Minute), base))
	assert.Equal(t, 0, daysSinceCompletion(base.Add(23*time.Hour+59*time.Minute), base))
	assert.Equal(t, 1, daysSinceCompletion(base.Add(24*time.Hour), base))
	assert.Equal(t, 1, daysSinceCompletion(base.Add(36*time.Hour), base))
	assert.Equal(t, 2, daysSinceCompletion(base.Add(48*time.Hour), base))
	assert.Equal(t, 2, daysSinceCompletion(base.Add(63*time.Hour), base))
}

func TestSweepThresholdElapsedNotCivil(t *testing.T) {
	// Completed 23:59 yesterday, swept 00:01 today: two civil days but
	// only two elapsed minutes. The sweeper must not select it.
	last := time.Date(2024, 1, 1, 23, 59, 0, 0, calendar.ReferenceZone)
	now := time.Date(2024, 1, 2, 0, 1, 0, 0, calendar.ReferenceZone)

	assert.Equal(t, 0, daysSinceCompletion(now, last))
	assert.False(t, daysSinceCompletion(now, last) > 1)
}

func TestRetryableTxErrorDetection(t *testing.T) {
	assert.False(t, isRetryableTxError(nil))
	assert.False(t, isRetryableTxError(assert.AnError))
}
