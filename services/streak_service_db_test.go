package services

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swallowSafeAPI/internal/calendar"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load()
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL or DATABASE_URL not set, skipping database test")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	require.NoError(t, db.Ping(context.Background()))
	return db
}

func createTestUser(t *testing.T, db *pgxpool.Pool) uuid.UUID {
	ctx := context.Background()
	userID := uuid.New()
	email := fmt.Sprintf("test-streak-%s@example.com", userID)
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, clerk_id, email, username, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'Test', 'User', NOW(), NOW())
	`, userID, "clerk_test_"+userID.String(), email, "streaktester_"+userID.String()[:8])
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	})
	return userID
}

func TestStreakLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewStreakService(db)
	userID := createTestUser(t, db)
	ctx := context.Background()

	day := func(d, h int) time.Time {
		return time.Date(2024, 1, d, h, 0, 0, 0, calendar.ReferenceZone)
	}

	// First completion creates the record
	rec, err := svc.ApplyCompletion(ctx, userID, day(1, 10))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.TotalSessions)

	// Redelivered same-day event commits as a no-op and still returns
	// the full record, row timestamps included
	rec, err = svc.ApplyCompletion(ctx, userID, day(1, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.TotalSessions)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.False(t, rec.UpdatedAt.IsZero())

	// Next calendar day continues the streak
	rec, err = svc.ApplyCompletion(ctx, userID, day(2, 9))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 2, rec.TotalSessions)

	// Gap restarts at one, longest survives
	rec, err = svc.ApplyCompletion(ctx, userID, day(5, 9))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 3, rec.TotalSessions)

	// Sweep well past the grace window zeroes only current_streak
	reset, err := svc.SweepBrokenStreaks(ctx, day(8, 0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reset, 1)

	rec, err = svc.GetStreak(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
	assert.Equal(t, 2, rec.LongestStreak)
	assert.Equal(t, 3, rec.TotalSessions)
	require.NotNil(t, rec.LastCompletedAt)
	assert.True(t, calendar.SameDay(*rec.LastCompletedAt, day(5, 9)))
}

func TestSweepIgnoresZeroStreaks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewStreakService(db)
	userID := createTestUser(t, db)
	ctx := context.Background()

	old := time.Date(2023, 6, 1, 10, 0, 0, 0, calendar.ReferenceZone)
	_, err := db.Exec(ctx, `
		INSERT INTO streaks (user_id, current_streak, longest_streak, total_sessions, last_completed_at, created_at, updated_at)
		VALUES ($1, 0, 7, 40, $2, NOW(), NOW())
	`, userID, old)
	require.NoError(t, err)

	_, err = svc.SweepBrokenStreaks(ctx, time.Now())
	require.NoError(t, err)

	rec, err := svc.GetStreak(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
	assert.Equal(t, 7, rec.LongestStreak)
	assert.Equal(t, 40, rec.TotalSessions)
}

func TestGetStreakDefaultsToZeroRecord(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewStreakService(db)

	rec, err := svc.GetStreak(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CurrentStreak)
	assert.Equal(t, 0, rec.LongestStreak)
	assert.Equal(t, 0, rec.TotalSessions)
	assert.Nil(t, rec.LastCompletedAt)
}

func TestConcurrentCompletionsSameUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewStreakService(db)
	userID := createTestUser(t, db)
	ctx := context.Background()

	when := time.Date(2024, 3, 1, 12, 0, 0, 0, calendar.ReferenceZone)

	errCh := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := svc.ApplyCompletion(ctx, userID, when)
			errCh <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errCh)
	}

	// Row locking serializes the writers; exactly one application counts.
	rec, err := svc.GetStreak(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.CurrentStreak)
	assert.Equal(t, 1, rec.TotalSessions)
}

func TestConcurrentFirstCompletionsDistinctDays(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewStreakService(db)
	userID := createTestUser(t, db)
	ctx := context.Background()

	// No streak row exists yet; both writers must still serialize on the
	// same row lock so neither update is lost.
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, calendar.ReferenceZone)
	second := time.Date(2024, 3, 2, 12, 0, 0, 0, calendar.ReferenceZone)

	errCh := make(chan error, 2)
	for _, when := range []time.Time{first, second} {
		go func(at time.Time) {
			_, err := svc.ApplyCompletion(ctx, userID, at)
			errCh <- err
		}(when)
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errCh)
	}

	rec, err := svc.GetStreak(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.TotalSessions)
	// Arrival order decides the final streak: day 1 then day 2 extends to
	// 2, the reverse restarts at 1. Longest still reflects the peak.
	assert.Contains(t, []int{1, 2}, rec.CurrentStreak)
	assert.GreaterOrEqual(t, rec.LongestStreak, rec.CurrentStreak)
	require.NotNil(t, rec.LastCompletedAt)
}
