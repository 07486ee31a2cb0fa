package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"swallowSafeAPI/internal/calendar"
	"swallowSafeAPI/internal/types/streak"
	"swallowSafeAPI/middleware"
)

// Transaction conflicts are retried this many times before the caller
// sees the failure and applies its own retry policy.
const maxTxAttempts = 3

type StreakService struct {
	db *pgxpool.Pool
}

func NewStreakService(db *pgxpool.Pool) *StreakService {
	return &StreakService{db: db}
}

// ApplyCompletion applies one completion event to the user's streak
// record inside a single transaction. Delivery is at-least-once: a
// redelivered event for a day already counted commits as a no-op, so
// the operation is safe to retry. A nil record with a nil error means
// the user row vanished mid-flight and the event was dropped.
func (s *StreakService) ApplyCompletion(ctx context.Context, userID uuid.UUID, completedAt time.Time) (*streak.Record, error) {
	var rec *streak.Record
	var err error

	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		rec, err = s.applyOnce(ctx, userID, completedAt)
		if err == nil || !isRetryableTxError(err) {
			return rec, err
		}
		log.Printf("Streak: transaction conflict for user %s (attempt %d/%d): %v", userID, attempt, maxTxAttempts, err)
	}

	return nil, fmt.Errorf("streak update did not commit after %d attempts: %w", maxTxAttempts, err)
}

func (s *StreakService) applyOnce(ctx context.Context, userID uuid.UUID, completedAt time.Time) (*streak.Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin streak transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// FOR UPDATE cannot lock a row that does not exist yet, so two
	// concurrent first-ever completions would both read the zero record
	// and the loser would overwrite the winner. Seed the row first;
	// every writer then serializes on the same lock.
	_, err = tx.Exec(ctx, `
		INSERT INTO streaks (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			// User deleted while the event was in flight. Not an error
			// for the caller; the event has nowhere to land.
			log.Printf("Streak: user %s not found mid-transaction, dropping event", userID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to seed streak record: %w", err)
	}

	prev := streak.Record{UserID: userID}
	err = tx.QueryRow(ctx, `
		SELECT current_streak, longest_streak, total_sessions, last_completed_at, created_at, updated_at
		FROM streaks
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&prev.CurrentStreak, &prev.LongestStreak, &prev.TotalSessions, &prev.LastCompletedAt, &prev.CreatedAt, &prev.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Seeded row already cascade-deleted with its user.
			log.Printf("Streak: user %s not found mid-transaction, dropping event", userID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read streak record: %w", err)
	}

	next, applied := advance(prev, completedAt)
	if !applied {
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit streak no-op: %w", err)
		}
		middleware.ObserveCompletion(false)
		log.Printf("Streak: user %s already completed today, no change", userID)
		return &prev, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $2,
			longest_streak = $3,
			total_sessions = $4,
			last_completed_at = $5,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, next.CurrentStreak, next.LongestStreak, next.TotalSessions, next.LastCompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to write streak record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit streak update: %w", err)
	}

	middleware.ObserveCompletion(true)
	log.Printf("Streak: user %s now at %d (longest %d, %d sessions)", userID, next.CurrentStreak, next.LongestStreak, next.TotalSessions)
	return &next, nil
}

// advance computes the record that follows prev after a completion at
// completedAt. applied is false when the event falls on the same
// calendar day as the previous completion, i.e. a duplicate delivery.
// An event timestamped earlier than the previous completion by more
// than a day falls through to the restart branch.
func advance(prev streak.Record, completedAt time.Time) (next streak.Record, applied bool) {
	if prev.LastCompletedAt != nil && calendar.SameDay(completedAt, *prev.LastCompletedAt) {
		return prev, false
	}

	newStreak := 1
	if prev.LastCompletedAt != nil && calendar.IsNextDay(completedAt, *prev.LastCompletedAt) {
		newStreak = prev.CurrentStreak + 1
	}

	next = prev
	next.CurrentStreak = newStreak
	if newStreak > next.LongestStreak {
		next.LongestStreak = newStreak
	}
	next.TotalSessions++
	t := completedAt
	next.LastCompletedAt = &t
	return next, true
}

// SweepBrokenStreaks zeroes current_streak for every record whose last
// completion is more than a full day in the past. longest_streak,
// total_sessions and last_completed_at are left untouched. Returns the
// number of records actually reset.
func (s *StreakService) SweepBrokenStreaks(ctx context.Context, now time.Time) (int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, last_completed_at
		FROM streaks
		WHERE current_streak > 0
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to scan active streaks: %w", err)
	}
	defer rows.Close()

	var broken []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		var last *time.Time
		if err := rows.Scan(&userID, &last); err != nil {
			return 0, fmt.Errorf("failed to scan streak row: %w", err)
		}
		if last == nil {
			continue
		}
		if daysSinceCompletion(now, *last) > 1 {
			broken = append(broken, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating streak rows: %w", err)
	}

	if len(broken) == 0 {
		middleware.ObserveSweep(0)
		log.Println("Streak sweep: no broken streaks to reset")
		return 0, nil
	}

	// One batched write for the whole sweep. A completion that commits
	// between the scan above and this update can have its increment
	// overwritten by the stale zero; the next completion restarts the
	// streak at 1.
	tag, err := s.db.Exec(ctx, `
		UPDATE streaks SET current_streak = 0, updated_at = NOW()
		WHERE user_id = ANY($1)
	`, broken)
	if err != nil {
		return 0, fmt.Errorf("failed to reset broken streaks: %w", err)
	}

	applied := int(tag.RowsAffected())
	middleware.ObserveSweep(applied)
	if applied != len(broken) {
		log.Printf("Streak sweep: reset %d of %d selected records", applied, len(broken))
	} else {
		log.Printf("Streak sweep: reset %d broken streaks", applied)
	}
	return applied, nil
}

// daysSinceCompletion measures absolute elapsed time, not calendar
// days: 23:59 yesterday swept at 00:01 today counts as zero days. The
// asymmetry with the calendar-day logic in advance is deliberate.
func daysSinceCompletion(now, last time.Time) int {
	return int(math.Floor(now.Sub(last).Hours() / 24))
}

// GetStreak returns the user's streak record, or the zero record if
// they have never completed a session.
func (s *StreakService) GetStreak(ctx context.Context, userID uuid.UUID) (*streak.Record, error) {
	rec := &streak.Record{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT current_streak, longest_streak, total_sessions, last_completed_at, created_at, updated_at
		FROM streaks
		WHERE user_id = $1
	`, userID).Scan(&rec.CurrentStreak, &rec.LongestStreak, &rec.TotalSessions, &rec.LastCompletedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rec, nil
		}
		return nil, fmt.Errorf("failed to get streak record: %w", err)
	}
	return rec, nil
}

func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
