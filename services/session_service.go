package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swallowSafeAPI/internal/types/session"
	"swallowSafeAPI/internal/types/streak"
)

// SessionService is the producer side of streak accounting: every
// logged session feeds one completion event into the streak service.
type SessionService struct {
	db      *pgxpool.Pool
	streaks *StreakService
}

func NewSessionService(db *pgxpool.Pool, streaks *StreakService) *SessionService {
	return &SessionService{db: db, streaks: streaks}
}

// LogSession records one completed exercise session and applies the
// completion to the user's streak. The returned record is nil when the
// streak update was dropped (user deleted mid-flight).
func (s *SessionService) LogSession(ctx context.Context, clerkID string, req *session.LogSessionRequest) (*session.ExerciseSession, *streak.Record, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", err)
	}

	completedAt := time.Now()
	if req.CompletedAt != nil {
		completedAt = *req.CompletedAt
	}

	sess := &session.ExerciseSession{
		ID:              uuid.New(),
		UserID:          userID,
		ExerciseType:    req.ExerciseType,
		DurationSeconds: req.DurationSeconds,
		CompletedAt:     completedAt,
	}

	query := `
		INSERT INTO exercise_sessions (id, user_id, exercise_type, duration_seconds, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err = s.db.QueryRow(ctx, query, sess.ID, sess.UserID, sess.ExerciseType, sess.DurationSeconds, sess.CompletedAt).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log session: %w", err)
	}

	rec, err := s.streaks.ApplyCompletion(ctx, userID, completedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update streak: %w", err)
	}

	return sess, rec, nil
}

// ListRecent returns the user's most recent sessions, newest first.
func (s *SessionService) ListRecent(ctx context.Context, clerkID string, limit int) ([]*session.ExerciseSession, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, exercise_type, duration_seconds, completed_at, created_at
		FROM exercise_sessions
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*session.ExerciseSession
	for rows.Next() {
		sess := &session.ExerciseSession{}
		err := rows.Scan(&sess.ID, &sess.UserID, &sess.ExerciseType, &sess.DurationSeconds, &sess.CompletedAt, &sess.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	if sessions == nil {
		sessions = []*session.ExerciseSession{}
	}

	return sessions, nil
}

// GetStreakByClerkID resolves the clerk id and reads the streak record.
func (s *SessionService) GetStreakByClerkID(ctx context.Context, clerkID string) (*streak.Record, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return s.streaks.GetStreak(ctx, userID)
}
