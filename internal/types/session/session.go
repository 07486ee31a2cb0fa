package session

import (
	"time"

	"github.com/google/uuid"
)

// ExerciseSession is one completed swallowing-exercise session.
type ExerciseSession struct {
	ID              uuid.UUID `json:"id" db:"id"`
	UserID          uuid.UUID `json:"user_id" db:"user_id"`
	ExerciseType    string    `json:"exercise_type" db:"exercise_type"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	CompletedAt     time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

type LogSessionRequest struct {
	ExerciseType    string     `json:"exercise_type"`
	DurationSeconds int        `json:"duration_seconds"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}
