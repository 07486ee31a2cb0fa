package streak

import (
	"time"

	"github.com/google/uuid"
)

// Record is the per-user streak state. It is only ever written by the
// completion processor (on session events) and the breakage sweeper
// (resets to zero); everything else reads it.
type Record struct {
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	CurrentStreak   int        `json:"current_streak" db:"current_streak"`
	LongestStreak   int        `json:"longest_streak" db:"longest_streak"`
	TotalSessions   int        `json:"total_sessions" db:"total_sessions"`
	LastCompletedAt *time.Time `json:"last_completed_at" db:"last_completed_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
