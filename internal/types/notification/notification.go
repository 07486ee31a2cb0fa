package notification

import (
	"time"

	"github.com/google/uuid"
)

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"` // "android", "ios"
}

// ReminderSettings controls the hourly exercise-reminder scheduler.
// ReminderHours holds hours of day (0-23) in the reference time zone.
type ReminderSettings struct {
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	ReminderHours []int     `json:"reminder_hours" db:"reminder_hours"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform"`
}

type UpdateSettingsRequest struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	ReminderHours *[]int `json:"reminder_hours,omitempty"`
}
