package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swallowSafeAPI/internal/calendar"
	"swallowSafeAPI/internal/types/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// ReminderService fans out the hourly exercise reminders. The
// scheduling collaborator decides when to invoke it; this side only
// selects who is due at the given hour and sends.
type ReminderService struct {
	db           *pgxpool.Pool
	pushProvider PushNotificationProvider
}

func NewReminderService(db *pgxpool.Pool) *ReminderService {
	return &ReminderService{db: db}
}

// SetPushProvider injects the real FCM provider from main.go
func (s *ReminderService) SetPushProvider(provider PushNotificationProvider) {
	s.pushProvider = provider
}

type reminderTarget struct {
	userID    uuid.UUID
	firstName string
	tokens    []notification.DeviceToken
}

// RunHourlyReminders sends an exercise reminder to every user whose
// settings include the current hour in the reference time zone.
// Returns the number of users notified.
func (s *ReminderService) RunHourlyReminders(ctx context.Context, now time.Time) (int, error) {
	if s.pushProvider == nil {
		log.Println("Reminders: no push provider configured, skipping run")
		return 0, nil
	}

	hour := now.In(calendar.ReferenceZone).Hour()

	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.first_name, dt.token, dt.platform
		FROM users u
		JOIN notification_settings ns ON ns.user_id = u.id
		JOIN device_tokens dt ON dt.user_id = u.id
		WHERE ns.enabled = true AND $1 = ANY(ns.reminder_hours)
		ORDER BY u.id
	`, hour)
	if err != nil {
		return 0, fmt.Errorf("failed to query reminder targets: %w", err)
	}
	defer rows.Close()

	targets := make(map[uuid.UUID]*reminderTarget)
	var order []uuid.UUID
	for rows.Next() {
		var userID uuid.UUID
		var firstName string
		var token notification.DeviceToken
		if err := rows.Scan(&userID, &firstName, &token.Token, &token.Platform); err != nil {
			return 0, fmt.Errorf("failed to scan reminder target: %w", err)
		}
		t, ok := targets[userID]
		if !ok {
			t = &reminderTarget{userID: userID, firstName: firstName}
			targets[userID] = t
			order = append(order, userID)
		}
		t.tokens = append(t.tokens, token)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("error iterating reminder targets: %w", err)
	}

	if len(order) == 0 {
		log.Printf("Reminders: no users to notify at hour %d", hour)
		return 0, nil
	}

	// Bounded fan-out; 5 concurrent sends is plenty for now.
	sem := make(chan struct{}, 5)
	var wg sync.WaitGroup
	var mu sync.Mutex
	notified := 0

	for _, id := range order {
		t := targets[id]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			if err := s.sendExerciseReminder(sendCtx, t); err != nil {
				log.Printf("Reminders: failed for user %s: %v", t.userID, err)
				return
			}
			mu.Lock()
			notified++
			mu.Unlock()
		}()
	}
	wg.Wait()

	log.Printf("Reminders: notified %d of %d users at hour %d", notified, len(order), hour)
	return notified, nil
}

func (s *ReminderService) sendExerciseReminder(ctx context.Context, t *reminderTarget) error {
	body := "Your daily swallowing exercises are ready."
	if t.firstName != "" {
		body = fmt.Sprintf("%s, your daily swallowing exercises are ready.", t.firstName)
	}
	return s.pushProvider.SendPush(ctx, t.tokens, "Time for your exercises!", body, map[string]any{
		"type": "exercise_reminder",
	})
}

// SendTestNotification pushes a reminder to the caller's own devices.
func (s *ReminderService) SendTestNotification(ctx context.Context, clerkID string) error {
	if s.pushProvider == nil {
		return fmt.Errorf("push provider not configured")
	}

	userID, firstName, err := s.getUser(ctx, clerkID)
	if err != nil {
		return err
	}

	tokens, err := s.getDeviceTokens(ctx, userID)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no device tokens registered")
	}

	return s.sendExerciseReminder(ctx, &reminderTarget{userID: userID, firstName: firstName, tokens: tokens})
}

func (s *ReminderService) getDeviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device tokens: %w", err)
	}
	return tokens, nil
}

// RegisterDevice stores an FCM device token for the user. Re-registering
// the same token just refreshes its platform.
func (s *ReminderService) RegisterDevice(ctx context.Context, clerkID string, req notification.RegisterDeviceRequest) error {
	userID, _, err := s.getUser(ctx, clerkID)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO device_tokens (user_id, token, platform, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, token)
		DO UPDATE SET platform = $3
	`
	if _, err := s.db.Exec(ctx, query, userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

// GetSettings returns the user's reminder settings, defaulting to a
// disabled row created on first read.
func (s *ReminderService) GetSettings(ctx context.Context, clerkID string) (*notification.ReminderSettings, error) {
	userID, _, err := s.getUser(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	settings := &notification.ReminderSettings{UserID: userID}
	err = s.db.QueryRow(ctx, `
		SELECT enabled, reminder_hours, updated_at
		FROM notification_settings
		WHERE user_id = $1
	`, userID).Scan(&settings.Enabled, &settings.ReminderHours, &settings.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.createDefaultSettings(ctx, userID)
		}
		return nil, fmt.Errorf("failed to get reminder settings: %w", err)
	}
	return settings, nil
}

func (s *ReminderService) UpdateSettings(ctx context.Context, clerkID string, req *notification.UpdateSettingsRequest) (*notification.ReminderSettings, error) {
	current, err := s.GetSettings(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if req.Enabled != nil {
		current.Enabled = *req.Enabled
	}
	if req.ReminderHours != nil {
		for _, h := range *req.ReminderHours {
			if h < 0 || h > 23 {
				return nil, fmt.Errorf("invalid reminder hour: %d", h)
			}
		}
		current.ReminderHours = *req.ReminderHours
	}

	err = s.db.QueryRow(ctx, `
		UPDATE notification_settings
		SET enabled = $2, reminder_hours = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`, current.UserID, current.Enabled, current.ReminderHours).Scan(&current.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder settings: %w", err)
	}
	return current, nil
}

func (s *ReminderService) createDefaultSettings(ctx context.Context, userID uuid.UUID) (*notification.ReminderSettings, error) {
	settings := &notification.ReminderSettings{
		UserID:        userID,
		Enabled:       false,
		ReminderHours: []int{},
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO notification_settings (user_id, enabled, reminder_hours, updated_at)
		VALUES ($1, false, '{}', NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = $1
		RETURNING enabled, reminder_hours, updated_at
	`, userID).Scan(&settings.Enabled, &settings.ReminderHours, &settings.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}
	return settings, nil
}

func (s *ReminderService) getUser(ctx context.Context, clerkID string) (uuid.UUID, string, error) {
	var userID uuid.UUID
	var firstName string
	err := s.db.QueryRow(ctx, `SELECT id, first_name FROM users WHERE clerk_id = $1`, clerkID).Scan(&userID, &firstName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", fmt.Errorf("user not found")
		}
		return uuid.Nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	return userID, firstName, nil
}
