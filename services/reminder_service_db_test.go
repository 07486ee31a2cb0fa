package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swallowSafeAPI/internal/types/notification"
)

type capturingPushProvider struct {
	mu    sync.Mutex
	sends [][]notification.DeviceToken
}

func (p *capturingPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, tokens)
	return nil
}

func TestSendTestNotificationUsesRegisteredTokens(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewReminderService(db)
	provider := &capturingPushProvider{}
	svc.SetPushProvider(provider)

	userID := createTestUser(t, db)
	clerkID := "clerk_test_" + userID.String()
	ctx := context.Background()

	require.NoError(t, svc.RegisterDevice(ctx, clerkID, notification.RegisterDeviceRequest{
		Token: "fcm-token-ios", Platform: "ios",
	}))
	require.NoError(t, svc.RegisterDevice(ctx, clerkID, notification.RegisterDeviceRequest{
		Token: "fcm-token-android", Platform: "android",
	}))

	require.NoError(t, svc.SendTestNotification(ctx, clerkID))

	require.Len(t, provider.sends, 1)
	got := map[string]string{}
	for _, tok := range provider.sends[0] {
		got[tok.Token] = tok.Platform
	}
	assert.Equal(t, map[string]string{
		"fcm-token-ios":     "ios",
		"fcm-token-android": "android",
	}, got)
}

func TestSendTestNotificationWithoutTokens(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewReminderService(db)
	svc.SetPushProvider(&capturingPushProvider{})

	userID := createTestUser(t, db)
	clerkID := "clerk_test_" + userID.String()

	err := svc.SendTestNotification(context.Background(), clerkID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device tokens")
}
