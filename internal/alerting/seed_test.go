package alerting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func skippedOutcome() models.NotificationOutcome {
	return models.NotificationOutcome{Status: models.NotificationSkipped, Provider: "textbelt", Phone: testPhone}
}

func TestService_SeedAndEvaluate(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("Notify", testPhone, mock.AnythingOfType("string"), false, true).Return(skippedOutcome())

	result, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{})
	require.NoError(t, err)

	assert.Equal(t, "107", result.TrainNumber)
	assert.Equal(t, 5, result.InsertedComplaints)
	assert.Equal(t, 5, result.UniqueUsersUsed)
	assert.Equal(t, 3, result.Threshold)
	assert.False(t, result.SMSRequested)
	assert.Len(t, result.ComplaintIDs, 5)
	assert.True(t, result.AlertResult.Triggered)
	assert.Equal(t, 5, result.AlertResult.UniqueUsersCount)
	assert.Equal(t, models.NotificationSkipped, result.AlertResult.NotificationStatus)

	complaints, err := h.store.ComplaintsSince(context.Background(), "107", h.clock.Add(-time.Duration(h.service.config.WindowMinutes)*time.Minute))
	require.NoError(t, err)
	require.Len(t, complaints, 5)
	for _, c := range complaints {
		assert.True(t, strings.HasPrefix(c.UserID, "mock-alert-user-"))
		assert.Contains(t, c.Description, "[MOCK-ALERT-")
		assert.Len(t, c.ImageURLs, 1)
		assert.NotEmpty(t, c.StationCode)
	}
	assert.True(t, complaints[0].CreatedAt.After(complaints[4].CreatedAt))

	second, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{})
	require.NoError(t, err)
	assert.False(t, second.AlertResult.Triggered)
	assert.Equal(t, models.ReasonCooldownActive, second.AlertResult.Reason)
	assert.Equal(t, result.AlertResult.AlertID, second.AlertResult.AlertID)
}

func TestService_SeedAndEvaluate_ForceAndSend(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("Notify", testPhone, mock.AnythingOfType("string"), true, false).Return(sentOutcome())

	first, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{TrainNumber: " 12051 ", ComplaintCount: 8, SendSMS: true, ForceAlert: true})
	require.NoError(t, err)
	second, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{TrainNumber: "12051", SendSMS: true, ForceAlert: true})
	require.NoError(t, err)

	assert.Equal(t, "12051", first.TrainNumber)
	assert.Equal(t, 8, first.InsertedComplaints)
	assert.True(t, first.AlertResult.Triggered)
	assert.True(t, second.AlertResult.Triggered)
	assert.Equal(t, models.NotificationSent, second.AlertResult.NotificationStatus)
	h.notifier.AssertNumberOfCalls(t, "Notify", 2)

	alerts, err := h.store.ListAlerts(context.Background(), database.AlertFilter{TrainNumber: "12051"})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
}

func TestService_SeedAndEvaluate_LargeCountStaysInWindow(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("Notify", testPhone, mock.AnythingOfType("string"), false, true).Return(skippedOutcome())

	// 200 complaints at 45s apart would run well past the 60 minute window
	result, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{ComplaintCount: 200})
	require.NoError(t, err)
	assert.Equal(t, 200, result.InsertedComplaints)
	assert.Equal(t, 200, result.AlertResult.UniqueUsersCount)

	complaints, err := h.store.ComplaintsSince(context.Background(), "107", time.Time{})
	require.NoError(t, err)
	require.Len(t, complaints, 200)

	windowStart := h.clock.Add(-time.Duration(h.service.config.WindowMinutes) * time.Minute)
	for _, c := range complaints {
		assert.False(t, c.CreatedAt.After(h.clock), "complaint %s dated %s is after now", c.ID, c.CreatedAt)
		assert.True(t, c.CreatedAt.After(windowStart), "complaint %s dated %s is outside the window", c.ID, c.CreatedAt)
	}
}

func TestService_SeedAndEvaluate_RejectsOversizedRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.SeedAndEvaluate(context.Background(), SeedRequest{ComplaintCount: MaxSeedComplaints + 1})

	assert.ErrorIs(t, err, ErrInvalidSeedRequest)
	complaints, err := h.store.ComplaintsSince(context.Background(), "107", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, complaints)
	h.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
