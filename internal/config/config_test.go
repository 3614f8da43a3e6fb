package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.AlertThreshold)
	assert.Equal(t, 60, cfg.WindowMinutes)
	assert.Equal(t, 30, cfg.CooldownMinutes)
	assert.True(t, cfg.NotificationsEnabled)
	assert.Equal(t, defaultAlertPhone, cfg.NotifyPhoneNumber)
	assert.Equal(t, "https://textbelt.com/text", cfg.SMSGatewayURL)
	assert.Equal(t, 10*time.Second, cfg.SMSTimeout)
}

func TestLoad_PositiveIntFallback(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{name: "Valid value", value: "7", expected: 7},
		{name: "Zero falls back", value: "0", expected: 3},
		{name: "Negative falls back", value: "-4", expected: 3},
		{name: "Garbage falls back", value: "many", expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRAIN_COMPLAINT_ALERT_THRESHOLD", tt.value)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.AlertThreshold)
		})
	}
}

func TestLoad_SMSDisabled(t *testing.T) {
	t.Setenv("TRAIN_COMPLAINT_SMS_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NotificationsEnabled)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Digest email without SMTP",
			env:  map[string]string{"DIGEST_EMAIL": "ops@railmind.local"},
		},
		{
			name: "Broken archive schedule",
			env:  map[string]string{"ARCHIVE_SCHEDULE": "every night"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
