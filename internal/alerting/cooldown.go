package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railmind/train-alert-bot/internal/database"
)

// CooldownStatus reports whether a recent alert suppresses a new one
type CooldownStatus struct {
	InCooldown   bool
	PriorAlertID string
}

// CooldownGuard checks the alert trail for a recent alert on the same train
type CooldownGuard struct {
	alerts database.AlertStore
	now    func() time.Time
}

// NewCooldownGuard creates a guard over the alert store
func NewCooldownGuard(alerts database.AlertStore, now func() time.Time) *CooldownGuard {
	return &CooldownGuard{alerts: alerts, now: now}
}

// IsInCooldown looks up the newest alert for trainNumber created within the
// last cooldownMinutes. ignoreCooldown skips the lookup entirely.
func (g *CooldownGuard) IsInCooldown(ctx context.Context, trainNumber string, cooldownMinutes int, ignoreCooldown bool) (CooldownStatus, error) {
	if ignoreCooldown {
		return CooldownStatus{}, nil
	}

	alert, err := g.alerts.LatestAlertSince(ctx, trainNumber, g.Start(cooldownMinutes))
	if errors.Is(err, database.ErrNotFound) {
		return CooldownStatus{}, nil
	}
	if err != nil {
		return CooldownStatus{}, fmt.Errorf("failed to check cooldown for train %s: %w", trainNumber, err)
	}

	return CooldownStatus{InCooldown: true, PriorAlertID: alert.ID}, nil
}

// Start returns the earliest creation time that still counts as recent
func (g *CooldownGuard) Start(cooldownMinutes int) time.Time {
	return g.now().Add(-time.Duration(cooldownMinutes) * time.Minute)
}
