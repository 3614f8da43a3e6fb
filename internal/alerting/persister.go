package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/models"
)

// AlertPersister appends alerts to the trail
type AlertPersister struct {
	alerts database.AlertStore
}

// NewAlertPersister creates a persister over the alert store
func NewAlertPersister(alerts database.AlertStore) *AlertPersister {
	return &AlertPersister{alerts: alerts}
}

// Persist inserts alert unless the train already has an alert created at or
// after cooldownStart. When the insert loses, the existing alert is returned
// with inserted=false. A zero cooldownStart always inserts.
func (p *AlertPersister) Persist(ctx context.Context, alert models.Alert, cooldownStart time.Time) (models.Alert, bool, error) {
	inserted, err := p.alerts.InsertAlertIfAbsent(ctx, alert, cooldownStart)
	if err != nil {
		return models.Alert{}, false, err
	}
	if inserted {
		return alert, true, nil
	}

	existing, err := p.alerts.LatestAlertSince(ctx, alert.TrainNumber, cooldownStart)
	if err != nil {
		return models.Alert{}, false, fmt.Errorf("failed to load conflicting alert for train %s: %w", alert.TrainNumber, err)
	}
	return existing, false, nil
}
