package database

import (
	"context"
	"errors"
	"time"

	"github.com/railmind/train-alert-bot/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// ComplaintStore defines the complaint operations used by the engine and intake
type ComplaintStore interface {
	InsertComplaints(ctx context.Context, complaints []models.Complaint) error
	ComplaintsSince(ctx context.Context, trainNumber string, since time.Time) ([]models.Complaint, error)
}

// AlertStore defines the append-only alert trail
type AlertStore interface {
	LatestAlertSince(ctx context.Context, trainNumber string, since time.Time) (models.Alert, error)
	InsertAlertIfAbsent(ctx context.Context, alert models.Alert, since time.Time) (bool, error)
	GetAlert(ctx context.Context, id string) (models.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]models.Alert, error)
	CountAlerts(ctx context.Context, filter AlertFilter) (AlertCounts, error)
}

// AlertFilter narrows ListAlerts and CountAlerts. Zero values mean no
// constraint. Limit and Offset only apply to ListAlerts.
type AlertFilter struct {
	TrainNumber string
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

// AlertCounts tallies the alerts matching a filter
type AlertCounts struct {
	Total       int
	ByTrain     map[string]int
	BySMSStatus map[string]int
}
