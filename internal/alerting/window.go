package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/models"
)

// WindowAggregate is the set of complaints for a train inside the trailing window
type WindowAggregate struct {
	Complaints           []models.Complaint
	UniqueUsersCount     int
	TotalComplaintsCount int
}

// Aggregator reads the trailing complaint window for a train
type Aggregator struct {
	complaints database.ComplaintStore
	now        func() time.Time
}

// NewAggregator creates a window aggregator over the complaint store
func NewAggregator(complaints database.ComplaintStore, now func() time.Time) *Aggregator {
	return &Aggregator{complaints: complaints, now: now}
}

// Aggregate returns complaints created within the last windowMinutes, newest
// first, with the number of distinct complainants.
func (a *Aggregator) Aggregate(ctx context.Context, trainNumber string, windowMinutes int) (WindowAggregate, error) {
	windowStart := a.now().Add(-time.Duration(windowMinutes) * time.Minute)

	complaints, err := a.complaints.ComplaintsSince(ctx, trainNumber, windowStart)
	if err != nil {
		return WindowAggregate{}, fmt.Errorf("failed to aggregate complaints for train %s: %w", trainNumber, err)
	}

	users := make(map[string]struct{}, len(complaints))
	for _, c := range complaints {
		users[c.UserID] = struct{}{}
	}

	return WindowAggregate{
		Complaints:           complaints,
		UniqueUsersCount:     len(users),
		TotalComplaintsCount: len(complaints),
	}, nil
}

// ShouldTrigger reports whether the unique complainant count is a spike.
// The comparison is strict: exactly threshold users does not trigger.
func ShouldTrigger(uniqueUsersCount, threshold int, ignoreThreshold bool) bool {
	return ignoreThreshold || uniqueUsersCount > threshold
}
