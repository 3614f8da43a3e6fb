package itinerary

import (
	"context"

	"github.com/railmind/train-alert-bot/internal/models"
)

// Lookup defines the contract for train route lookups
type Lookup interface {
	GetStations(ctx context.Context, trainNumber string) ([]models.StationItineraryEntry, error)
}
