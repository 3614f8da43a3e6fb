package itinerary

import (
	"context"

	"github.com/railmind/train-alert-bot/internal/models"
)

// StaticLookup serves a fixed set of itineraries
type StaticLookup map[string][]models.StationItineraryEntry

// Ensure StaticLookup implements Lookup
var _ Lookup = StaticLookup(nil)

func (s StaticLookup) GetStations(ctx context.Context, trainNumber string) ([]models.StationItineraryEntry, error) {
	entries := s[NormalizeTrainNumber(trainNumber)]
	out := make([]models.StationItineraryEntry, len(entries))
	copy(out, entries)
	return out, nil
}
