package alerting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/stretchr/testify/assert"
)

type failingLookup struct{}

func (failingLookup) GetStations(ctx context.Context, trainNumber string) ([]models.StationItineraryEntry, error) {
	return nil, errors.New("itinerary unavailable")
}

func TestPickNextStations(t *testing.T) {
	entries := testRoute["107"]

	tests := []struct {
		name        string
		entries     []models.StationItineraryEntry
		stationCode string
		expected    []string
	}{
		{name: "Stations after the current one", entries: entries, stationCode: "THVM", expected: []string{"KRMI", "MAO", "CNO"}},
		{name: "Case and whitespace insensitive", entries: entries, stationCode: " krmi ", expected: []string{"MAO", "CNO", "KAWR"}},
		{name: "Near the end of the route", entries: entries, stationCode: "CNO", expected: []string{"KAWR"}},
		{name: "Terminal station", entries: entries, stationCode: "KAWR", expected: []string{}},
		{name: "Unknown station falls back to the start", entries: entries, stationCode: "NDLS", expected: []string{"THVM", "KRMI", "MAO"}},
		{name: "No station falls back to the start", entries: entries, stationCode: "", expected: []string{"THVM", "KRMI", "MAO"}},
		{name: "No itinerary", entries: nil, stationCode: "THVM", expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := PickNextStations(tt.entries, tt.stationCode, 3)

			codes := make([]string, 0, len(result))
			for _, r := range result {
				codes = append(codes, r.StationCode)
			}
			assert.Equal(t, tt.expected, codes)
		})
	}
}

func TestPickNextStations_DoesNotReorderInput(t *testing.T) {
	entries := testRoute["107"]
	first := entries[0].StationCode

	PickNextStations(entries, "THVM", 3)

	assert.Equal(t, first, entries[0].StationCode)
}

func TestShortText(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		maxLength int
		expected  string
	}{
		{name: "Short text unchanged", value: "AC not working", maxLength: 48, expected: "AC not working"},
		{name: "Whitespace collapsed", value: "  AC\n\tnot   working  ", maxLength: 48, expected: "AC not working"},
		{name: "Exactly max length", value: "abcdefgh", maxLength: 8, expected: "abcdefgh"},
		{name: "Truncated with ellipsis", value: "abcdefghij", maxLength: 8, expected: "abcde..."},
		{name: "Empty input", value: "", maxLength: 48, expected: "No description"},
		{name: "Blank input", value: " \n\t ", maxLength: 48, expected: "No description"},
		{name: "Multibyte runes", value: "पानी नहीं है कोच में", maxLength: 7, expected: "पानी..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShortText(tt.value, tt.maxLength))
		})
	}
}

func TestUniqueImageURLs(t *testing.T) {
	summaries := []models.ComplaintSummary{
		{ImageURLs: []string{"https://img/1", "https://img/2"}},
		{ImageURLs: []string{"https://img/2", ""}},
		{ImageURLs: nil},
		{ImageURLs: []string{"https://img/3", "https://img/4", "https://img/5", "https://img/6"}},
	}

	assert.Equal(t, []string{"https://img/1", "https://img/2", "https://img/3", "https://img/4", "https://img/5"},
		UniqueImageURLs(summaries, maxEvidenceImages))
	assert.Equal(t, []string{}, UniqueImageURLs(nil, maxEvidenceImages))
}

func TestEvidenceBuilder_BuildEvidence(t *testing.T) {
	now := time.Now()
	complaints := make([]models.Complaint, 0, 8)
	for i := 0; i < 8; i++ {
		complaints = append(complaints, models.Complaint{
			ID:          fmt.Sprintf("c%d", i),
			UserID:      fmt.Sprintf("u%d", i),
			Description: fmt.Sprintf("issue %d", i),
			ImageURLs:   []string{"https://img/shared", fmt.Sprintf("https://img/%d", i)},
			CreatedAt:   now.Add(-time.Duration(i) * time.Minute),
		})
	}

	t.Run("Caps summaries and images", func(t *testing.T) {
		evidence := NewEvidenceBuilder(testRoute).BuildEvidence(context.Background(), "107", "MAO", complaints)

		assert.Len(t, evidence.NextStations, 2)
		assert.Len(t, evidence.ComplaintSummaries, maxComplaintSummaries)
		assert.Equal(t, "c0", evidence.ComplaintSummaries[0].ComplaintID)
		assert.Equal(t, []string{"https://img/shared", "https://img/0", "https://img/1", "https://img/2", "https://img/3"}, evidence.ImageURLs)
	})

	t.Run("Lookup failure leaves stations empty", func(t *testing.T) {
		evidence := NewEvidenceBuilder(failingLookup{}).BuildEvidence(context.Background(), "107", "MAO", complaints[:1])

		assert.NotNil(t, evidence.NextStations)
		assert.Empty(t, evidence.NextStations)
		assert.Len(t, evidence.ComplaintSummaries, 1)
	})

	t.Run("Empty window", func(t *testing.T) {
		evidence := NewEvidenceBuilder(nil).BuildEvidence(context.Background(), "107", "", nil)

		assert.Empty(t, evidence.NextStations)
		assert.Empty(t, evidence.ComplaintSummaries)
		assert.Empty(t, evidence.ImageURLs)
	})
}

func TestBuildMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    MessageInput
		expected string
	}{
		{
			name: "Full evidence",
			input: MessageInput{
				TrainNumber:      "107",
				UniqueUsersCount: 5,
				WindowMinutes:    60,
				NextStations: []models.NextStationRef{
					{StationCode: "THVM"}, {StationName: "KARMALI"}, {StationCode: "MAO"},
				},
				ComplaintSummaries: []models.ComplaintSummary{
					{Description: "AC not working"},
					{Description: "  Toilet   dirty "},
					{Description: "Third issue is never shown"},
				},
				ImageURLs: []string{"https://img/1", "https://img/2"},
			},
			expected: "[RailMind Alert] Train 107: 5 users reported complaints in last 60m. Next stations: THVM, KARMALI, MAO. Issues: 1) AC not working 2) Toilet dirty. Img: https://img/1",
		},
		{
			name: "No evidence",
			input: MessageInput{
				TrainNumber:      "12051",
				UniqueUsersCount: 4,
				WindowMinutes:    30,
			},
			expected: "[RailMind Alert] Train 12051: 4 users reported complaints in last 30m. Next stations: N/A. Issues: N/A.",
		},
		{
			name: "Long and empty descriptions",
			input: MessageInput{
				TrainNumber:      "107",
				UniqueUsersCount: 4,
				WindowMinutes:    60,
				ComplaintSummaries: []models.ComplaintSummary{
					{Description: "The coach has been without electricity for the last three hours"},
					{Description: ""},
				},
			},
			expected: "[RailMind Alert] Train 107: 4 users reported complaints in last 60m. Next stations: N/A. Issues: 1) The coach has been without electricity for th... 2) No description.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildMessage(tt.input))
			assert.Equal(t, BuildMessage(tt.input), BuildMessage(tt.input))
		})
	}
}

func TestShouldTrigger(t *testing.T) {
	assert.False(t, ShouldTrigger(3, 3, false))
	assert.True(t, ShouldTrigger(4, 3, false))
	assert.True(t, ShouldTrigger(0, 3, true))
	assert.False(t, ShouldTrigger(0, 0, false))
	assert.True(t, ShouldTrigger(1, 0, false))
}
