package alerting

import (
	"fmt"
	"strings"

	"github.com/railmind/train-alert-bot/internal/models"
)

const (
	messageIssueCount  = 2
	messageIssueLength = 48
)

// MessageInput carries everything the alert SMS is rendered from
type MessageInput struct {
	TrainNumber        string
	UniqueUsersCount   int
	WindowMinutes      int
	NextStations       []models.NextStationRef
	ComplaintSummaries []models.ComplaintSummary
	ImageURLs          []string
}

// BuildMessage renders the alert SMS. The output depends only on its input.
func BuildMessage(in MessageInput) string {
	nextStations := "N/A"
	if len(in.NextStations) > 0 {
		codes := make([]string, 0, len(in.NextStations))
		for _, station := range in.NextStations {
			if station.StationCode != "" {
				codes = append(codes, station.StationCode)
			} else {
				codes = append(codes, station.StationName)
			}
		}
		nextStations = strings.Join(codes, ", ")
	}

	issues := "N/A"
	if len(in.ComplaintSummaries) > 0 {
		limit := messageIssueCount
		if len(in.ComplaintSummaries) < limit {
			limit = len(in.ComplaintSummaries)
		}
		parts := make([]string, 0, limit)
		for i := 0; i < limit; i++ {
			parts = append(parts, fmt.Sprintf("%d) %s", i+1, ShortText(in.ComplaintSummaries[i].Description, messageIssueLength)))
		}
		issues = strings.Join(parts, " ")
	}

	imageHint := ""
	if len(in.ImageURLs) > 0 {
		imageHint = " Img: " + in.ImageURLs[0]
	}

	return fmt.Sprintf("[RailMind Alert] Train %s: %d users reported complaints in last %dm. Next stations: %s. Issues: %s.%s",
		in.TrainNumber, in.UniqueUsersCount, in.WindowMinutes, nextStations, issues, imageHint)
}
