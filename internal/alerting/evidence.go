package alerting

import (
	"context"
	"sort"
	"strings"

	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	maxNextStations       = 3
	maxComplaintSummaries = 5
	maxEvidenceImages     = 5
	emptyDescription      = "No description"
)

// Evidence is the context bundle attached to a triggered alert
type Evidence struct {
	NextStations       []models.NextStationRef
	ComplaintSummaries []models.ComplaintSummary
	ImageURLs          []string
}

// EvidenceBuilder assembles alert evidence from the window and the itinerary
type EvidenceBuilder struct {
	itinerary itinerary.Lookup
}

// NewEvidenceBuilder creates an evidence builder
func NewEvidenceBuilder(lookup itinerary.Lookup) *EvidenceBuilder {
	return &EvidenceBuilder{itinerary: lookup}
}

// BuildEvidence derives upcoming stations, samples the newest complaints and
// collects their distinct images. complaints must already be newest first.
func (b *EvidenceBuilder) BuildEvidence(ctx context.Context, trainNumber, stationCode string, complaints []models.Complaint) Evidence {
	var nextStations []models.NextStationRef
	if b.itinerary != nil {
		entries, err := b.itinerary.GetStations(ctx, trainNumber)
		if err != nil {
			logrus.Warnf("Itinerary lookup failed for train %s: %v", trainNumber, err)
		} else {
			nextStations = PickNextStations(entries, stationCode, maxNextStations)
		}
	}

	summaries := SummarizeComplaints(complaints, maxComplaintSummaries)

	return Evidence{
		NextStations:       nonNil(nextStations),
		ComplaintSummaries: summaries,
		ImageURLs:          UniqueImageURLs(summaries, maxEvidenceImages),
	}
}

// PickNextStations returns up to limit stations after stationCode on the route.
// When the station is unknown or off-route the first limit stations are used.
func PickNextStations(entries []models.StationItineraryEntry, stationCode string, limit int) []models.NextStationRef {
	if len(entries) == 0 {
		return []models.NextStationRef{}
	}

	sorted := make([]models.StationItineraryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	current := normalizeCode(stationCode)
	start := 0
	if current != "" {
		for i, entry := range sorted {
			if normalizeCode(entry.StationCode) == current {
				start = i + 1
				break
			}
		}
	}

	end := start + limit
	if end > len(sorted) {
		end = len(sorted)
	}

	out := make([]models.NextStationRef, 0, end-start)
	for _, entry := range sorted[start:end] {
		out = append(out, models.NextStationRef{
			StationCode:    entry.StationCode,
			StationName:    entry.StationName,
			SequenceNumber: entry.SequenceNumber,
		})
	}
	return out
}

// SummarizeComplaints projects the first limit complaints into summaries
func SummarizeComplaints(complaints []models.Complaint, limit int) []models.ComplaintSummary {
	if len(complaints) > limit {
		complaints = complaints[:limit]
	}

	out := make([]models.ComplaintSummary, 0, len(complaints))
	for _, c := range complaints {
		out = append(out, models.ComplaintSummary{
			ComplaintID: c.ID,
			UserID:      c.UserID,
			Description: c.Description,
			ImageURLs:   nonNil(c.ImageURLs),
			StationCode: c.StationCode,
			CreatedAt:   c.CreatedAt,
		})
	}
	return out
}

// UniqueImageURLs walks summaries in order and keeps the first limit distinct URLs
func UniqueImageURLs(summaries []models.ComplaintSummary, limit int) []string {
	urls := make([]string, 0, limit)
	seen := make(map[string]struct{})

	for _, summary := range summaries {
		for _, url := range summary.ImageURLs {
			if url == "" {
				continue
			}
			if _, ok := seen[url]; ok {
				continue
			}
			seen[url] = struct{}{}
			urls = append(urls, url)
			if len(urls) >= limit {
				return urls
			}
		}
	}
	return urls
}

// ShortText collapses whitespace and truncates to maxLength runes, marking
// truncation with "...". Blank input renders as a placeholder.
func ShortText(value string, maxLength int) string {
	raw := strings.Join(strings.Fields(value), " ")
	if raw == "" {
		return emptyDescription
	}

	runes := []rune(raw)
	if len(runes) <= maxLength {
		return raw
	}

	cut := maxLength - 3
	if cut < 0 {
		cut = 0
	}
	return string(runes[:cut]) + "..."
}

func normalizeCode(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
