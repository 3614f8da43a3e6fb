package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultSeedTrain = "107"
	seedSpacing      = 45 * time.Second

	// MaxSeedComplaints caps the complaints one seed request may write
	MaxSeedComplaints = 500
)

// ErrInvalidSeedRequest is returned for seed requests that are refused
var ErrInvalidSeedRequest = errors.New("invalid seed request")

var seedDescriptions = []string{
	"AC not working in coach and passengers are uncomfortable.",
	"Toilet is dirty and no water available in the compartment.",
	"Lights are flickering repeatedly causing inconvenience.",
	"Coach cleaning required urgently near berth area.",
	"Food quality is poor and service is delayed.",
	"Security concern due to suspicious activity in coach.",
}

// SeedRequest describes a synthetic spike to fabricate
type SeedRequest struct {
	TrainNumber    string `json:"train_number"`
	ComplaintCount int    `json:"complaints_count"`
	SendSMS        bool   `json:"send_sms"`
	ForceAlert     bool   `json:"force_alert"`
}

// SeedResult reports the fabricated complaints and the evaluation outcome
type SeedResult struct {
	TrainNumber        string                  `json:"train_number"`
	InsertedComplaints int                     `json:"inserted_complaints"`
	UniqueUsersUsed    int                     `json:"unique_users_used"`
	Threshold          int                     `json:"threshold"`
	ForceAlert         bool                    `json:"force_alert"`
	SMSRequested       bool                    `json:"sms_requested"`
	AlertResult        models.EvaluationResult `json:"alert_result"`
	ComplaintIDs       []string                `json:"complaint_ids"`
}

// SeedAndEvaluate inserts one synthetic complaint per synthetic user spread
// across the trailing window, then evaluates the newest one. At least
// threshold+2 complaints are written so an unforced run crosses the threshold.
// Every complaint is dated at or before now.
func (s *Service) SeedAndEvaluate(ctx context.Context, req SeedRequest) (SeedResult, error) {
	if req.ComplaintCount > MaxSeedComplaints {
		return SeedResult{}, fmt.Errorf("%w: complaints_count %d exceeds %d", ErrInvalidSeedRequest, req.ComplaintCount, MaxSeedComplaints)
	}

	trainNumber := itinerary.NormalizeTrainNumber(req.TrainNumber)
	if trainNumber == "" {
		trainNumber = defaultSeedTrain
	}

	threshold := s.config.AlertThreshold
	count := threshold + 2
	if req.ComplaintCount > count {
		count = req.ComplaintCount
	}

	windowMinutes := s.config.WindowMinutes
	offsetMinutes := windowMinutes - 1
	if offsetMinutes < 1 {
		offsetMinutes = 1
	}

	var stations []models.StationItineraryEntry
	if s.itinerary != nil {
		entries, err := s.itinerary.GetStations(ctx, trainNumber)
		if err != nil {
			logrus.Warnf("Seeding train %s without itinerary: %v", trainNumber, err)
		} else {
			stations = entries
		}
	}

	now := s.now()
	runID := now.UnixMilli()
	span := time.Duration(offsetMinutes) * time.Minute
	baseline := now.Add(-span)
	spacing := seedSpacing
	if perComplaint := span / time.Duration(count); perComplaint < spacing {
		spacing = perComplaint
	}

	complaints := make([]models.Complaint, 0, count)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var stationCode string
		if len(stations) > 0 {
			stationCode = stations[i%len(stations)].StationCode
		}

		c := models.Complaint{
			ID:          s.newID(),
			TrainNumber: trainNumber,
			UserID:      fmt.Sprintf("mock-alert-user-%d", i+1),
			Description: fmt.Sprintf("%s [MOCK-ALERT-%d-%d]", seedDescriptions[i%len(seedDescriptions)], runID, i+1),
			StationCode: stationCode,
			ImageURLs:   []string{fmt.Sprintf("https://picsum.photos/seed/mock-train-alert-%d-%d/640/360", runID, i+1)},
			CreatedAt:   baseline.Add(time.Duration(i) * spacing).UTC(),
		}
		complaints = append(complaints, c)
		ids = append(ids, c.ID)
	}

	if err := s.complaints.InsertComplaints(ctx, complaints); err != nil {
		return SeedResult{}, fmt.Errorf("failed to insert seed complaints: %w", err)
	}
	logrus.Infof("Seeded %d mock complaints for train %s", len(complaints), trainNumber)

	result := s.EvaluateAndAlert(ctx, complaints[len(complaints)-1], models.EvaluationOptions{
		IgnoreThreshold: req.ForceAlert,
		IgnoreCooldown:  req.ForceAlert,
		ForceSend:       req.SendSMS,
		SkipSend:        !req.SendSMS,
	})

	return SeedResult{
		TrainNumber:        trainNumber,
		InsertedComplaints: len(complaints),
		UniqueUsersUsed:    count,
		Threshold:          threshold,
		ForceAlert:         req.ForceAlert,
		SMSRequested:       req.SendSMS,
		AlertResult:        result,
		ComplaintIDs:       ids,
	}, nil
}
