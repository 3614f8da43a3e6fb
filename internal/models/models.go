package models

import (
	"encoding/json"
	"time"
)

// Complaint is a passenger complaint as persisted by the intake system
type Complaint struct {
	ID          string    `json:"id"`
	TrainNumber string    `json:"train_number"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	StationCode string    `json:"station_code,omitempty"`
	ImageURLs   []string  `json:"image_urls"`
	CreatedAt   time.Time `json:"created_at"`
}

// StationItineraryEntry is one stop on a train's route
type StationItineraryEntry struct {
	TrainNumber    string `json:"train_number"`
	TrainName      string `json:"train_name,omitempty"`
	StationCode    string `json:"station_code"`
	StationName    string `json:"station_name"`
	SequenceNumber int    `json:"seq"`
}

// NextStationRef is a projection of an itinerary entry attached to an alert
type NextStationRef struct {
	StationCode    string `json:"station_code"`
	StationName    string `json:"station_name"`
	SequenceNumber int    `json:"seq"`
}

// ComplaintSummary is a sampled complaint carried as alert evidence
type ComplaintSummary struct {
	ComplaintID string    `json:"complaint_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	ImageURLs   []string  `json:"image_urls"`
	StationCode string    `json:"station_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NotificationStatus is the tri-state outcome of an SMS dispatch
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

// NotificationOutcome records what happened when an alert was dispatched
type NotificationOutcome struct {
	Status      NotificationStatus `json:"status"`
	Provider    string             `json:"provider"`
	Phone       string             `json:"phone"`
	Message     string             `json:"message"`
	RawResponse json.RawMessage    `json:"raw_response,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Alert is the immutable record written once per triggered spike
type Alert struct {
	ID                   string              `json:"id"`
	TrainNumber          string              `json:"train_number"`
	Threshold            int                 `json:"threshold"`
	WindowMinutes        int                 `json:"window_minutes"`
	UniqueUsersCount     int                 `json:"unique_users_count"`
	TotalComplaintsCount int                 `json:"total_complaints_count"`
	StationCode          string              `json:"station_code,omitempty"`
	NextStations         []NextStationRef    `json:"next_stations"`
	ComplaintIDs         []string            `json:"complaint_ids"`
	ComplaintSummaries   []ComplaintSummary  `json:"complaint_summaries"`
	ImageURLs            []string            `json:"image_urls"`
	Notification         NotificationOutcome `json:"notification"`
	CreatedAt            time.Time           `json:"created_at"`
}

// EvaluationOptions override parts of the spike rule for a single evaluation
type EvaluationOptions struct {
	IgnoreThreshold bool `json:"ignore_threshold"`
	IgnoreCooldown  bool `json:"ignore_cooldown"`
	ForceSend       bool `json:"force_send"`
	SkipSend        bool `json:"skip_send"`
}

// Reasons reported when an evaluation does not trigger
const (
	ReasonBelowThreshold     = "below_threshold"
	ReasonCooldownActive     = "cooldown_active"
	ReasonMissingTrainNumber = "missing_train_number"
	ReasonInternalError      = "internal_error"
)

// EvaluationResult is returned to the caller of the engine
type EvaluationResult struct {
	Triggered          bool               `json:"triggered"`
	Reason             string             `json:"reason,omitempty"`
	AlertID            string             `json:"alert_id,omitempty"`
	UniqueUsersCount   int                `json:"unique_users_count"`
	NotificationStatus NotificationStatus `json:"sms_status,omitempty"`
	Error              string             `json:"error,omitempty"`
}

// AlertDigest summarizes the alert trail over a reporting period
type AlertDigest struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	PeriodStart  time.Time      `json:"period_start"`
	PeriodEnd    time.Time      `json:"period_end"`
	TotalAlerts  int            `json:"total_alerts"`
	ByTrain      map[string]int `json:"by_train"`
	BySMSStatus  map[string]int `json:"by_sms_status"`
	RecentAlerts []Alert        `json:"recent_alerts"`
}
