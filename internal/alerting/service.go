package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/railmind/train-alert-bot/internal/notifications"
	"github.com/sirupsen/logrus"
)

const persistTimeout = 5 * time.Second

// State is a step of a single evaluation
type State string

const (
	StateAggregating      State = "AGGREGATING"
	StateEvaluating       State = "EVALUATING"
	StateBelowThreshold   State = "BELOW_THRESHOLD"
	StateCooldownBlocked  State = "COOLDOWN_BLOCKED"
	StateBuildingEvidence State = "BUILDING_EVIDENCE"
	StateNotifying        State = "NOTIFYING"
	StatePersisting       State = "PERSISTING"
	StateDone             State = "DONE"
	StateError            State = "ERROR"
)

// Service evaluates complaints for spikes and raises train alerts
type Service struct {
	config     *config.Config
	complaints database.ComplaintStore
	alerts     database.AlertStore
	itinerary  itinerary.Lookup
	notifier   notifications.SMSNotifier

	aggregator *Aggregator
	cooldown   *CooldownGuard
	evidence   *EvidenceBuilder
	persister  *AlertPersister
	locks      *trainLocks

	now     func() time.Time
	newID   func() string
	metrics *Metrics
	mu      sync.RWMutex
}

// Metrics holds engine counters
type Metrics struct {
	Evaluations     int            `json:"evaluations"`
	Triggered       int            `json:"triggered"`
	Outcomes        map[string]int `json:"outcomes"`
	SMSStatus       map[string]int `json:"sms_status"`
	LastEvaluation  time.Time      `json:"last_evaluation"`
	LastAlertAt     time.Time      `json:"last_alert_at,omitempty"`
	LastRunDuration string         `json:"last_run_duration"`
}

// NewService creates a new alerting service
func NewService(cfg *config.Config, complaints database.ComplaintStore, alerts database.AlertStore,
	lookup itinerary.Lookup, notifier notifications.SMSNotifier) *Service {
	s := &Service{
		config:     cfg,
		complaints: complaints,
		alerts:     alerts,
		itinerary:  lookup,
		notifier:   notifier,
		evidence:   NewEvidenceBuilder(lookup),
		persister:  NewAlertPersister(alerts),
		locks:      newTrainLocks(),
		now:        time.Now,
		newID:      uuid.NewString,
		metrics: &Metrics{
			Outcomes:  make(map[string]int),
			SMSStatus: make(map[string]int),
		},
	}

	clock := func() time.Time { return s.now() }
	s.aggregator = NewAggregator(complaints, clock)
	s.cooldown = NewCooldownGuard(alerts, clock)

	return s
}

// evaluation carries the data produced by each step of one run
type evaluation struct {
	complaint models.Complaint
	options   models.EvaluationOptions
	train     string
	state     State
	log       *logrus.Entry

	aggregate WindowAggregate
	evidence  Evidence
	outcome   models.NotificationOutcome
}

func (e *evaluation) enter(state State) {
	e.state = state
	e.log.WithField("state", state).Debug("Evaluation step")
}

// EvaluateAndAlert runs the spike pipeline for the complaint's train. It never
// returns an error: every failure is reported through the result.
func (s *Service) EvaluateAndAlert(ctx context.Context, complaint models.Complaint, opts models.EvaluationOptions) (result models.EvaluationResult) {
	start := time.Now()
	trainNumber := itinerary.NormalizeTrainNumber(complaint.TrainNumber)

	run := &evaluation{
		complaint: complaint,
		options:   opts,
		train:     trainNumber,
		log: logrus.WithFields(logrus.Fields{
			"train_number": trainNumber,
			"complaint_id": complaint.ID,
		}),
	}

	defer func() {
		if r := recover(); r != nil {
			run.log.Errorf("Evaluation panicked in state %s: %v", run.state, r)
			result = models.EvaluationResult{
				Reason:           models.ReasonInternalError,
				UniqueUsersCount: run.aggregate.UniqueUsersCount,
				Error:            fmt.Sprint(r),
			}
		}
		s.record(result, time.Since(start))
	}()

	if trainNumber == "" {
		return models.EvaluationResult{Reason: models.ReasonMissingTrainNumber}
	}

	if s.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.EvaluationTimeout)
		defer cancel()
	}

	unlock, err := s.locks.Lock(ctx, trainNumber)
	if err != nil {
		return s.fail(run, fmt.Errorf("waiting for train lock: %w", err))
	}
	defer unlock()

	return s.evaluate(ctx, run)
}

func (s *Service) evaluate(ctx context.Context, run *evaluation) models.EvaluationResult {
	threshold := s.config.AlertThreshold
	windowMinutes := s.config.WindowMinutes
	cooldownMinutes := s.config.CooldownMinutes

	run.enter(StateAggregating)
	aggregate, err := s.aggregator.Aggregate(ctx, run.train, windowMinutes)
	if err != nil {
		return s.fail(run, err)
	}
	run.aggregate = aggregate

	run.enter(StateEvaluating)
	if !ShouldTrigger(aggregate.UniqueUsersCount, threshold, run.options.IgnoreThreshold) {
		run.enter(StateBelowThreshold)
		return models.EvaluationResult{
			Reason:           models.ReasonBelowThreshold,
			UniqueUsersCount: aggregate.UniqueUsersCount,
		}
	}

	status, err := s.cooldown.IsInCooldown(ctx, run.train, cooldownMinutes, run.options.IgnoreCooldown)
	if err != nil {
		return s.fail(run, err)
	}
	if status.InCooldown {
		run.enter(StateCooldownBlocked)
		return models.EvaluationResult{
			Reason:           models.ReasonCooldownActive,
			AlertID:          status.PriorAlertID,
			UniqueUsersCount: aggregate.UniqueUsersCount,
		}
	}

	run.enter(StateBuildingEvidence)
	stationCode := strings.TrimSpace(run.complaint.StationCode)
	if stationCode == "" && len(aggregate.Complaints) > 0 {
		stationCode = aggregate.Complaints[0].StationCode
	}
	run.evidence = s.evidence.BuildEvidence(ctx, run.train, stationCode, aggregate.Complaints)

	run.enter(StateNotifying)
	message := BuildMessage(MessageInput{
		TrainNumber:        run.train,
		UniqueUsersCount:   aggregate.UniqueUsersCount,
		WindowMinutes:      windowMinutes,
		NextStations:       run.evidence.NextStations,
		ComplaintSummaries: run.evidence.ComplaintSummaries,
		ImageURLs:          run.evidence.ImageURLs,
	})
	run.outcome = s.notifier.Notify(ctx, s.config.NotifyPhoneNumber, message, run.options.ForceSend, run.options.SkipSend)

	run.enter(StatePersisting)
	complaintIDs := make([]string, 0, len(aggregate.Complaints))
	for _, c := range aggregate.Complaints {
		complaintIDs = append(complaintIDs, c.ID)
	}

	alert := models.Alert{
		ID:                   s.newID(),
		TrainNumber:          run.train,
		Threshold:            threshold,
		WindowMinutes:        windowMinutes,
		UniqueUsersCount:     aggregate.UniqueUsersCount,
		TotalComplaintsCount: aggregate.TotalComplaintsCount,
		StationCode:          stationCode,
		NextStations:         run.evidence.NextStations,
		ComplaintIDs:         complaintIDs,
		ComplaintSummaries:   run.evidence.ComplaintSummaries,
		ImageURLs:            run.evidence.ImageURLs,
		Notification:         run.outcome,
		CreatedAt:            s.now().UTC(),
	}

	var cooldownStart time.Time
	if !run.options.IgnoreCooldown {
		cooldownStart = s.cooldown.Start(cooldownMinutes)
	}

	// The SMS has already gone out, so the record is written even when the
	// evaluation deadline expired during dispatch.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	stored, inserted, err := s.persister.Persist(persistCtx, alert, cooldownStart)
	if err != nil {
		run.log.WithField("sms_status", run.outcome.Status).
			Error("Alert notification dispatched but the alert could not be persisted")
		return s.fail(run, err)
	}
	if !inserted {
		run.enter(StateCooldownBlocked)
		run.log.WithFields(logrus.Fields{
			"alert_id":   stored.ID,
			"sms_status": run.outcome.Status,
		}).Warn("Another alert for this train was persisted first")
		return models.EvaluationResult{
			Reason:           models.ReasonCooldownActive,
			AlertID:          stored.ID,
			UniqueUsersCount: aggregate.UniqueUsersCount,
		}
	}

	run.enter(StateDone)
	run.log.WithFields(logrus.Fields{
		"alert_id":     stored.ID,
		"unique_users": stored.UniqueUsersCount,
		"complaints":   stored.TotalComplaintsCount,
		"sms_status":   stored.Notification.Status,
	}).Info("Train complaint spike alert raised")

	return models.EvaluationResult{
		Triggered:          true,
		AlertID:            stored.ID,
		UniqueUsersCount:   aggregate.UniqueUsersCount,
		NotificationStatus: stored.Notification.Status,
	}
}

func (s *Service) fail(run *evaluation, err error) models.EvaluationResult {
	failedIn := run.state
	run.enter(StateError)
	run.log.WithField("failed_in", failedIn).Errorf("Train complaint alert evaluation failed: %v", err)
	return models.EvaluationResult{
		Reason:           models.ReasonInternalError,
		UniqueUsersCount: run.aggregate.UniqueUsersCount,
		Error:            err.Error(),
	}
}

func (s *Service) record(result models.EvaluationResult, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Evaluations++
	s.metrics.LastEvaluation = s.now()
	s.metrics.LastRunDuration = duration.String()

	if result.Triggered {
		s.metrics.Triggered++
		s.metrics.Outcomes["triggered"]++
		s.metrics.SMSStatus[string(result.NotificationStatus)]++
		s.metrics.LastAlertAt = s.metrics.LastEvaluation
		return
	}
	s.metrics.Outcomes[result.Reason]++
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}
