package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/intake"
	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultAlertLimit = 50
	maxBodyBytes      = 1 << 20
	auditJobTimeout   = 5 * time.Minute
)

// Engine is the alerting surface exposed over HTTP
type Engine interface {
	GetMetrics() string
	SeedAndEvaluate(ctx context.Context, req alerting.SeedRequest) (alerting.SeedResult, error)
}

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueDepth reports how many complaints wait for evaluation
type QueueDepth interface {
	Pending() int
}

// AuditJobs are the manually triggerable exports
type AuditJobs interface {
	RunArchive(ctx context.Context) error
	RunDigest(ctx context.Context) error
}

// Dependencies wires the handlers to the rest of the bot
type Dependencies struct {
	Engine   Engine
	Receiver intake.ComplaintReceiver
	Alerts   database.AlertStore
	DB       Pinger
	Queue    QueueDepth
	Audit    AuditJobs
}

// NewRouter registers every endpoint on a gorilla/mux router
func NewRouter(deps Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthCheckHandler(deps.DB)).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(deps.Engine, deps.Queue)).Methods("GET")
	router.HandleFunc("/complaints", complaintHandler(deps.Receiver)).Methods("POST")
	router.HandleFunc("/alerts", listAlertsHandler(deps.Alerts)).Methods("GET")
	router.HandleFunc("/alerts/seed", seedHandler(deps.Engine)).Methods("POST")
	router.HandleFunc("/alerts/{id}", getAlertHandler(deps.Alerts)).Methods("GET")
	if deps.Audit != nil {
		router.HandleFunc("/trigger", triggerHandler(deps.Audit)).Methods("POST")
	}

	return router
}

func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		}

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logrus.Errorf("Health check failed: %v", err)
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["error"] = err.Error()
			}
		}

		writeJSON(w, status, body)
	}
}

func metricsHandler(engine Engine, queue QueueDepth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if queue == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(engine.GetMetrics()))
			return
		}

		metrics := make(map[string]interface{})
		if err := json.Unmarshal([]byte(engine.GetMetrics()), &metrics); err != nil {
			logrus.Errorf("Failed to decode engine metrics: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read metrics")
			return
		}
		metrics["queue_pending"] = queue.Pending()

		writeJSON(w, http.StatusOK, metrics)
	}
}

func complaintHandler(receiver intake.ComplaintReceiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.Complaint
		if err := decodeBody(w, r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid complaint body: "+err.Error())
			return
		}

		complaint, err := receiver.Receive(r.Context(), body)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, map[string]string{
				"complaint_id": complaint.ID,
				"status":       "queued",
			})
		case errors.Is(err, intake.ErrInvalidComplaint):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, alerting.ErrQueueFull), errors.Is(err, alerting.ErrDispatcherClosed):
			logrus.Warnf("Complaint %s stored but not queued: %v", complaint.ID, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"complaint_id": complaint.ID,
				"status":       "stored",
				"error":        err.Error(),
			})
		default:
			logrus.Errorf("Failed to receive complaint: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to store complaint")
		}
	}
}

func listAlertsHandler(alerts database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		limit := defaultAlertLimit
		if raw := query.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}
		if limit > database.MaxListLimit {
			limit = database.MaxListLimit
		}

		list, err := alerts.ListAlerts(r.Context(), database.AlertFilter{
			TrainNumber: itinerary.NormalizeTrainNumber(query.Get("train")),
			Limit:       limit,
		})
		if err != nil {
			logrus.Errorf("Failed to list alerts: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to list alerts")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"alerts": list,
			"count":  len(list),
		})
	}
}

func getAlertHandler(alerts database.AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		alert, err := alerts.GetAlert(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		if err != nil {
			logrus.Errorf("Failed to load alert %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "failed to load alert")
			return
		}

		writeJSON(w, http.StatusOK, alert)
	}
}

func seedHandler(engine Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req alerting.SeedRequest
		if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid seed body: "+err.Error())
			return
		}

		result, err := engine.SeedAndEvaluate(r.Context(), req)
		if errors.Is(err, alerting.ErrInvalidSeedRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			logrus.Errorf("Seeding mock alert failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func triggerHandler(audit AuditJobs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditJobTimeout)
			defer cancel()

			if err := audit.RunArchive(ctx); err != nil {
				logrus.Errorf("Manual alert archive failed: %v", err)
			}
			if err := audit.RunDigest(ctx); err != nil {
				logrus.Errorf("Manual alert digest failed: %v", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"message": "Audit export triggered"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": strings.TrimSpace(message)})
}
