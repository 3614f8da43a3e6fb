package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/railmind/train-alert-bot/internal/config"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// ProviderTextbelt names the SMS gateway recorded on every outcome
const ProviderTextbelt = "textbelt"

const (
	reasonSkippedByRequest = "sms_skipped_by_request"
	reasonDisabled         = "sms_disabled"
	genericProviderFailure = "SMS provider returned failure"
	genericTransportError  = "SMS provider error"
)

// Service sends alert SMS through a Textbelt-compatible gateway
type Service struct {
	client     *resty.Client
	gatewayURL string
	apiKey     string
	enabled    bool
}

// Ensure Service implements SMSNotifier
var _ SMSNotifier = (*Service)(nil)

// textbeltResponse is the subset of the gateway reply the engine reads
type textbeltResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	TextID  string `json:"textId"`
}

// NewService creates a new SMS notification service
func NewService(cfg *config.Config) *Service {
	timeout := cfg.SMSTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Service{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", "RailMind-Train-Alerts/1.0"),
		gatewayURL: cfg.SMSGatewayURL,
		apiKey:     cfg.SMSGatewayKey,
		enabled:    cfg.NotificationsEnabled,
	}
}

// Notify sends message to phone and maps the gateway reply to an outcome
func (s *Service) Notify(ctx context.Context, phone, message string, forceSend, skipSend bool) models.NotificationOutcome {
	outcome := models.NotificationOutcome{
		Provider: ProviderTextbelt,
		Phone:    phone,
		Message:  message,
	}

	if skipSend {
		outcome.Status = models.NotificationSkipped
		outcome.RawResponse = reasonPayload(reasonSkippedByRequest)
		return outcome
	}

	if !s.enabled && !forceSend {
		outcome.Status = models.NotificationSkipped
		outcome.RawResponse = reasonPayload(reasonDisabled)
		return outcome
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"phone":   phone,
			"message": message,
			"key":     s.apiKey,
		}).
		Post(s.gatewayURL)

	if err != nil {
		logrus.Errorf("SMS gateway request failed: %v", err)
		outcome.Status = models.NotificationFailed
		outcome.Error = err.Error()
		if outcome.Error == "" {
			outcome.Error = genericTransportError
		}
		return outcome
	}

	body := resp.Body()
	outcome.RawResponse = rawJSON(body)

	var parsed textbeltResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.IsError() {
		outcome.Status = models.NotificationFailed
		switch {
		case decodeErr == nil && parsed.Error != "":
			outcome.Error = parsed.Error
		default:
			outcome.Error = fmt.Sprintf("SMS gateway returned status %d", resp.StatusCode())
		}
		logrus.Errorf("SMS gateway returned status %d: %s", resp.StatusCode(), outcome.Error)
		return outcome
	}

	if decodeErr == nil && parsed.Success {
		outcome.Status = models.NotificationSent
		logrus.WithField("text_id", parsed.TextID).Info("Alert SMS sent")
		return outcome
	}

	outcome.Status = models.NotificationFailed
	outcome.Error = genericProviderFailure
	if decodeErr == nil && parsed.Error != "" {
		outcome.Error = parsed.Error
	}
	logrus.Warnf("SMS gateway rejected alert: %s", outcome.Error)
	return outcome
}

func reasonPayload(reason string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"reason": reason})
	return data
}

// rawJSON keeps the body as-is when it is JSON and wraps it as a string otherwise
func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	data, _ := json.Marshal(string(body))
	return data
}
