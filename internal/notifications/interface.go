package notifications

import (
	"context"

	"github.com/railmind/train-alert-bot/internal/models"
)

// SMSNotifier defines the contract for alert SMS dispatch. Implementations
// report every failure through the returned outcome.
type SMSNotifier interface {
	Notify(ctx context.Context, phone, message string, forceSend, skipSend bool) models.NotificationOutcome
}

// DigestSender defines the contract for operator digest delivery
type DigestSender interface {
	SendDigest(digest *models.AlertDigest) error
}
