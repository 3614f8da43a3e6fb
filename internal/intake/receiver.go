package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/itinerary"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrInvalidComplaint is returned for complaints that cannot be stored
var ErrInvalidComplaint = errors.New("invalid complaint")

// Submitter queues a stored complaint for evaluation
type Submitter interface {
	Submit(complaint models.Complaint, opts models.EvaluationOptions) error
}

// ComplaintReceiver accepts complaints from any intake channel
type ComplaintReceiver interface {
	Receive(ctx context.Context, complaint models.Complaint) (models.Complaint, error)
}

// Receiver stores incoming complaints and hands them to the evaluator
type Receiver struct {
	complaints database.ComplaintStore
	submitter  Submitter
	newID      func() string
	now        func() time.Time
}

// Ensure Receiver implements ComplaintReceiver
var _ ComplaintReceiver = (*Receiver)(nil)

// NewReceiver creates a receiver
func NewReceiver(complaints database.ComplaintStore, submitter Submitter) *Receiver {
	return &Receiver{
		complaints: complaints,
		submitter:  submitter,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Receive normalizes and stores the complaint, then submits it for
// evaluation with default options. Overrides are only reachable through
// seeding. The stored complaint is returned even when submission fails.
func (r *Receiver) Receive(ctx context.Context, complaint models.Complaint) (models.Complaint, error) {
	c, err := r.normalize(complaint)
	if err != nil {
		return models.Complaint{}, err
	}

	if err := r.complaints.InsertComplaints(ctx, []models.Complaint{c}); err != nil {
		return models.Complaint{}, fmt.Errorf("failed to store complaint %s: %w", c.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"complaint_id": c.ID,
		"train_number": c.TrainNumber,
	}).Debug("Complaint stored")

	if err := r.submitter.Submit(c, models.EvaluationOptions{}); err != nil {
		return c, fmt.Errorf("failed to queue complaint %s: %w", c.ID, err)
	}
	return c, nil
}

func (r *Receiver) normalize(c models.Complaint) (models.Complaint, error) {
	c.ID = strings.TrimSpace(c.ID)
	c.TrainNumber = itinerary.NormalizeTrainNumber(c.TrainNumber)
	c.UserID = strings.TrimSpace(c.UserID)
	c.StationCode = strings.TrimSpace(c.StationCode)

	if c.TrainNumber == "" {
		return c, fmt.Errorf("%w: train_number is required", ErrInvalidComplaint)
	}
	if c.UserID == "" {
		return c, fmt.Errorf("%w: user_id is required", ErrInvalidComplaint)
	}

	if c.ID == "" {
		c.ID = r.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	c.CreatedAt = c.CreatedAt.UTC()

	images := make([]string, 0, len(c.ImageURLs))
	for _, url := range c.ImageURLs {
		if url = strings.TrimSpace(url); url != "" {
			images = append(images, url)
		}
	}
	c.ImageURLs = images

	return c, nil
}
