package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/database"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSubmitter is a mock implementation of the evaluation queue
type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) Submit(complaint models.Complaint, opts models.EvaluationOptions) error {
	args := m.Called(complaint, opts)
	return args.Error(0)
}

func newTestReceiver(t *testing.T, submitter Submitter) (*Receiver, *database.SQLiteStore) {
	t.Helper()
	store, err := database.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	receiver := NewReceiver(store, submitter)
	receiver.newID = func() string { return "generated-id" }
	receiver.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return receiver, store
}

func TestReceiver_Receive(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.MatchedBy(func(c models.Complaint) bool { return c.ID == "generated-id" }), models.EvaluationOptions{}).Return(nil).Once()
	receiver, store := newTestReceiver(t, submitter)

	stored, err := receiver.Receive(context.Background(), models.Complaint{
		TrainNumber: " '107 ",
		UserID:      " u1 ",
		Description: "AC not working",
		StationCode: " THVM ",
		ImageURLs:   []string{"https://img/1", " ", ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "generated-id", stored.ID)
	assert.Equal(t, "107", stored.TrainNumber)
	assert.Equal(t, "u1", stored.UserID)
	assert.Equal(t, "THVM", stored.StationCode)
	assert.Equal(t, []string{"https://img/1"}, stored.ImageURLs)
	assert.Equal(t, receiver.now(), stored.CreatedAt)

	complaints, err := store.ComplaintsSince(context.Background(), "107", stored.CreatedAt.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, complaints, 1)
	assert.Equal(t, "generated-id", complaints[0].ID)
	submitter.AssertExpectations(t)
}

func TestReceiver_Receive_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		complaint models.Complaint
	}{
		{name: "Missing train number", complaint: models.Complaint{UserID: "u1"}},
		{name: "Blank train number", complaint: models.Complaint{TrainNumber: "  ", UserID: "u1"}},
		{name: "Missing user", complaint: models.Complaint{TrainNumber: "107"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &MockSubmitter{}
			receiver, _ := newTestReceiver(t, submitter)

			_, err := receiver.Receive(context.Background(), tt.complaint)

			assert.ErrorIs(t, err, ErrInvalidComplaint)
			submitter.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}
}

func TestReceiver_Receive_QueueFullKeepsComplaint(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.Anything, mock.Anything).Return(alerting.ErrQueueFull)
	receiver, store := newTestReceiver(t, submitter)

	stored, err := receiver.Receive(context.Background(), models.Complaint{ID: "c1", TrainNumber: "107", UserID: "u1"})

	assert.True(t, errors.Is(err, alerting.ErrQueueFull))
	assert.Equal(t, "c1", stored.ID)

	complaints, err := store.ComplaintsSince(context.Background(), "107", time.Time{})
	require.NoError(t, err)
	assert.Len(t, complaints, 1)
}
