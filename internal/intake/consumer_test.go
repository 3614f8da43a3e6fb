package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingAcknowledger captures how a delivery was settled
type recordingAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	r.acked = true
	return nil
}

func (r *recordingAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func (r *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	return r.Nack(tag, false, requeue)
}

// MockReceiver is a mock implementation of the complaint receiver
type MockReceiver struct {
	mock.Mock
}

func (m *MockReceiver) Receive(ctx context.Context, complaint models.Complaint) (models.Complaint, error) {
	args := m.Called(complaint)
	return args.Get(0).(models.Complaint), args.Error(1)
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		train   string
	}{
		{
			name:  "Complaint created event",
			body:  `{"type":"complaint.created","complaint":{"id":"c1","train_number":"107","user_id":"u1","created_at":"2026-03-14T09:30:00Z"}}`,
			train: "107",
		},
		{
			name:  "Untyped event",
			body:  `{"complaint":{"id":"c1","train_number":"12051","user_id":"u1"}}`,
			train: "12051",
		},
		{name: "Other event type", body: `{"type":"complaint.resolved","complaint":{}}`, wantErr: true},
		{name: "Not JSON", body: `complaint`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.train, event.Complaint.TrainNumber)
		})
	}
}

func TestQueueConsumer_handle(t *testing.T) {
	validBody := `{"type":"complaint.created","complaint":{"id":"c1","train_number":"107","user_id":"u1"},"options":{"skip_send":true}}`

	tests := []struct {
		name       string
		body       string
		receiveErr error
		expectCall bool
		acked      bool
		requeue    bool
	}{
		{name: "Valid event is acked", body: validBody, expectCall: true, acked: true},
		{name: "Malformed event is dead-lettered", body: `{"type":`},
		{name: "Invalid complaint is dead-lettered", body: validBody, expectCall: true,
			receiveErr: fmt.Errorf("%w: user_id is required", ErrInvalidComplaint)},
		{name: "Queue full is requeued", body: validBody, expectCall: true,
			receiveErr: fmt.Errorf("failed to queue complaint c1: %w", alerting.ErrQueueFull), requeue: true},
		{name: "Store failure is requeued", body: validBody, expectCall: true,
			receiveErr: errors.New("database is locked"), requeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receiver := &MockReceiver{}
			receiver.On("Receive", mock.MatchedBy(func(c models.Complaint) bool { return c.ID == "c1" })).
				Return(models.Complaint{ID: "c1"}, tt.receiveErr)

			consumer := &QueueConsumer{receiver: receiver, queueName: "complaints"}
			ack := &recordingAcknowledger{}

			consumer.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(tt.body)})

			assert.Equal(t, tt.acked, ack.acked)
			assert.Equal(t, !tt.acked, ack.nacked)
			assert.Equal(t, tt.requeue, ack.requeue)
			if tt.expectCall {
				receiver.AssertNumberOfCalls(t, "Receive", 1)
			} else {
				receiver.AssertNotCalled(t, "Receive", mock.Anything)
			}
		})
	}
}

func TestDeadLetterQueueName(t *testing.T) {
	assert.Equal(t, "train-complaints.dlq", DeadLetterQueueName("train-complaints"))
}

func TestQueueConsumer_handle_DropsEvaluationOverrides(t *testing.T) {
	submitter := &MockSubmitter{}
	submitter.On("Submit", mock.MatchedBy(func(c models.Complaint) bool { return c.ID == "c1" }), models.EvaluationOptions{}).Return(nil).Once()
	receiver, _ := newTestReceiver(t, submitter)

	consumer := &QueueConsumer{receiver: receiver, queueName: "complaints"}
	ack := &recordingAcknowledger{}
	body := `{"type":"complaint.created","complaint":{"id":"c1","train_number":"107","user_id":"u1"},` +
		`"options":{"force_send":true,"ignore_cooldown":true,"ignore_threshold":true}}`

	consumer.handle(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte(body)})

	assert.True(t, ack.acked)
	submitter.AssertExpectations(t)
}
