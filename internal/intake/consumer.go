package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/railmind/train-alert-bot/internal/alerting"
	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// EventComplaintCreated is the only event type the consumer handles
const EventComplaintCreated = "complaint.created"

const defaultRequeueDelay = 500 * time.Millisecond

// ComplaintEvent is the message published when a complaint is created
type ComplaintEvent struct {
	Type      string           `json:"type"`
	Complaint models.Complaint `json:"complaint"`
}

// ConsumerConfig configures the complaint queue consumer
type ConsumerConfig struct {
	URL             string
	QueueName       string
	DeadLetterQueue string
	PrefetchCount   int
}

// QueueConsumer reads complaint events from RabbitMQ
type QueueConsumer struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	receiver        ComplaintReceiver
	queueName       string
	deadLetterQueue string
	requeueDelay    time.Duration
}

// DeadLetterQueueName returns the dead letter queue paired with queue
func DeadLetterQueueName(queue string) string {
	return queue + ".dlq"
}

// NewQueueConsumer connects to the broker and declares the queue and its dead letter queue
func NewQueueConsumer(cfg *ConsumerConfig, receiver ComplaintReceiver) (*QueueConsumer, error) {
	if cfg.DeadLetterQueue == "" {
		cfg.DeadLetterQueue = DeadLetterQueueName(cfg.QueueName)
	}
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 10
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	// Rejected messages are routed to the DLQ through the default exchange
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.DeadLetterQueue,
	}
	if _, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, args); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &QueueConsumer{
		conn:            conn,
		channel:         ch,
		receiver:        receiver,
		queueName:       cfg.QueueName,
		deadLetterQueue: cfg.DeadLetterQueue,
		requeueDelay:    defaultRequeueDelay,
	}, nil
}

// StartConsuming handles deliveries until ctx is done or the channel closes
func (q *QueueConsumer) StartConsuming(ctx context.Context) error {
	msgs, err := q.channel.Consume(
		q.queueName,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logrus.Infof("Consuming complaint events from %s (dead letters to %s)", q.queueName, q.deadLetterQueue)

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("complaint delivery channel closed")
			}
			q.handle(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *QueueConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	event, err := DecodeEvent(msg.Body)
	if err != nil {
		logrus.Warnf("Dead-lettering malformed complaint event: %v", err)
		q.nack(msg, false)
		return
	}

	complaint, err := q.receiver.Receive(ctx, event.Complaint)
	switch {
	case err == nil:
		if err := msg.Ack(false); err != nil {
			logrus.Errorf("Failed to ack complaint %s: %v", complaint.ID, err)
		}
	case errors.Is(err, ErrInvalidComplaint):
		logrus.Warnf("Dead-lettering invalid complaint event: %v", err)
		q.nack(msg, false)
	case errors.Is(err, alerting.ErrQueueFull):
		logrus.Warnf("Evaluation queue full, requeueing complaint %s", complaint.ID)
		select {
		case <-time.After(q.requeueDelay):
		case <-ctx.Done():
		}
		q.nack(msg, true)
	default:
		logrus.Errorf("Requeueing complaint event: %v", err)
		q.nack(msg, true)
	}
}

func (q *QueueConsumer) nack(msg amqp.Delivery, requeue bool) {
	if err := msg.Nack(false, requeue); err != nil {
		logrus.Errorf("Failed to nack complaint event: %v", err)
	}
}

// DecodeEvent parses a complaint event body
func DecodeEvent(body []byte) (ComplaintEvent, error) {
	var event ComplaintEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return ComplaintEvent{}, fmt.Errorf("failed to unmarshal complaint event: %w", err)
	}
	if event.Type != "" && event.Type != EventComplaintCreated {
		return ComplaintEvent{}, fmt.Errorf("unsupported event type: %s", event.Type)
	}
	return event, nil
}

// Close closes the channel and the connection
func (q *QueueConsumer) Close() error {
	if err := q.channel.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}
