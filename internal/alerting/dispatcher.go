package alerting

import (
	"context"
	"errors"
	"sync"

	"github.com/railmind/train-alert-bot/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free
	ErrQueueFull = errors.New("evaluation queue is full")
	// ErrDispatcherClosed is returned by Submit after Close
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

// Evaluator runs one spike evaluation
type Evaluator interface {
	EvaluateAndAlert(ctx context.Context, complaint models.Complaint, opts models.EvaluationOptions) models.EvaluationResult
}

type job struct {
	complaint models.Complaint
	options   models.EvaluationOptions
}

// Dispatcher evaluates submitted complaints on a bounded worker pool so that
// complaint intake never waits on the SMS gateway.
type Dispatcher struct {
	engine Evaluator
	queue  chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	// onResult, when set before StartWorkers, observes every finished evaluation
	onResult func(models.Complaint, models.EvaluationResult)
}

// NewDispatcher creates a dispatcher with room for queueSize pending complaints
func NewDispatcher(engine Evaluator, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		engine: engine,
		queue:  make(chan job, queueSize),
	}
}

// StartWorkers starts n workers consuming the queue
func (d *Dispatcher) StartWorkers(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			for j := range d.queue {
				d.process(workerID, j)
			}
		}(i)
	}
	logrus.Infof("Started %d alert evaluation workers", n)
}

func (d *Dispatcher) process(workerID int, j job) {
	result := d.engine.EvaluateAndAlert(context.Background(), j.complaint, j.options)

	entry := logrus.WithFields(logrus.Fields{
		"worker":       workerID,
		"complaint_id": j.complaint.ID,
		"train_number": j.complaint.TrainNumber,
		"triggered":    result.Triggered,
		"reason":       result.Reason,
		"alert_id":     result.AlertID,
		"unique_users": result.UniqueUsersCount,
	})
	if result.Reason == models.ReasonInternalError {
		entry.WithField("error", result.Error).Error("Complaint evaluation failed")
	} else {
		entry.Info("Complaint evaluated")
	}

	if d.onResult != nil {
		d.onResult(j.complaint, result)
	}
}

// Submit queues a complaint for evaluation without blocking
func (d *Dispatcher) Submit(complaint models.Complaint, opts models.EvaluationOptions) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- job{complaint: complaint, options: opts}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Pending returns the number of queued complaints
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting work, drains the queue and waits for workers
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	logrus.Info("Alert evaluation workers stopped")
}
