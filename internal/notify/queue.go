package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"clinic/internal/log"
)

// Sender delivers a single notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogSender{logger: logger.WithComponent(log.ComponentNotify)}
}

func (s *LogSender) Send(ctx context.Context, n Notification) error {
	if n.To == "" {
		return errors.New("notification has no recipient")
	}
	s.logger.InfoContext(ctx, "Notification sent",
		log.FieldChannel, string(n.Channel),
		"kind", n.Kind,
		"to", n.To,
		log.FieldAppointmentID, n.AppointmentID)
	return nil
}

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	NotificationDelivered(channel string, sent bool)
}

const defaultLogSize = 500

// Queue delivers notifications one at a time in the order they were
// enqueued. Enqueue never blocks; Run drains the queue until its context
// is cancelled.
type Queue struct {
	sender   Sender
	logger   *log.Logger
	now      func() time.Time
	observer DeliveryObserver

	mu      sync.Mutex
	pending []Notification
	history []Notification
	maxLog  int
	wake    chan struct{}
}

type QueueOption func(*Queue)

func WithQueueLogger(l *log.Logger) QueueOption {
	return func(q *Queue) {
		if l != nil {
			q.logger = l.WithComponent(log.ComponentNotify)
		}
	}
}

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// WithLogSize bounds the delivery log; older entries are dropped first.
func WithLogSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.maxLog = n
		}
	}
}

func WithDeliveryObserver(o DeliveryObserver) QueueOption {
	return func(q *Queue) { q.observer = o }
}

func NewQueue(sender Sender, opts ...QueueOption) *Queue {
	q := &Queue{
		sender: sender,
		logger: log.Discard(),
		now:    time.Now,
		maxLog: defaultLogSize,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends notifications as pending and wakes the drain loop.
func (q *Queue) Enqueue(ns ...Notification) {
	if len(ns) == 0 {
		return
	}
	q.mu.Lock()
	for _, n := range ns {
		n.Status = StatusPending
		n.Error = ""
		if n.Timestamp.IsZero() {
			n.Timestamp = q.now()
		}
		q.pending = append(q.pending, n)
	}
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of notifications not yet attempted.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Run drains the queue whenever notifications are enqueued.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Flush(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-q.wake:
		}
	}
}

// Flush delivers every pending notification and returns how many were
// attempted.
func (q *Queue) Flush(ctx context.Context) int {
	attempted := 0
	for {
		if ctx.Err() != nil {
			return attempted
		}
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return attempted
		}
		n := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.deliver(ctx, n)
		attempted++
	}
}

func (q *Queue) deliver(ctx context.Context, n Notification) {
	if err := q.sender.Send(ctx, n); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		log.NewStructuredLogger(q.logger).LogError(ctx, "Notification delivery failed", err,
			log.ComponentNotify, log.OpDeliver, log.NewFields().WithNotification(string(n.Channel), n.Kind, n.AppointmentID))
	} else {
		n.Status = StatusSent
	}
	if q.observer != nil {
		q.observer.NotificationDelivered(string(n.Channel), n.Status == StatusSent)
	}

	q.mu.Lock()
	q.history = append(q.history, n)
	if over := len(q.history) - q.maxLog; over > 0 {
		q.history = append([]Notification(nil), q.history[over:]...)
	}
	q.mu.Unlock()
}

// Log returns the delivery log, oldest first.
func (q *Queue) Log() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.history...)
}
