package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinic/internal/amqp"
	"clinic/internal/core"
	"clinic/internal/log"
	"clinic/internal/notify"
)

// Ledger is the read side of the ledger the worker mirrors from.
type Ledger interface {
	Payments() []core.Payment
	Expenses() []core.Expense
	PaymentByReceipt(ref string) (core.Payment, error)
	Expense(id string) (core.Expense, error)
	Reload(ctx context.Context) error
}

// DefaultStaleAfter is how late a reminder may be delivered before it is
// dropped.
const DefaultStaleAfter = 15 * time.Minute

// NotificationWorker handles messages from the clinic queue: notifications
// are delivered through the notify queue at their send time, ledger sync
// messages are mirrored to the spreadsheet.
type NotificationWorker struct {
	queue      *notify.Queue
	mirror     *Mirror
	now        func() time.Time
	staleAfter time.Duration
	logger     *log.Logger

	mu      sync.Mutex
	timers  map[*time.Timer]struct{}
	stopped bool
}

type Option func(*NotificationWorker)

func WithClock(now func() time.Time) Option {
	return func(w *NotificationWorker) { w.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(w *NotificationWorker) {
		if d > 0 {
			w.staleAfter = d
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(w *NotificationWorker) {
		if l != nil {
			w.logger = l.WithComponent(log.ComponentWorker)
		}
	}
}

// NewNotificationWorker builds a worker. mirror may be nil, in which case
// ledger sync messages are acknowledged without doing anything.
func NewNotificationWorker(queue *notify.Queue, mirror *Mirror, opts ...Option) *NotificationWorker {
	w := &NotificationWorker{
		queue:      queue,
		mirror:     mirror,
		now:        time.Now,
		staleAfter: DefaultStaleAfter,
		logger:     log.Discard(),
		timers:     make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Handle processes a single message. It satisfies amqp.Handler.
func (w *NotificationWorker) Handle(ctx context.Context, msg *amqp.Message) error {
	switch msg.Type {
	case amqp.TypeNotification:
		if msg.Notification == nil {
			return errors.New("notification message without payload")
		}
		w.schedule(ctx, FromMessage(*msg.Notification))
		return nil
	case amqp.TypeLedgerSync:
		if msg.Sync == nil {
			return errors.New("sync message without payload")
		}
		if w.mirror == nil {
			w.logger.DebugContext(ctx, "No ledger mirror configured, skipping sync", "id", msg.Sync.ID)
			return nil
		}
		return w.mirror.Sync(ctx, msg.Sync.Entity, msg.Sync.ID)
	default:
		w.logger.WarnContext(ctx, "Unknown message type, dropping", "type", msg.Type)
		return nil
	}
}

// schedule enqueues n now if it is due, later if it is not, and drops it if
// it is a reminder that is too late to be useful.
func (w *NotificationWorker) schedule(ctx context.Context, n notify.Notification) {
	now := w.now()
	wait := n.SendAt.Sub(now)

	switch {
	case n.SendAt.IsZero() || wait <= 0 && -wait <= w.staleAfter:
		w.queue.Enqueue(n)
	case wait < 0:
		w.logger.InfoContext(ctx, "Skipping stale notification",
			"kind", n.Kind,
			log.FieldChannel, string(n.Channel),
			log.FieldAppointmentID, n.AppointmentID,
			"send_at", n.SendAt)
	default:
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.stopped {
			return
		}
		var t *time.Timer
		t = time.AfterFunc(wait, func() {
			w.mu.Lock()
			delete(w.timers, t)
			w.mu.Unlock()
			w.queue.Enqueue(n)
		})
		w.timers[t] = struct{}{}
		w.logger.DebugContext(ctx, "Notification scheduled",
			"kind", n.Kind,
			log.FieldAppointmentID, n.AppointmentID,
			"send_at", n.SendAt)
	}
}

// Scheduled returns how many notifications are waiting for their send time.
func (w *NotificationWorker) Scheduled() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers)
}

// Stop cancels every scheduled notification. Scheduled reminders live in
// memory only and are lost on shutdown.
func (w *NotificationWorker) Stop() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	n := 0
	for t := range w.timers {
		if t.Stop() {
			n++
		}
		delete(w.timers, t)
	}
	return n
}

// FromMessage converts a wire notification to a pending notification.
func FromMessage(m amqp.NotificationMessage) notify.Notification {
	return notify.Notification{
		Kind:          m.Kind,
		Channel:       notify.Channel(m.Channel),
		To:            m.To,
		Subject:       m.Subject,
		Message:       m.Body,
		AppointmentID: m.AppointmentID,
		SendAt:        m.SendAt,
		Status:        notify.StatusPending,
	}
}

// ToMessage converts a notification to its wire form.
func ToMessage(n notify.Notification) amqp.NotificationMessage {
	return amqp.NotificationMessage{
		Kind:          n.Kind,
		Channel:       string(n.Channel),
		To:            n.To,
		Subject:       n.Subject,
		Body:          n.Message,
		AppointmentID: n.AppointmentID,
		SendAt:        n.SendAt,
	}
}

// Loopback hands published messages straight to a worker in the same
// process. It is used when no broker is configured.
type Loopback struct {
	worker *NotificationWorker
}

func NewLoopback(w *NotificationWorker) *Loopback {
	return &Loopback{worker: w}
}

func (l *Loopback) PublishNotification(ctx context.Context, n amqp.NotificationMessage) error {
	return l.worker.Handle(ctx, amqp.NewNotificationMessage(n))
}

func (l *Loopback) PublishLedgerSync(ctx context.Context, entity, id string) error {
	if err := l.worker.Handle(ctx, amqp.NewLedgerSyncMessage(entity, id)); err != nil {
		return fmt.Errorf("loopback sync %s %s: %w", entity, id, err)
	}
	return nil
}
