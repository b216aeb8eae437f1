package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/amqp"
	"clinic/internal/core"
	kvmemory "clinic/internal/kv/memory"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/notify"
	sheetsmemory "clinic/internal/sheets/memory"
)

var now = time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Send(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newWorker(t *testing.T, mirror *Mirror, clock func() time.Time) (*NotificationWorker, *notify.Queue, *recorder) {
	t.Helper()
	rec := &recorder{}
	q := notify.NewQueue(rec)
	w := NewNotificationWorker(q, mirror, WithClock(clock), WithLogger(log.Discard()))
	t.Cleanup(func() { w.Stop() })
	return w, q, rec
}

func TestHandleDueNotification(t *testing.T) {
	w, q, rec := newWorker(t, nil, func() time.Time { return now })
	msg := amqp.NewNotificationMessage(amqp.NotificationMessage{Kind: notify.KindConfirmation, Channel: "sms", To: "0771", Body: "booked", SendAt: now})

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 1, q.Pending())
	q.Flush(context.Background())
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "booked", rec.sent[0].Message)
	assert.Equal(t, notify.ChannelSMS, rec.sent[0].Channel)
}

func TestHandleSkipsStaleReminder(t *testing.T) {
	w, q, _ := newWorker(t, nil, func() time.Time { return now })
	msg := amqp.NewNotificationMessage(amqp.NotificationMessage{Kind: notify.KindReminder2h, Channel: "sms", To: "0771", SendAt: now.Add(-time.Hour)})

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, w.Scheduled())

	// A few minutes late is still delivered.
	msg.Notification.SendAt = now.Add(-5 * time.Minute)
	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 1, q.Pending())
}

func TestHandleSchedulesFutureReminder(t *testing.T) {
	w, q, _ := newWorker(t, nil, func() time.Time { return now })
	msg := amqp.NewNotificationMessage(amqp.NotificationMessage{Kind: notify.KindReminder24h, Channel: "sms", To: "0771", SendAt: now.Add(50 * time.Millisecond)})

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 1, w.Scheduled())

	assert.Eventually(t, func() bool { return q.Pending() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, w.Scheduled())
}

func TestStopCancelsScheduled(t *testing.T) {
	w, q, _ := newWorker(t, nil, func() time.Time { return now })
	msg := amqp.NewNotificationMessage(amqp.NotificationMessage{Kind: notify.KindReminder24h, Channel: "sms", To: "0771", SendAt: now.Add(time.Hour)})
	require.NoError(t, w.Handle(context.Background(), msg))

	assert.Equal(t, 1, w.Stop())
	assert.Equal(t, 0, w.Scheduled())

	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 0, w.Scheduled())
	assert.Equal(t, 0, q.Pending())
}

func TestMessageConversionRoundTrip(t *testing.T) {
	n := notify.Notification{Kind: notify.KindReceipt, Channel: notify.ChannelEmail, To: "a@b", Subject: "s", Message: "m", AppointmentID: "apt_1", SendAt: now}
	back := FromMessage(ToMessage(n))
	back.Status = ""
	assert.Equal(t, n, back)
}

func openLedger(t *testing.T, store *kvmemory.Store) *ledger.Store {
	t.Helper()
	l, err := ledger.Open(context.Background(), store,
		ledger.WithClock(func() time.Time { return now }),
		ledger.WithLocation(time.UTC),
		ledger.WithLogger(log.Discard()))
	require.NoError(t, err)
	return l
}

func paymentInput() core.PaymentInput {
	return core.PaymentInput{PatientName: "Noor", PatientPhone: "0771", Doctor: "dr-aamer", Service: "cleaning", Amount: core.Money{Cents: 7500}}
}

func TestLedgerSyncMirrorsOnce(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	l := openLedger(t, store)
	sheet := sheetsmemory.New()
	m, err := NewMirror(ctx, l, sheet, store, nil)
	require.NoError(t, err)
	w, _, _ := newWorker(t, m, func() time.Time { return now })

	p, err := l.AddPayment(ctx, paymentInput())
	require.NoError(t, err)
	e, err := l.AddExpense(ctx, core.ExpenseInput{Category: "rent", Amount: core.Money{Cents: 100}})
	require.NoError(t, err)

	lb := NewLoopback(w)
	require.NoError(t, lb.PublishLedgerSync(ctx, amqp.EntityPayment, p.ID))
	require.NoError(t, lb.PublishLedgerSync(ctx, amqp.EntityPayment, p.ID))
	require.NoError(t, lb.PublishLedgerSync(ctx, amqp.EntityExpense, e.ID))

	assert.Len(t, sheet.Payments(), 1)
	assert.Len(t, sheet.Expenses(), 1)

	// The synced set survives a restart.
	m2, err := NewMirror(ctx, l, sheet, store, nil)
	require.NoError(t, err)
	require.NoError(t, m2.Sync(ctx, amqp.EntityPayment, p.ID))
	assert.Len(t, sheet.Payments(), 1)

	assert.Error(t, lb.PublishLedgerSync(ctx, amqp.EntityPayment, "pay_unknown"))
	assert.Error(t, lb.PublishLedgerSync(ctx, "invoice", p.ID))
}

func TestMirrorReloadsForOtherWriters(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	reader := openLedger(t, store)
	writer := openLedger(t, store)
	sheet := sheetsmemory.New()
	m, err := NewMirror(ctx, reader, sheet, store, nil)
	require.NoError(t, err)

	p, err := writer.AddPayment(ctx, paymentInput())
	require.NoError(t, err)

	require.NoError(t, m.Sync(ctx, amqp.EntityPayment, p.ID))
	require.Len(t, sheet.Payments(), 1)
	assert.Equal(t, p.ReceiptNumber, sheet.Payments()[0].ReceiptNumber)
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	l := openLedger(t, store)
	for i := 0; i < 2; i++ {
		_, err := l.AddPayment(ctx, paymentInput())
		require.NoError(t, err)
	}
	_, err := l.AddExpense(ctx, core.ExpenseInput{Category: "rent", Amount: core.Money{Cents: 100}})
	require.NoError(t, err)

	sheet := sheetsmemory.New()
	m, err := NewMirror(ctx, l, sheet, store, nil)
	require.NoError(t, err)

	n, err := m.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = m.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, sheet.Payments(), 2)
}

func TestSharedLedgerKeepsUnpersistedEntries(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	l := openLedger(t, store)

	store.SetFailWrites(errors.New("quota exceeded"))
	p, err := l.AddPayment(ctx, paymentInput())
	require.ErrorIs(t, err, ledger.ErrPersistence)

	sheet := sheetsmemory.New()
	m, err := NewMirror(ctx, l, sheet, kvmemory.New(), nil, WithSharedLedger())
	require.NoError(t, err)

	n, err := m.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sheet.Payments(), 1)
	assert.Equal(t, p.ReceiptNumber, sheet.Payments()[0].ReceiptNumber)

	assert.Error(t, m.Sync(ctx, amqp.EntityPayment, "pay_unknown"))
	assert.Len(t, l.Payments(), 1)
}

type failingSheet struct{}

func (failingSheet) AppendPayment(context.Context, core.Payment) (string, error) {
	return "", errors.New("quota exceeded")
}

func (failingSheet) AppendExpense(context.Context, core.Expense) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestSyncFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	l := openLedger(t, store)
	p, err := l.AddPayment(ctx, paymentInput())
	require.NoError(t, err)

	m, err := NewMirror(ctx, l, failingSheet{}, store, nil)
	require.NoError(t, err)
	err = m.Sync(ctx, amqp.EntityPayment, p.ID)
	require.Error(t, err)

	_, ok, _ := store.Get(ctx, KeySynced)
	assert.False(t, ok)
}
