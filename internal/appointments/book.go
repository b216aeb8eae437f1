package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic/internal/core"
	"clinic/internal/kv"
	"clinic/internal/log"
)

// KeyAppointments is the kv key holding the whole appointment list.
const KeyAppointments = "clinic_appointments"

// ErrPersistence wraps write failures. The appointment is kept in memory.
var ErrPersistence = errors.New("appointment persistence failure")

// Book is the appointment list, loaded from and written back to a kv.Store
// as one JSON document.
type Book struct {
	mu      sync.RWMutex
	kv      kv.Store
	catalog Catalog
	logger  *log.Logger
	now     func() time.Time
	loc     *time.Location

	items []Appointment
}

type Option func(*Book)

func WithCatalog(c Catalog) Option {
	return func(b *Book) { b.catalog = c }
}

func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(b *Book) {
		if loc != nil {
			b.loc = loc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Book) {
		if l != nil {
			b.logger = l.WithComponent(log.ComponentAppointments)
		}
	}
}

// Open loads the appointment book from store.
func Open(ctx context.Context, store kv.Store, opts ...Option) (*Book, error) {
	b := &Book{
		kv:      store,
		catalog: DefaultCatalog(),
		logger:  log.Discard(),
		now:     time.Now,
		loc:     time.Local,
		items:   []Appointment{},
	}
	for _, opt := range opts {
		opt(b)
	}

	raw, ok, err := store.Get(ctx, KeyAppointments)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyAppointments, err)
	}
	if ok && strings.TrimSpace(raw) != "" {
		var items []Appointment
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeyAppointments, err)
		}
		if items != nil {
			b.items = items
		}
	}
	b.logger.InfoContext(ctx, "Appointments loaded", "count", len(b.items))
	return b, nil
}

func (b *Book) Catalog() Catalog { return b.catalog }

func (b *Book) Location() *time.Location { return b.loc }

// Now returns the book's clock in the clinic time zone.
func (b *Book) Now() time.Time { return b.now().In(b.loc) }

func (b *Book) today() core.Date {
	return core.DateOf(b.now().In(b.loc))
}

// Book validates req and stores a new pending appointment.
func (b *Book) Book(ctx context.Context, req Request) (Appointment, error) {
	if err := req.Validate(); err != nil {
		return Appointment{}, err
	}
	if _, ok := b.catalog.Doctor(req.Doctor); !ok {
		return Appointment{}, ErrUnknownDoctor
	}
	if _, ok := b.catalog.Service(req.Service); !ok {
		return Appointment{}, ErrUnknownService
	}
	if err := checkDate(req.Date, b.today()); err != nil {
		return Appointment{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.takenLocked()[slotKey(req.Date, req.Time)] {
		return Appointment{}, ErrSlotTaken
	}

	now := b.now()
	a := Appointment{
		ID:               "apt_" + uuid.NewString(),
		Doctor:           req.Doctor,
		Service:          req.Service,
		Date:             req.Date,
		Time:             req.Time,
		PaymentMethod:    req.PaymentMethod,
		PatientName:      strings.TrimSpace(req.PatientName),
		PatientPhone:     strings.TrimSpace(req.PatientPhone),
		PatientEmail:     strings.TrimSpace(req.PatientEmail),
		PatientAge:       req.PatientAge,
		Notes:            req.Notes,
		SMSReminder:      req.SMSReminder,
		WhatsAppReminder: req.WhatsAppReminder,
		EmailReminder:    req.EmailReminder,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	b.items = append(b.items, a)

	b.logger.InfoContext(ctx, "Appointment booked",
		log.FieldAppointmentID, a.ID,
		log.FieldDoctor, a.Doctor,
		"date", a.Date.String(),
		"time", a.Time)
	return a, b.persistLocked(ctx)
}

// AvailableSlots lists the free start times on d.
func (b *Book) AvailableSlots(d core.Date) ([]string, error) {
	if err := checkDate(d, b.today()); err != nil {
		return nil, err
	}
	b.mu.RLock()
	taken := b.takenLocked()
	b.mu.RUnlock()

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if !taken[slotKey(d, s)] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (b *Book) takenLocked() map[string]bool {
	taken := make(map[string]bool, len(b.items))
	for _, a := range b.items {
		if a.Status.Holds() {
			taken[slotKey(a.Date, a.Time)] = true
		}
	}
	return taken
}

func (b *Book) Get(id string) (Appointment, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.items {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, ErrNotFound
}

// List returns the appointments on d ordered by time, or every appointment
// ordered by date and time when d is zero.
func (b *Book) List(d core.Date) []Appointment {
	b.mu.RLock()
	out := make([]Appointment, 0, len(b.items))
	for _, a := range b.items {
		if d.IsZero() || a.Date.Equal(d.Time) {
			out = append(out, a)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// SetStatus changes the status of appointment id.
func (b *Book) SetStatus(ctx context.Context, id string, status Status) (Appointment, error) {
	return b.update(ctx, id, func(a *Appointment) error {
		if !status.Valid() {
			return ErrInvalidStatus
		}
		a.Status = status
		return nil
	})
}

// Complete marks the appointment completed and links the payment recorded for it.
func (b *Book) Complete(ctx context.Context, id, paymentID string) (Appointment, error) {
	return b.update(ctx, id, func(a *Appointment) error {
		a.Status = StatusCompleted
		a.PaymentID = paymentID
		return nil
	})
}

func (b *Book) update(ctx context.Context, id string, fn func(*Appointment) error) (Appointment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID != id {
			continue
		}
		a := b.items[i]
		if err := fn(&a); err != nil {
			return Appointment{}, err
		}
		a.UpdatedAt = b.now()
		b.items[i] = a
		return a, b.persistLocked(ctx)
	}
	return Appointment{}, ErrNotFound
}

func (b *Book) persistLocked(ctx context.Context) error {
	raw, err := json.Marshal(b.items)
	if err == nil {
		err = b.kv.Set(ctx, KeyAppointments, string(raw))
	}
	if err != nil {
		err = fmt.Errorf("%w: write %s: %w", ErrPersistence, KeyAppointments, err)
		log.NewStructuredLogger(b.logger).LogError(ctx, "Appointment write failed, keeping in-memory state",
			err, log.ComponentAppointments, log.OpPersist, nil)
		return err
	}
	return nil
}
