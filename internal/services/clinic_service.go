// Package services orchestrates the clinic's write paths: the ledger and
// appointment book are updated first, then notifications and spreadsheet
// sync messages are published.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"clinic/internal/amqp"
	"clinic/internal/appointments"
	"clinic/internal/core"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/notify"
	"clinic/internal/worker"
)

// Publisher sends messages to the notifier. *amqp.Client and
// worker.Loopback implement it.
type Publisher interface {
	PublishNotification(ctx context.Context, n amqp.NotificationMessage) error
	PublishLedgerSync(ctx context.Context, entity, id string) error
}

var (
	ErrAlreadyCompleted = core.NewValidationError("appointment is already completed")
	ErrCancelled        = core.NewValidationError("appointment is cancelled")
)

// Completion carries what the front desk enters when a visit is paid.
// A zero Amount means the service's list price.
type Completion struct {
	Amount   core.Money `json:"amount"`
	Discount core.Money `json:"discount"`
	Method   string     `json:"paymentMethod"`
}

// ClinicService saves locally first, then publishes. Publish failures are
// logged and never fail the request.
type ClinicService struct {
	ledger    *ledger.Store
	book      *appointments.Book
	composer  *notify.Composer
	publisher Publisher
	logger    *log.Logger
}

func NewClinicService(l *ledger.Store, book *appointments.Book, composer *notify.Composer, publisher Publisher, logger *log.Logger) *ClinicService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ClinicService{
		ledger:    l,
		book:      book,
		composer:  composer,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentApp),
	}
}

func (s *ClinicService) Ledger() *ledger.Store { return s.ledger }

func (s *ClinicService) Book() *appointments.Book { return s.book }

// kept reports whether err left the entity recorded in memory.
func kept(err error) bool {
	return err == nil || errors.Is(err, ledger.ErrPersistence) || errors.Is(err, appointments.ErrPersistence)
}

// RecordPayment adds a payment to the ledger, sends the patient a receipt
// and asks for the payment to be mirrored.
func (s *ClinicService) RecordPayment(ctx context.Context, in core.PaymentInput) (core.Payment, error) {
	p, err := s.ledger.AddPayment(ctx, in)
	if !kept(err) {
		return core.Payment{}, err
	}
	s.notify(ctx, s.composer.Receipt(p, s.ledger.Now()))
	s.sync(ctx, amqp.EntityPayment, p.ID)
	return p, err
}

// RecordExpense adds an expense to the ledger and asks for it to be mirrored.
func (s *ClinicService) RecordExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	e, err := s.ledger.AddExpense(ctx, in)
	if !kept(err) {
		return core.Expense{}, err
	}
	s.sync(ctx, amqp.EntityExpense, e.ID)
	return e, err
}

// BookAppointment stores a booking, notifies the clinic and the patient and
// schedules the reminders.
func (s *ClinicService) BookAppointment(ctx context.Context, req appointments.Request) (appointments.Appointment, error) {
	a, err := s.book.Book(ctx, req)
	if !kept(err) {
		return appointments.Appointment{}, err
	}
	now := s.book.Now()
	s.notify(ctx, s.composer.NewAppointment(a, now))
	s.notify(ctx, s.composer.Reminders(a, now))
	return a, err
}

// CompleteAppointment records the visit's payment and marks the
// appointment completed.
func (s *ClinicService) CompleteAppointment(ctx context.Context, id string, c Completion) (core.Payment, error) {
	a, err := s.book.Get(id)
	if err != nil {
		return core.Payment{}, err
	}
	switch a.Status {
	case appointments.StatusCompleted:
		return core.Payment{}, ErrAlreadyCompleted
	case appointments.StatusCancelled:
		return core.Payment{}, ErrCancelled
	}

	amount := c.Amount
	if amount.IsZero() {
		if svc, ok := s.book.Catalog().Service(a.Service); ok {
			amount = svc.Price
		}
	}
	method := c.Method
	if method == "" {
		method = a.PaymentMethod
	}

	p, err := s.RecordPayment(ctx, core.PaymentInput{
		AppointmentID: a.ID,
		PatientName:   a.PatientName,
		PatientPhone:  a.PatientPhone,
		Doctor:        a.Doctor,
		Service:       a.Service,
		Amount:        amount,
		Discount:      c.Discount,
		Method:        method,
	})
	if !kept(err) {
		return core.Payment{}, err
	}

	if _, cerr := s.book.Complete(ctx, a.ID, p.ID); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return p, err
}

// CancelAppointment frees the appointment's slot.
func (s *ClinicService) CancelAppointment(ctx context.Context, id string) (appointments.Appointment, error) {
	a, err := s.book.Get(id)
	if err != nil {
		return appointments.Appointment{}, err
	}
	if a.Status == appointments.StatusCompleted {
		return appointments.Appointment{}, ErrAlreadyCompleted
	}
	return s.book.SetStatus(ctx, id, appointments.StatusCancelled)
}

func (s *ClinicService) notify(ctx context.Context, ns []notify.Notification) {
	if len(ns) == 0 {
		return
	}
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Publisher not available, skipping notifications", "count", len(ns))
		return
	}
	for _, n := range ns {
		if err := s.publisher.PublishNotification(ctx, worker.ToMessage(n)); err != nil {
			log.NewStructuredLogger(s.logger).LogError(ctx, "Failed to publish notification", err,
				log.ComponentNotify, log.OpDeliver,
				log.NewFields().WithNotification(string(n.Channel), n.Kind, n.AppointmentID))
		}
	}
}

func (s *ClinicService) sync(ctx context.Context, entity, id string) {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Publisher not available, skipping sync message", "entity", entity, "id", id)
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, entity, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish sync message",
			"entity", entity, "id", id, "error", err)
	}
}

// Close closes the publisher if it holds a connection.
func (s *ClinicService) Close() error {
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
