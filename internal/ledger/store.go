// Package ledger owns the clinic's payments, expenses and invoices.
//
// The three collections are loaded in full from a kv.Store when the ledger
// is opened and written back in full on every mutation. A failed write does
// not roll back memory: the entity is kept, the failure is logged, and the
// caller receives it wrapped in ErrPersistence so it can retry or warn.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinic/internal/core"
	"clinic/internal/kv"
	"clinic/internal/log"
)

// Storage keys, one JSON document each.
const (
	KeyPayments   = "clinic_payments"
	KeyExpenses   = "clinic_expenses"
	KeyInvoices   = "clinic_invoices"
	KeyInvoiceSeq = "clinic_invoice_seq"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
)

// Observer is notified after successful in-memory mutations. Metrics
// collectors implement it.
type Observer interface {
	PaymentRecorded(p core.Payment)
	ExpenseRecorded(e core.Expense)
	PersistFailed(key string)
}

type Store struct {
	mu sync.RWMutex

	kv       kv.Store
	logger   *log.Logger
	now      func() time.Time
	loc      *time.Location
	template string
	observer Observer

	payments []core.Payment
	expenses []core.Expense
	invoices []core.Invoice
	seq      int64
	revision uint64
}

type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the clinic's local time zone used for calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

// WithInvoiceTemplate sets the invoice number template, see FormatInvoiceNumber.
func WithInvoiceTemplate(tpl string) Option {
	return func(s *Store) {
		if tpl != "" {
			s.template = tpl
		}
	}
}

func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// Open loads the ledger from store. Missing keys are empty collections;
// a malformed document is an error.
func Open(ctx context.Context, store kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		kv:       store,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		now:      time.Now,
		loc:      time.Local,
		template: DefaultInvoiceTemplate,
		payments: []core.Payment{},
		expenses: []core.Expense{},
		invoices: []core.Invoice{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := FormatInvoiceNumber(s.template, s.now(), 1); err != nil {
		return nil, fmt.Errorf("invoice template: %w", err)
	}

	if err := s.loadLocked(ctx); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Ledger loaded",
		"payments", len(s.payments),
		"expenses", len(s.expenses),
		"invoices", len(s.invoices),
		"invoice_seq", s.seq)
	return s, nil
}

// loadLocked replaces the in-memory collections with the stored documents.
// Nothing is replaced if any document fails to load.
func (s *Store) loadLocked(ctx context.Context) error {
	payments := []core.Payment{}
	expenses := []core.Expense{}
	invoices := []core.Invoice{}
	if err := load(ctx, s.kv, KeyPayments, &payments); err != nil {
		return err
	}
	if err := load(ctx, s.kv, KeyExpenses, &expenses); err != nil {
		return err
	}
	if err := load(ctx, s.kv, KeyInvoices, &invoices); err != nil {
		return err
	}

	var seq int64
	raw, ok, err := s.kv.Get(ctx, KeyInvoiceSeq)
	if err != nil {
		return fmt.Errorf("load %s: %w", KeyInvoiceSeq, err)
	}
	if ok {
		if seq, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err != nil {
			return fmt.Errorf("parse %s: %w", KeyInvoiceSeq, err)
		}
	}

	s.payments, s.expenses, s.invoices = payments, expenses, invoices
	if seq > s.seq {
		s.seq = seq
	}
	s.advancePastInvoices()
	return nil
}

// Reload re-reads the ledger from its kv store, picking up entries written
// by another process sharing the same store.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	s.revision++
	return nil
}

func load[T any](ctx context.Context, store kv.Store, key string, dst *[]T) error {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	if items != nil {
		*dst = items
	}
	return nil
}

// Location returns the clinic time zone.
func (s *Store) Location() *time.Location { return s.loc }

// Now returns the ledger clock in the clinic time zone.
func (s *Store) Now() time.Time { return s.now().In(s.loc) }

// Revision increments on every mutation. Report caches key on it.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Payments returns a copy of all payments in insertion order.
func (s *Store) Payments() []core.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Payment(nil), s.payments...)
}

// Expenses returns a copy of all expenses in insertion order.
func (s *Store) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Expense(nil), s.expenses...)
}

// Invoices returns a copy of all invoices in insertion order.
func (s *Store) Invoices() []core.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInvoices(s.invoices)
}

// AddPayment validates in, records a completed payment and its invoice.
func (s *Store) AddPayment(ctx context.Context, in core.PaymentInput) (core.Payment, error) {
	if err := in.Validate(); err != nil {
		return core.Payment{}, err
	}

	s.mu.Lock()
	now := s.Now()
	number, err := FormatInvoiceNumber(s.template, now, s.seq+1)
	if err != nil {
		s.mu.Unlock()
		return core.Payment{}, fmt.Errorf("invoice number: %w", err)
	}
	s.seq++

	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = core.MethodCash
	}
	appointmentID := strings.TrimSpace(in.AppointmentID)
	if appointmentID == "" {
		appointmentID = newID("app")
	}

	p := core.Payment{
		ID:            newID("pay"),
		AppointmentID: appointmentID,
		PatientName:   strings.TrimSpace(in.PatientName),
		PatientPhone:  strings.TrimSpace(in.PatientPhone),
		Doctor:        strings.TrimSpace(in.Doctor),
		Service:       strings.TrimSpace(in.Service),
		Amount:        in.Amount,
		Discount:      in.Discount,
		NetAmount:     in.Amount.Sub(in.Discount),
		Method:        method,
		Status:        core.StatusCompleted,
		ReceiptNumber: newReceipt(),
		CreatedAt:     now,
		InvoiceNumber: number,
	}
	s.payments = append(s.payments, p)
	s.invoices = append(s.invoices, invoiceFor(p))
	s.revision++
	err = s.persistLocked(ctx, KeyPayments, KeyInvoices, KeyInvoiceSeq)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.PaymentRecorded(p)
	}
	log.NewStructuredLogger(s.logger).LogPaymentRecorded(ctx, p.ID, p.InvoiceNumber, p.Doctor, p.Service, p.NetAmount.Cents)
	return p, err
}

func invoiceFor(p core.Payment) core.Invoice {
	return core.Invoice{
		Number:       p.InvoiceNumber,
		PaymentID:    p.ID,
		Date:         core.DateOf(p.CreatedAt),
		PatientName:  p.PatientName,
		PatientPhone: p.PatientPhone,
		Items: []core.InvoiceItem{{
			Service:   p.Service,
			Doctor:    p.Doctor,
			Quantity:  1,
			UnitPrice: p.Amount,
			Total:     p.NetAmount,
		}},
		Subtotal: p.Amount,
		Discount: p.Discount,
		Total:    p.NetAmount,
		Method:   p.Method,
	}
}

// AddExpense records an expense. A zero date means today in the clinic
// time zone and an empty method means cash.
func (s *Store) AddExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	s.mu.Lock()
	e := s.appendExpenseLocked(in)
	err := s.persistLocked(ctx, KeyExpenses)
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ExpenseRecorded(e)
	}
	s.logger.InfoContext(ctx, "Expense recorded",
		log.NewFields().WithExpense(e.Category, e.Amount.Cents).ToSlice()...)
	return e, err
}

func (s *Store) appendExpenseLocked(in core.ExpenseInput) core.Expense {
	now := s.Now()
	date := in.Date
	if date.IsZero() {
		date = core.DateOf(now)
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = core.MethodCash
	}
	e := core.Expense{
		ID:            newID("exp"),
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		Amount:        in.Amount,
		Date:          date,
		Method:        method,
		ReceiptNumber: newReceipt(),
		CreatedAt:     now,
	}
	s.expenses = append(s.expenses, e)
	s.revision++
	return e
}

// Export returns copies of the collections selected by scope.
func (s *Store) Export(scope Scope) Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b Bundle
	if scope.includes(ScopePayments) {
		b.Payments = append([]core.Payment{}, s.payments...)
	}
	if scope.includes(ScopeExpenses) {
		b.Expenses = append([]core.Expense{}, s.expenses...)
	}
	if scope.includes(ScopeInvoices) {
		b.Invoices = cloneInvoices(s.invoices)
		if b.Invoices == nil {
			b.Invoices = []core.Invoice{}
		}
	}
	return b
}

// Import replaces every collection present in b and leaves absent ones
// untouched. The invoice counter never moves backwards.
func (s *Store) Import(ctx context.Context, b Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	if b.Payments != nil {
		s.payments = append([]core.Payment{}, b.Payments...)
		keys = append(keys, KeyPayments)
	}
	if b.Expenses != nil {
		s.expenses = append([]core.Expense{}, b.Expenses...)
		keys = append(keys, KeyExpenses)
	}
	if b.Invoices != nil {
		s.invoices = cloneInvoices(b.Invoices)
		if s.invoices == nil {
			s.invoices = []core.Invoice{}
		}
		keys = append(keys, KeyInvoices)
	}
	if len(keys) == 0 {
		return nil
	}
	s.advancePastInvoices()
	s.revision++

	s.logger.InfoContext(ctx, "Ledger imported", log.FieldOperation, log.OpImport, "collections", keys)
	return s.persistLocked(ctx, append(keys, KeyInvoiceSeq)...)
}

// Clear empties all three collections. The invoice counter is kept so
// numbers are never reused.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = []core.Payment{}
	s.expenses = []core.Expense{}
	s.invoices = []core.Invoice{}
	s.revision++

	s.logger.WarnContext(ctx, "Ledger cleared", log.FieldOperation, log.OpClear)
	return s.persistLocked(ctx, KeyPayments, KeyExpenses, KeyInvoices)
}

// Backup returns a full export stamped with BackupVersion.
func (s *Store) Backup() BackupBundle {
	return BackupBundle{
		Bundle:    s.Export(ScopeAll),
		Version:   BackupVersion,
		Timestamp: s.Now(),
	}
}

// Restore imports a backup produced by Backup.
func (s *Store) Restore(ctx context.Context, b BackupBundle) error {
	if !b.compatible() {
		return fmt.Errorf("%w: %s", ErrUnsupportedBackup, b.Version)
	}
	return s.Import(ctx, b.Bundle)
}

// Invoice looks an invoice up by number.
func (s *Store) Invoice(number string) (core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.invoices {
		if inv.Number == number {
			return cloneInvoice(inv), nil
		}
	}
	return core.Invoice{}, fmt.Errorf("invoice %s: %w", number, ErrNotFound)
}

// PaymentByReceipt finds a payment by receipt number, falling back to its id.
func (s *Store) PaymentByReceipt(ref string) (core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.payments {
		if p.ReceiptNumber == ref || p.ID == ref {
			return p, nil
		}
	}
	return core.Payment{}, fmt.Errorf("receipt %s: %w", ref, ErrNotFound)
}

// Expense looks an expense up by id.
func (s *Store) Expense(id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
}

// Unprinted returns invoices whose printed flag is not set.
func (s *Store) Unprinted() []core.Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Invoice
	for _, inv := range s.invoices {
		if !inv.Printed {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out
}

// MarkPrinted sets the printed flag on the given invoices and returns how
// many changed. Unknown numbers yield ErrNotFound after the known ones
// are marked.
func (s *Store) MarkPrinted(ctx context.Context, numbers ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[string]int, len(s.invoices))
	for i, inv := range s.invoices {
		index[inv.Number] = i
	}

	changed := 0
	var missing []string
	for _, n := range numbers {
		i, ok := index[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		if !s.invoices[i].Printed {
			s.invoices[i].Printed = true
			changed++
		}
	}

	var err error
	if changed > 0 {
		s.revision++
		err = s.persistLocked(ctx, KeyInvoices)
	}
	if len(missing) > 0 {
		err = errors.Join(err, fmt.Errorf("invoices %s: %w", strings.Join(missing, ", "), ErrNotFound))
	}
	return changed, err
}

// advancePastInvoices makes sure the next number is above every stored one.
func (s *Store) advancePastInvoices() {
	for _, inv := range s.invoices {
		if n := sequenceOf(inv.Number); n > s.seq {
			s.seq = n
		}
	}
}

// persistLocked writes the named documents. Every key is attempted even if
// an earlier one fails.
func (s *Store) persistLocked(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		var (
			raw []byte
			err error
		)
		switch key {
		case KeyPayments:
			raw, err = json.Marshal(s.payments)
		case KeyExpenses:
			raw, err = json.Marshal(s.expenses)
		case KeyInvoices:
			raw, err = json.Marshal(s.invoices)
		case KeyInvoiceSeq:
			raw = []byte(strconv.FormatInt(s.seq, 10))
		default:
			err = fmt.Errorf("unknown key %s", key)
		}
		if err == nil {
			err = s.kv.Set(ctx, key, string(raw))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", key, err))
			if s.observer != nil {
				s.observer.PersistFailed(key)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}

	err := fmt.Errorf("%w: %w", ErrPersistence, errors.Join(errs...))
	log.NewStructuredLogger(s.logger).LogError(ctx, "Ledger write failed, keeping in-memory state",
		err, log.ComponentLedger, log.OpPersist, nil)
	return err
}

func cloneInvoice(inv core.Invoice) core.Invoice {
	inv.Items = append([]core.InvoiceItem(nil), inv.Items...)
	return inv
}

func cloneInvoices(in []core.Invoice) []core.Invoice {
	if in == nil {
		return nil
	}
	out := make([]core.Invoice, len(in))
	for i, inv := range in {
		out[i] = cloneInvoice(inv)
	}
	return out
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// newReceipt returns a short upper-case receipt reference such as REC-9F1C2A7B.
func newReceipt() string {
	id := uuid.New()
	return "REC-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}
