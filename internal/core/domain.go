package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	StatusCompleted PaymentStatus = "completed"

	MethodCash     = "cash"
	MethodCard     = "card"
	MethodTransfer = "transfer"
)

type (
	PaymentStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Payment is a completed patient payment. NetAmount is always Amount minus Discount.
	Payment struct {
		ID            string        `json:"id"`
		AppointmentID string        `json:"appointmentId"`
		PatientName   string        `json:"patientName"`
		PatientPhone  string        `json:"patientPhone"`
		Doctor        string        `json:"doctor"`
		Service       string        `json:"service"`
		Amount        Money         `json:"amount"`
		Discount      Money         `json:"discount"`
		NetAmount     Money         `json:"netAmount"`
		Method        string        `json:"paymentMethod"`
		Status        PaymentStatus `json:"status"`
		ReceiptNumber string        `json:"receiptNumber"`
		CreatedAt     time.Time     `json:"timestamp"`
		InvoiceNumber string        `json:"invoiceNumber"`
	}

	Expense struct {
		ID            string    `json:"id"`
		Category      string    `json:"category"`
		Description   string    `json:"description"`
		Amount        Money     `json:"amount"`
		Date          Date      `json:"date"`
		Method        string    `json:"paymentMethod"`
		ReceiptNumber string    `json:"receiptNumber"`
		CreatedAt     time.Time `json:"timestamp"`
	}

	InvoiceItem struct {
		Service   string `json:"service"`
		Doctor    string `json:"doctor"`
		Quantity  int    `json:"quantity"`
		UnitPrice Money  `json:"unitPrice"`
		Total     Money  `json:"total"`
	}

	Invoice struct {
		Number       string        `json:"number"`
		PaymentID    string        `json:"paymentId"`
		Date         Date          `json:"date"`
		PatientName  string        `json:"patientName"`
		PatientPhone string        `json:"patientPhone"`
		Items        []InvoiceItem `json:"items"`
		Subtotal     Money         `json:"subtotal"`
		Discount     Money         `json:"discount"`
		Total        Money         `json:"total"`
		Method       string        `json:"paymentMethod"`
		Printed      bool          `json:"printed"`
	}

	// PaymentInput carries the caller-supplied fields of a new payment.
	PaymentInput struct {
		AppointmentID string `json:"appointmentId"`
		PatientName   string `json:"patientName"`
		PatientPhone  string `json:"patientPhone"`
		Doctor        string `json:"doctor"`
		Service       string `json:"service"`
		Amount        Money  `json:"amount"`
		Discount      Money  `json:"discount"`
		Method        string `json:"paymentMethod"`
	}

	// ExpenseInput carries the caller-supplied fields of a new expense.
	// A zero Date means today.
	ExpenseInput struct {
		Category    string `json:"category"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
		Date        Date   `json:"date"`
		Method      string `json:"paymentMethod"`
	}
)

// ValidationError marks input rejected before any mutation happens.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalid(msg string) error { return &ValidationError{msg: msg} }

// NewValidationError returns an error that IsValidation recognises.
func NewValidationError(msg string) error { return invalid(msg) }

// IsValidation reports whether err (or anything it wraps) is a validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var (
	ErrInvalidDay        = invalid("invalid day")
	ErrInvalidMonth      = invalid("invalid month")
	ErrInvalidDate       = invalid("invalid date")
	ErrInvalidAmount     = invalid("invalid amount")
	ErrInvalidDiscount   = invalid("discount must be between zero and the amount")
	ErrEmptyDescription  = invalid("empty description")
	ErrDescriptionLength = invalid("description too long (max 200 characters)")
	ErrEmptyCategory     = invalid("empty expense category")
	ErrEmptyPatientName  = invalid("empty patient name")
	ErrEmptyPhone        = invalid("empty patient phone")
	ErrInvalidPhone      = invalid("invalid phone number")
	ErrEmptyDoctor       = invalid("empty doctor")
	ErrEmptyService      = invalid("empty service")
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]+$`)

// ValidPhone accepts digits, plus, dash, spaces and parentheses.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimSpace(phone))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day in the instant's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar day.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// At returns local midnight of the calendar day in loc.
func (d Date) At(loc *time.Location) time.Time {
	return time.Date(d.Year(), time.Month(d.Month()), d.Day(), 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Full timestamps are accepted and truncated to their calendar day.
	if len(s) > len(time.DateOnly) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return ErrInvalidDate
		}
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (in PaymentInput) Validate() error {
	if strings.TrimSpace(in.PatientName) == "" {
		return ErrEmptyPatientName
	}
	if in.PatientPhone != "" && !ValidPhone(in.PatientPhone) {
		return ErrInvalidPhone
	}
	if strings.TrimSpace(in.Doctor) == "" {
		return ErrEmptyDoctor
	}
	if strings.TrimSpace(in.Service) == "" {
		return ErrEmptyService
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Discount.Cents < 0 || in.Discount.Cents > in.Amount.Cents {
		return ErrInvalidDiscount
	}
	return nil
}

func (in ExpenseInput) Validate() error {
	if strings.TrimSpace(in.Category) == "" {
		return ErrEmptyCategory
	}
	if len(in.Description) > 200 {
		return ErrDescriptionLength
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if !in.Date.IsZero() {
		if err := in.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Completed reports whether the payment counts towards revenue.
func (p Payment) Completed() bool {
	return p.Status == StatusCompleted
}
