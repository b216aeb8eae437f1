// Package appointments keeps the clinic's appointment book: booking
// validation, the working-hours slot grid and appointment status changes.
package appointments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic/internal/core"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Holds reports whether an appointment in this status occupies its slot.
func (s Status) Holds() bool {
	return s != StatusCancelled
}

type Appointment struct {
	ID               string    `json:"id"`
	Doctor           string    `json:"doctor"`
	Service          string    `json:"service"`
	Date             core.Date `json:"date"`
	Time             string    `json:"time"`
	PaymentMethod    string    `json:"paymentMethod"`
	PatientName      string    `json:"patientName"`
	PatientPhone     string    `json:"patientPhone"`
	PatientEmail     string    `json:"patientEmail,omitempty"`
	PatientAge       int       `json:"patientAge,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	SMSReminder      bool      `json:"smsReminder"`
	WhatsAppReminder bool      `json:"whatsappReminder"`
	EmailReminder    bool      `json:"emailReminder"`
	Status           Status    `json:"status"`
	PaymentID        string    `json:"paymentId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// StartsAt returns the appointment's start instant in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	t, err := time.Parse("15:04", a.Time)
	if err != nil {
		return a.Date.At(loc)
	}
	return a.Date.At(loc).Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

// Request carries the fields a patient fills in when booking.
type Request struct {
	Doctor           string    `json:"doctor"`
	Service          string    `json:"service"`
	Date             core.Date `json:"appointmentDate"`
	Time             string    `json:"appointmentTime"`
	PaymentMethod    string    `json:"paymentMethod"`
	PatientName      string    `json:"patientName"`
	PatientPhone     string    `json:"patientPhone"`
	PatientEmail     string    `json:"patientEmail"`
	PatientAge       int       `json:"patientAge"`
	Notes            string    `json:"notes"`
	SMSReminder      bool      `json:"smsReminder"`
	WhatsAppReminder bool      `json:"whatsappReminder"`
	EmailReminder    bool      `json:"emailReminder"`
}

var (
	ErrNotFound = errors.New("appointment not found")

	ErrMissingDoctor  = core.NewValidationError("doctor is required")
	ErrMissingService = core.NewValidationError("service is required")
	ErrMissingDate    = core.NewValidationError("appointment date is required")
	ErrMissingTime    = core.NewValidationError("appointment time is required")
	ErrUnknownDoctor  = core.NewValidationError("unknown doctor")
	ErrUnknownService = core.NewValidationError("unknown service")
	ErrInvalidSlot    = core.NewValidationError("time is outside working hours")
	ErrPastDate       = core.NewValidationError("cannot book an appointment in the past")
	ErrClosedDay      = core.NewValidationError("the clinic is closed on Sunday")
	ErrSlotTaken      = core.NewValidationError("the selected time is already booked")
	ErrInvalidStatus  = core.NewValidationError("invalid appointment status")
	ErrInvalidEmail   = core.NewValidationError("invalid email address")
)

// Validate checks the fields that do not depend on the book's state.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Doctor) == "" {
		return ErrMissingDoctor
	}
	if strings.TrimSpace(r.Service) == "" {
		return ErrMissingService
	}
	if r.Date.IsZero() {
		return ErrMissingDate
	}
	if strings.TrimSpace(r.Time) == "" {
		return ErrMissingTime
	}
	if !IsSlot(r.Time) {
		return ErrInvalidSlot
	}
	if strings.TrimSpace(r.PatientName) == "" {
		return core.ErrEmptyPatientName
	}
	if strings.TrimSpace(r.PatientPhone) == "" {
		return core.ErrEmptyPhone
	}
	if !core.ValidPhone(r.PatientPhone) {
		return core.ErrInvalidPhone
	}
	if r.PatientEmail != "" && !strings.Contains(r.PatientEmail, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// Working hours: two shifts split into half-hour slots.
var shifts = [][2]string{{"08:00", "12:30"}, {"14:00", "19:30"}}

const slotStep = 30 * time.Minute

var slots = buildSlots()

func buildSlots() []string {
	var out []string
	for _, sh := range shifts {
		from, _ := time.Parse("15:04", sh[0])
		to, _ := time.Parse("15:04", sh[1])
		for t := from; !t.After(to); t = t.Add(slotStep) {
			out = append(out, t.Format("15:04"))
		}
	}
	return out
}

// Slots returns every bookable start time, in order.
func Slots() []string {
	return append([]string(nil), slots...)
}

func IsSlot(hhmm string) bool {
	for _, s := range slots {
		if s == hhmm {
			return true
		}
	}
	return false
}

// ClosedOn reports whether the clinic is closed on d.
func ClosedOn(d core.Date) bool {
	return d.Weekday() == time.Sunday
}

// checkDate rejects closed days and days before today.
func checkDate(d core.Date, today core.Date) error {
	if d.Before(today.Time) {
		return ErrPastDate
	}
	if ClosedOn(d) {
		return ErrClosedDay
	}
	return nil
}

func slotKey(d core.Date, hhmm string) string {
	return fmt.Sprintf("%s %s", d, hhmm)
}
