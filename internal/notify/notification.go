// Package notify composes patient and front-desk notifications and delivers
// them through a FIFO queue.
package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"clinic/internal/appointments"
	"clinic/internal/core"
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
)

// Notification kinds.
const (
	KindNewAppointment = "new_appointment"
	KindConfirmation   = "confirmation"
	KindReminder24h    = "reminder_24h"
	KindReminder2h     = "reminder_2h"
	KindReceipt        = "receipt"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

type Notification struct {
	Kind          string    `json:"kind"`
	Channel       Channel   `json:"channel"`
	To            string    `json:"to"`
	Subject       string    `json:"subject,omitempty"`
	Message       string    `json:"message"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	SendAt        time.Time `json:"sendAt"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Settings controls which channels are used and who the clinic is.
type Settings struct {
	ClinicName  string
	ClinicEmail string
	ClinicPhone string
	CountryCode string
	Email       bool
	SMS         bool
	WhatsApp    bool
}

func DefaultSettings() Settings {
	return Settings{
		ClinicName:  "Al-Aamer Dental Clinic",
		ClinicEmail: "info@al-aamer-dental.com",
		ClinicPhone: "+967 123 456 789",
		CountryCode: "967",
		Email:       true,
		SMS:         true,
		WhatsApp:    true,
	}
}

// Composer builds notifications for appointments and payments.
type Composer struct {
	settings Settings
	catalog  appointments.Catalog
	loc      *time.Location
}

func NewComposer(settings Settings, catalog appointments.Catalog, loc *time.Location) *Composer {
	if loc == nil {
		loc = time.Local
	}
	return &Composer{settings: settings, catalog: catalog, loc: loc}
}

func (c *Composer) doctorName(id string) string {
	if d, ok := c.catalog.Doctor(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (c *Composer) serviceName(id string) string {
	if s, ok := c.catalog.Service(id); ok && s.Name != "" {
		return s.Name
	}
	return id
}

// NewAppointment tells the front desk about a booking by email and WhatsApp
// and sends the patient an SMS with the booking reference.
func (c *Composer) NewAppointment(a appointments.Appointment, now time.Time) []Notification {
	doctor := c.doctorName(a.Doctor)
	service := c.serviceName(a.Service)
	var out []Notification

	if c.settings.Email && c.settings.ClinicEmail != "" {
		out = append(out, Notification{
			Kind:    KindNewAppointment,
			Channel: ChannelEmail,
			To:      c.settings.ClinicEmail,
			Subject: "New appointment - " + c.settings.ClinicName,
			Message: fmt.Sprintf("New appointment:\nPatient: %s\nDoctor: %s\nService: %s\nDate: %s\nTime: %s",
				a.PatientName, doctor, service, a.Date, a.Time),
		})
	}
	if c.settings.WhatsApp && c.settings.ClinicPhone != "" {
		out = append(out, Notification{
			Kind:    KindNewAppointment,
			Channel: ChannelWhatsApp,
			To:      c.settings.ClinicPhone,
			Message: fmt.Sprintf("New appointment!\nPatient: %s\nDoctor: %s\nService: %s\nDate: %s\nTime: %s",
				a.PatientName, doctor, service, a.Date, a.Time),
		})
	}
	if c.settings.SMS && a.PatientPhone != "" {
		out = append(out, Notification{
			Kind:    KindConfirmation,
			Channel: ChannelSMS,
			To:      a.PatientPhone,
			Message: fmt.Sprintf("Your appointment at %s is booked\nDate: %s\nTime: %s\nDoctor: %s\nBooking reference: %s",
				c.settings.ClinicName, a.Date, a.Time, doctor, a.ID),
		})
	}
	return c.stamp(out, a.ID, now)
}

// Reminders returns the 24 hour and 2 hour reminders for a, on every channel
// the patient opted into. Reminders whose send time is not after now are
// dropped.
func (c *Composer) Reminders(a appointments.Appointment, now time.Time) []Notification {
	start := a.StartsAt(c.loc)
	doctor := c.doctorName(a.Doctor)

	var out []Notification
	for _, r := range []struct {
		kind   string
		before time.Duration
		text   string
	}{
		{KindReminder24h, 24 * time.Hour, fmt.Sprintf("Reminder: you have an appointment tomorrow with %s\nDate: %s\nTime: %s", doctor, a.Date, a.Time)},
		{KindReminder2h, 2 * time.Hour, fmt.Sprintf("Reminder: your appointment with %s is in two hours!\nPlease arrive 15 minutes early", doctor)},
	} {
		sendAt := start.Add(-r.before)
		if !sendAt.After(now) {
			continue
		}
		for _, n := range c.reminderChannels(a, r.text) {
			n.Kind = r.kind
			n.AppointmentID = a.ID
			n.SendAt = sendAt
			n.Status = StatusPending
			n.Timestamp = now
			out = append(out, n)
		}
	}
	return out
}

func (c *Composer) reminderChannels(a appointments.Appointment, text string) []Notification {
	var out []Notification
	if a.SMSReminder && a.PatientPhone != "" {
		out = append(out, Notification{Channel: ChannelSMS, To: a.PatientPhone, Message: text})
	}
	if a.WhatsAppReminder && a.PatientPhone != "" {
		out = append(out, Notification{
			Channel: ChannelWhatsApp,
			To:      WhatsAppLink(a.PatientPhone, c.settings.CountryCode, text),
			Message: text,
		})
	}
	if a.EmailReminder && a.PatientEmail != "" {
		out = append(out, Notification{
			Channel: ChannelEmail,
			To:      a.PatientEmail,
			Subject: "Appointment reminder - " + c.settings.ClinicName,
			Message: text,
		})
	}
	return out
}

// Receipt sends the patient an SMS confirming a payment.
func (c *Composer) Receipt(p core.Payment, now time.Time) []Notification {
	if !c.settings.SMS || p.PatientPhone == "" {
		return nil
	}
	n := Notification{
		Kind:    KindReceipt,
		Channel: ChannelSMS,
		To:      p.PatientPhone,
		Message: fmt.Sprintf("Thank you for visiting %s\nReceipt: %s\nInvoice: %s\nAmount paid: %s",
			c.settings.ClinicName, p.ReceiptNumber, p.InvoiceNumber, p.NetAmount),
	}
	return c.stamp([]Notification{n}, p.AppointmentID, now)
}

func (c *Composer) stamp(ns []Notification, appointmentID string, now time.Time) []Notification {
	for i := range ns {
		ns[i].AppointmentID = appointmentID
		ns[i].SendAt = now
		ns[i].Status = StatusPending
		ns[i].Timestamp = now
	}
	return ns
}

// WhatsAppNumber converts a local or international phone number to the
// digits-only form wa.me expects. A leading 00 is an international prefix;
// a single leading 0 is a trunk prefix replaced by countryCode.
func WhatsAppNumber(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "00"):
		return digits[2:]
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
		return digits
	case strings.HasPrefix(digits, "0"):
		return countryCode + digits[1:]
	case strings.HasPrefix(strings.TrimSpace(phone), "+"):
		return digits
	default:
		return countryCode + digits
	}
}

// WhatsAppLink returns a click-to-chat link with text prefilled.
func WhatsAppLink(phone, countryCode, text string) string {
	link := "https://wa.me/" + WhatsAppNumber(phone, countryCode)
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}
