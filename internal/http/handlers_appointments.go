package http

import (
	"errors"
	"net/http"
	"strings"

	"clinic/internal/appointments"
	"clinic/internal/core"
	"clinic/internal/notify"
	"clinic/internal/services"
)

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := s.svc.Book().Catalog()
	NewResponse().JSON(map[string]any{
		"doctors":  catalog.DoctorList(),
		"services": catalog.ServiceList(),
		"slots":    appointments.Slots(),
	}).Write(w)
}

func sanitizeRequest(req *appointments.Request) {
	req.Doctor = sanitizeInput(req.Doctor)
	req.Service = sanitizeInput(req.Service)
	req.Time = sanitizeInput(req.Time)
	req.PaymentMethod = sanitizeInput(req.PaymentMethod)
	req.PatientName = sanitizeInput(req.PatientName)
	req.PatientPhone = sanitizeInput(req.PatientPhone)
	req.PatientEmail = sanitizeInput(req.PatientEmail)
	req.Notes = sanitizeInput(req.Notes)
}

func (s *Server) handleBookAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointments.Request
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "Invalid appointment", err)
		return
	}
	sanitizeRequest(&req)

	a, err := s.svc.BookAppointment(r.Context(), req)
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Failed to book appointment", err)
		return
	}
	Created(a, err).Write(w)
}

// handleListAppointments lists one day's appointments when ?date= is given,
// every appointment otherwise.
func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	var d core.Date
	if v := strings.TrimSpace(r.URL.Query().Get("date")); v != "" {
		parsed, err := core.ParseDate(v)
		if err != nil {
			s.writeError(w, r, "Invalid date", err)
			return
		}
		d = parsed
	}
	list := s.svc.Book().List(d)
	NewResponse().JSON(map[string]any{
		"count":        len(list),
		"appointments": list,
	}).Write(w)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	d, err := ParseDateParam(r.URL.Query(), "date", s.svc.Book().Now())
	if err != nil {
		s.writeError(w, r, "Invalid date", err)
		return
	}
	slots, err := s.svc.Book().AvailableSlots(d)
	if err != nil {
		s.writeError(w, r, "Slots unavailable", err)
		return
	}
	NewResponse().JSON(map[string]any{
		"date":  d,
		"slots": slots,
	}).Write(w)
}

func (s *Server) handleGetAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.Book().Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "Appointment lookup failed", err)
		return
	}
	NewResponse().JSON(a).Write(w)
}

// handleCompleteAppointment records the visit's payment. The body is
// optional; without it the service's list price is charged.
func (s *Server) handleCompleteAppointment(w http.ResponseWriter, r *http.Request) {
	var c services.Completion
	if err := decodeJSON(w, r, &c); err != nil && !errors.Is(err, errEmptyBody) {
		s.writeError(w, r, "Invalid completion", err)
		return
	}
	c.Method = sanitizeInput(c.Method)

	p, err := s.svc.CompleteAppointment(r.Context(), r.PathValue("id"), c)
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Failed to complete appointment", err)
		return
	}
	Created(p, err).Write(w)
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := s.svc.CancelAppointment(r.Context(), r.PathValue("id"))
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Failed to cancel appointment", err)
		return
	}
	b := NewResponse().JSON(a)
	if err != nil {
		b.Warning("saved in memory only: " + err.Error())
	}
	b.Write(w)
}

// handleNotificationLog lists the most recent notification deliveries.
func (s *Server) handleNotificationLog(w http.ResponseWriter, r *http.Request) {
	entries := []notify.Notification{}
	pending := 0
	if s.queue != nil {
		entries = append(entries, s.queue.Log()...)
		pending = s.queue.Pending()
	}
	NewResponse().JSON(map[string]any{
		"pending":       pending,
		"notifications": entries,
	}).Write(w)
}
