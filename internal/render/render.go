// Package render turns ledger entities and reports into printable
// documents: HTML pages from the embedded templates, PDFs, CSV, JSON and
// XLSX exports.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"clinic/internal/analytics"
	"clinic/internal/appointments"
	"clinic/internal/core"
	"clinic/internal/report"
	appweb "clinic/web"
)

// Clinic is the letterhead printed on every document.
type Clinic struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

func DefaultClinic() Clinic {
	return Clinic{
		Name:    "Al-Aamer Dental Clinic",
		Address: "Sana'a, Yemen",
		Phone:   "+967 123 456 789",
		Email:   "info@al-aamer-dental.com",
	}
}

// Renderer holds the parsed templates and the lookups needed to print
// human-readable doctor and service names.
type Renderer struct {
	templates *template.Template
	clinic    Clinic
	catalog   appointments.Catalog
	loc       *time.Location
	now       func() time.Time
}

type Option func(*Renderer)

func WithClinic(c Clinic) Option {
	return func(r *Renderer) { r.clinic = c }
}

func WithCatalog(c appointments.Catalog) Option {
	return func(r *Renderer) { r.catalog = c }
}

func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// New parses the embedded document templates.
func New(opts ...Option) (*Renderer, error) {
	r := &Renderer{
		clinic:  DefaultClinic(),
		catalog: appointments.DefaultCatalog(),
		loc:     time.Local,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	tmpl, err := template.New("documents").Funcs(template.FuncMap{
		"money":   func(m core.Money) string { return m.String() },
		"doctor":  r.doctorName,
		"service": r.serviceName,
		"method":  methodLabel,
		"clock":   func(t time.Time) string { return t.In(r.loc).Format("15:04") },
		"stamp":   func(t time.Time) string { return t.In(r.loc).Format("2006-01-02 15:04") },
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.templates = tmpl
	return r, nil
}

func (r *Renderer) Clinic() Clinic { return r.clinic }

func (r *Renderer) doctorName(id string) string {
	if d, ok := r.catalog.Doctor(id); ok && d.Name != "" {
		return d.Name
	}
	return id
}

func (r *Renderer) serviceName(id string) string {
	if s, ok := r.catalog.Service(id); ok && s.Name != "" {
		return s.Name
	}
	return id
}

func methodLabel(m string) string {
	switch m {
	case core.MethodCash:
		return "Cash"
	case core.MethodCard:
		return "Card"
	case core.MethodTransfer:
		return "Bank transfer"
	case "":
		return "-"
	default:
		return m
	}
}

type page struct {
	Title     string
	Clinic    Clinic
	Generated time.Time
	Data      any
}

func (r *Renderer) execute(w io.Writer, name, title string, data any) error {
	// Render into a buffer so a template error never leaves a half-written page.
	var buf bytes.Buffer
	err := r.templates.ExecuteTemplate(&buf, name, page{
		Title:     title,
		Clinic:    r.clinic,
		Generated: r.now(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// Invoice writes the printable HTML invoice.
func (r *Renderer) Invoice(w io.Writer, inv core.Invoice) error {
	return r.execute(w, "invoice.html", "Invoice "+inv.Number, inv)
}

// Receipt writes the printable HTML receipt of a payment.
func (r *Renderer) Receipt(w io.Writer, p core.Payment) error {
	return r.execute(w, "receipt.html", "Receipt "+receiptRef(p), p)
}

type monthlyView struct {
	Report     report.MonthlyReport
	Doctors    []analytics.Ranked[analytics.DoctorStats]
	Services   []analytics.Ranked[analytics.ServiceStats]
	Categories []core.CategoryAmount
}

func newMonthlyView(m report.MonthlyReport) monthlyView {
	return monthlyView{
		Report:     m,
		Doctors:    analytics.RankDoctors(m.Revenue.ByDoctor),
		Services:   analytics.RankServices(m.Revenue.ByService),
		Categories: core.RankAmounts(m.Expenses.ByCategory),
	}
}

// Monthly writes the printable monthly report.
func (r *Renderer) Monthly(w io.Writer, m report.MonthlyReport) error {
	return r.execute(w, "monthly.html", "Monthly report "+m.Period, newMonthlyView(m))
}

// Daily writes the printable daily report.
func (r *Renderer) Daily(w io.Writer, d analytics.DailyReport) error {
	return r.execute(w, "daily.html", "Daily report "+d.Date.String(), d)
}

func receiptRef(p core.Payment) string {
	if p.ReceiptNumber != "" {
		return p.ReceiptNumber
	}
	return p.ID
}
