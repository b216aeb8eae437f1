package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/render"
)

const (
	contentHTML = "text/html; charset=utf-8"
	contentPDF  = "application/pdf"
	contentCSV  = "text/csv; charset=utf-8"
	contentXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// document answers with the HTML rendering of a document, or with its PDF
// when the query asks for format=pdf.
func (s *Server) document(w http.ResponseWriter, r *http.Request, name string, html func(io.Writer) error, pdf func() ([]byte, error)) {
	if strings.EqualFold(r.URL.Query().Get("format"), "pdf") {
		raw, err := pdf()
		if err != nil {
			s.renderFailed(w, r, name, err)
			return
		}
		NewResponse().
			Header("Content-Disposition", `inline; filename="`+render.Filename("pdf", name)+`"`).
			Body(contentPDF, raw).
			Write(w)
		return
	}

	var buf bytes.Buffer
	if err := html(&buf); err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	NewResponse().Body(contentHTML, buf.Bytes()).Write(w)
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(), "Failed to render document", err,
		log.ComponentRender, log.OpRender, log.NewFields().With("document", name))
	InternalServerError("failed to render " + name).Write(w)
}

func (s *Server) handlePrintInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Ledger().Invoice(r.PathValue("number"))
	if err != nil {
		s.writeError(w, r, "Invoice lookup failed", err)
		return
	}
	s.document(w, r, "invoice "+inv.Number,
		func(w io.Writer) error { return s.renderer.Invoice(w, inv) },
		func() ([]byte, error) { return s.renderer.InvoicePDF(inv) })
}

func (s *Server) handlePrintReceipt(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Ledger().PaymentByReceipt(r.PathValue("ref"))
	if err != nil {
		s.writeError(w, r, "Receipt lookup failed", err)
		return
	}
	s.document(w, r, "receipt "+r.PathValue("ref"),
		func(w io.Writer) error { return s.renderer.Receipt(w, p) },
		func() ([]byte, error) { return s.renderer.ReceiptPDF(p) })
}

func (s *Server) handlePrintMonthly(w http.ResponseWriter, r *http.Request) {
	rep, err := s.monthlyFromQuery(r)
	if err != nil {
		s.writeError(w, r, "Invalid report request", err)
		return
	}
	s.document(w, r, fmt.Sprintf("monthly report %04d %02d", rep.Year, int(rep.Month)),
		func(w io.Writer) error { return s.renderer.Monthly(w, rep) },
		func() ([]byte, error) { return s.renderer.MonthlyPDF(rep) })
}

func (s *Server) handlePrintDaily(w http.ResponseWriter, r *http.Request) {
	rep, err := s.dailyFromQuery(r)
	if err != nil {
		s.writeError(w, r, "Invalid report request", err)
		return
	}
	s.document(w, r, "daily report "+rep.Date.String(),
		func(w io.Writer) error { return s.renderer.Daily(w, rep) },
		func() ([]byte, error) { return s.renderer.DailyPDF(rep) })
}

// handleExportServicesCSV exports the per-service breakdown of the
// requested period.
func (s *Server) handleExportServicesCSV(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	payments := s.reports.Aggregator().RevenueInPeriod(token, s.svc.Ledger().Now())

	var buf bytes.Buffer
	if err := s.renderer.ServicesCSV(&buf, payments); err != nil {
		s.renderFailed(w, r, "services csv", err)
		return
	}
	NewResponse().
		Attachment(render.Filename("csv", "services", string(token), s.now().String())).
		Body(contentCSV, buf.Bytes()).
		Write(w)
}

func (s *Server) handleExportLedgerXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.renderer.LedgerXLSX(&buf, s.svc.Ledger().Export(ledger.ScopeAll)); err != nil {
		s.renderFailed(w, r, "ledger workbook", err)
		return
	}
	NewResponse().
		Attachment(render.Filename("xlsx", "clinic", "ledger", s.now().String())).
		Body(contentXLSX, buf.Bytes()).
		Write(w)
}

// handleExportReportJSON downloads the comprehensive report of a month.
func (s *Server) handleExportReportJSON(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.svc.Ledger().Now())
	if err != nil {
		s.writeError(w, r, "Invalid report request", err)
		return
	}
	rep, err := s.reports.Comprehensive(params.Year, params.Month)
	if err != nil {
		s.writeError(w, r, "Failed to build report", err)
		return
	}

	var buf bytes.Buffer
	if err := render.JSON(&buf, rep); err != nil {
		s.renderFailed(w, r, "report json", err)
		return
	}
	NewResponse().
		Attachment(render.Filename("json", "clinic", "report", fmt.Sprintf("%04d-%02d", params.Year, int(params.Month)))).
		Body("application/json", buf.Bytes()).
		Write(w)
}
