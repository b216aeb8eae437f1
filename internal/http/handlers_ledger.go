package http

import (
	"net/http"
	"strings"

	"clinic/internal/analytics"
	"clinic/internal/core"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/render"
)

func (s *Server) now() core.Date {
	return core.DateOf(s.svc.Ledger().Now())
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var in core.PaymentInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, "Invalid payment", err)
		return
	}
	sanitizePayment(&in)

	p, err := s.svc.RecordPayment(r.Context(), in)
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Failed to record payment", err)
		return
	}
	Created(p, err).Write(w)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	payments := s.reports.Aggregator().RevenueInPeriod(token, s.svc.Ledger().Now())
	if payments == nil {
		payments = []core.Payment{}
	}
	NewResponse().JSON(map[string]any{
		"period":   token,
		"count":    len(payments),
		"total":    analytics.TotalRevenue(payments),
		"payments": payments,
	}).Write(w)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Ledger().PaymentByReceipt(r.PathValue("ref"))
	if err != nil {
		s.writeError(w, r, "Payment lookup failed", err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in core.ExpenseInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, "Invalid expense", err)
		return
	}
	sanitizeExpense(&in)

	e, err := s.svc.RecordExpense(r.Context(), in)
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Failed to record expense", err)
		return
	}
	Created(e, err).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	expenses := s.reports.Aggregator().ExpensesInPeriod(token, s.svc.Ledger().Now())
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewResponse().JSON(map[string]any{
		"period":     token,
		"count":      len(expenses),
		"total":      analytics.TotalExpenses(expenses),
		"byCategory": core.RankAmounts(analytics.GroupExpensesByCategory(expenses)),
		"expenses":   expenses,
	}).Write(w)
}

func (s *Server) handleProfit(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	summary := s.reports.Aggregator().Profit(token, s.svc.Ledger().Now())
	NewResponse().JSON(map[string]any{
		"period":  token,
		"summary": summary,
	}).Write(w)
}

func (s *Server) handleDoctorStats(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	payments := s.reports.Aggregator().RevenueInPeriod(token, s.svc.Ledger().Now())
	NewResponse().JSON(map[string]any{
		"period":  token,
		"doctors": analytics.RankDoctors(analytics.ByDoctor(payments)),
	}).Write(w)
}

func (s *Server) handleServiceStats(w http.ResponseWriter, r *http.Request) {
	token := ParsePeriod(r.URL.Query())
	payments := s.reports.Aggregator().RevenueInPeriod(token, s.svc.Ledger().Now())
	NewResponse().JSON(map[string]any{
		"period":   token,
		"services": analytics.RankServices(analytics.ByService(payments)),
		"methods":  analytics.MethodBreakdown(payments),
	}).Write(w)
}

// handleListInvoices lists unprinted invoices by default; ?all=true lists
// every invoice.
func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	var invoices []core.Invoice
	if strings.EqualFold(r.URL.Query().Get("all"), "true") {
		invoices = s.svc.Ledger().Invoices()
	} else {
		invoices = s.svc.Ledger().Unprinted()
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	NewResponse().JSON(map[string]any{
		"count":    len(invoices),
		"invoices": invoices,
	}).Write(w)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.Ledger().Invoice(r.PathValue("number"))
	if err != nil {
		s.writeError(w, r, "Invoice lookup failed", err)
		return
	}
	NewResponse().JSON(inv).Write(w)
}

type markPrintedRequest struct {
	Numbers []string `json:"numbers"`
}

func (s *Server) handleMarkPrinted(w http.ResponseWriter, r *http.Request) {
	var req markPrintedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "Invalid request", err)
		return
	}
	if len(req.Numbers) == 0 {
		BadRequestError("numbers is required").Write(w)
		return
	}
	for i := range req.Numbers {
		req.Numbers[i] = sanitizeInput(req.Numbers[i])
	}

	changed, err := s.svc.Ledger().MarkPrinted(r.Context(), req.Numbers...)
	switch {
	case err == nil:
		NewResponse().JSON(map[string]int{"marked": changed}).Write(w)
	case isPersistence(err) && !isNotFound(err):
		NewResponse().Warning(err.Error()).JSON(map[string]int{"marked": changed}).Write(w)
	default:
		s.writeError(w, r, "Failed to mark invoices printed", err)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	scope := ledger.ParseScope(r.URL.Query().Get("scope"))
	NewResponse().
		Attachment(render.Filename("json", "clinic", string(scope), s.now().String())).
		JSON(s.svc.Ledger().Export(scope)).
		Write(w)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var b ledger.Bundle
	if err := decodeJSON(w, r, &b); err != nil {
		s.writeError(w, r, "Invalid import", err)
		return
	}
	if b.Empty() {
		BadRequestError("import carries no payments, expenses or invoices").Write(w)
		return
	}

	err := s.svc.Ledger().Import(r.Context(), b)
	s.ledgerWritten(w, r, log.OpImport, err)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	err := s.svc.Ledger().Clear(r.Context())
	s.ledgerWritten(w, r, log.OpClear, err)
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	NewResponse().
		Attachment(render.Filename("json", "clinic", "backup", s.now().String())).
		JSON(s.svc.Ledger().Backup()).
		Write(w)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var b ledger.BackupBundle
	if err := decodeJSON(w, r, &b); err != nil {
		s.writeError(w, r, "Invalid backup", err)
		return
	}
	err := s.svc.Ledger().Restore(r.Context(), b)
	s.ledgerWritten(w, r, log.OpRestore, err)
}

// ledgerWritten answers a bulk ledger write. Persistence failures keep the
// in-memory change and are reported in the warning header.
func (s *Server) ledgerWritten(w http.ResponseWriter, r *http.Request, op string, err error) {
	if err != nil && !isPersistence(err) {
		s.writeError(w, r, "Ledger "+op+" failed", err)
		return
	}
	b := NewResponse().JSON(map[string]any{
		"status":   "ok",
		"revision": s.svc.Ledger().Revision(),
	})
	if err != nil {
		b.Warning("saved in memory only: " + err.Error())
	}
	b.Write(w)
}
