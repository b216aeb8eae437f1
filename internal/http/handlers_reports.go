package http

import (
	"net/http"

	"clinic/internal/analytics"
	"clinic/internal/report"
)

func (s *Server) monthlyFromQuery(r *http.Request) (report.MonthlyReport, error) {
	params, err := ParseMonthParams(r.URL.Query(), s.svc.Ledger().Now())
	if err != nil {
		return report.MonthlyReport{}, err
	}
	return s.reports.Monthly(params.Year, params.Month)
}

func (s *Server) dailyFromQuery(r *http.Request) (analytics.DailyReport, error) {
	d, err := ParseDateParam(r.URL.Query(), "date", s.svc.Ledger().Now())
	if err != nil {
		return analytics.DailyReport{}, err
	}
	return s.reports.Daily(d), nil
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.monthlyFromQuery(r)
	if err != nil {
		s.writeError(w, r, "Invalid report request", err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}

func (s *Server) handleComprehensiveReport(w http.ResponseWriter, r *http.Request) {
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
	NewResponse().JSON(rep).Write(w)
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.dailyFromQuery(r)
	if err != nil {
		s.writeError(w, r, "Invalid report request", err)
		return
	}
	NewResponse().JSON(rep).Write(w)
}
