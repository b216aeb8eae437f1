package http

import (
	"context"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady probes the renderer and every configured dependency. Any
// failed check answers 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.renderer == nil {
		checks["templates"] = "failed: renderer not configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}
	if s.svc == nil {
		checks["ledger"] = "failed: service not configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["ledger"] = map[string]any{
			"status":   "ok",
			"revision": s.svc.Ledger().Revision(),
		}
	}

	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	if s.reports != nil {
		monthly, comprehensive := s.reports.CacheStats()
		checks["cache"] = map[string]any{
			"monthly_entries":       monthly.Size,
			"monthly_hits":          monthly.Hits,
			"comprehensive_entries": comprehensive.Size,
			"comprehensive_hits":    comprehensive.Hits,
		}
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
	}
	checks["security"] = s.security.snapshot()
	if s.queue != nil {
		checks["notifications"] = map[string]any{"pending": s.queue.Pending()}
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
