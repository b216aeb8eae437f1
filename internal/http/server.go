// Package http serves the clinic's JSON API, its printable documents and
// the operational endpoints.
package http

import (
	"context"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"clinic/internal/log"
	"clinic/internal/metrics"
	"clinic/internal/notify"
	"clinic/internal/render"
	"clinic/internal/report"
	"clinic/internal/services"
	appweb "clinic/web"
)

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators the handlers call. Metrics, Queue and Checks
// are optional.
type Deps struct {
	Service  *services.ClinicService
	Reports  *report.Builder
	Renderer *render.Renderer
	Metrics  *metrics.Metrics
	Queue    *notify.Queue
	Logger   *log.Logger
	Checks   []ReadyCheck
}

type Option func(*Server)

// WithRateLimit sets how many write requests one client may make per window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimiter.stop()
		s.rateLimiter = newRateLimiter(limit, window)
	}
}

// WithTimeouts sets the server's read, write and idle timeouts.
func WithTimeouts(read, write, idle time.Duration) Option {
	return func(s *Server) {
		s.ReadTimeout = read
		s.ReadHeaderTimeout = read
		s.WriteTimeout = write
		s.IdleTimeout = idle
	}
}

type Server struct {
	http.Server

	svc      *services.ClinicService
	reports  *report.Builder
	renderer *render.Renderer
	metrics  *metrics.Metrics
	queue    *notify.Queue
	checks   []ReadyCheck

	logger      *log.Logger
	rateLimiter *rateLimiter
	security    *securityMetrics
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures the routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps, opts ...Option) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:         deps.Service,
		reports:     deps.Reports,
		renderer:    deps.Renderer,
		metrics:     deps.Metrics,
		queue:       deps.Queue,
		checks:      deps.Checks,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(60, time.Minute),
		security:    &securityMetrics{},
		started:     time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"POST /api/payments", s.handleCreatePayment},
		{"GET /api/payments", s.handleListPayments},
		{"GET /api/payments/{ref}", s.handleGetPayment},
		{"POST /api/expenses", s.handleCreateExpense},
		{"GET /api/expenses", s.handleListExpenses},
		{"GET /api/profit", s.handleProfit},
		{"GET /api/stats/doctors", s.handleDoctorStats},
		{"GET /api/stats/services", s.handleServiceStats},
		{"GET /api/invoices", s.handleListInvoices},
		{"GET /api/invoices/{number}", s.handleGetInvoice},
		{"POST /api/invoices/printed", s.handleMarkPrinted},

		{"GET /api/reports/monthly", s.handleMonthlyReport},
		{"GET /api/reports/comprehensive", s.handleComprehensiveReport},
		{"GET /api/reports/daily", s.handleDailyReport},

		{"GET /api/export", s.handleExport},
		{"POST /api/import", s.handleImport},
		{"POST /api/clear", s.handleClear},
		{"GET /api/backup", s.handleBackup},
		{"POST /api/restore", s.handleRestore},

		{"GET /api/catalog", s.handleCatalog},
		{"POST /api/appointments", s.handleBookAppointment},
		{"GET /api/appointments", s.handleListAppointments},
		{"GET /api/appointments/slots", s.handleSlots},
		{"GET /api/appointments/{id}", s.handleGetAppointment},
		{"POST /api/appointments/{id}/complete", s.handleCompleteAppointment},
		{"POST /api/appointments/{id}/cancel", s.handleCancelAppointment},
		{"GET /api/notifications", s.handleNotificationLog},

		{"GET /print/invoices/{number}", s.handlePrintInvoice},
		{"GET /print/receipts/{ref}", s.handlePrintReceipt},
		{"GET /print/reports/monthly", s.handlePrintMonthly},
		{"GET /print/reports/daily", s.handlePrintDaily},
		{"GET /export/services.csv", s.handleExportServicesCSV},
		{"GET /export/ledger.xlsx", s.handleExportLedgerXLSX},
		{"GET /export/report.json", s.handleExportReportJSON},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, s.wrap(rt.pattern, rt.handler))
	}

	return s
}

// wrap adds request tracing, security headers, rate limiting of writes,
// access logging and request metrics.
func (s *Server) wrap(pattern string, next http.HandlerFunc) http.Handler {
	_, route, _ := strings.Cut(pattern, " ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := s.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), log.LoggerContextKey, logger)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r, s.security) {
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}

		setSecurityHeaders(w.Header())
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, s.security) {
			logger.WarnContext(ctx, "Rate limit exceeded", log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path)
			rw.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(rw)
		} else {
			next(rw, r)
		}

		duration := time.Since(start)
		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, rw.statusCode, duration)
		}
	})
}

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// writeError maps err to a status and writes it. Server errors are logged
// and their detail hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := errorStatus(err)
	logger := log.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), msg, err, log.ComponentHTTP, r.Method+" "+r.URL.Path, nil)
		InternalServerError(msg).Write(w)
		return
	}
	logger.WarnContext(r.Context(), msg, log.FieldError, err.Error(), log.FieldPath, r.URL.Path)
	ErrorResponse(status, err.Error()).Write(w)
}
