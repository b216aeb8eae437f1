// Package metrics exposes the clinic's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clinic/internal/cache"
	"clinic/internal/core"
)

// Metrics implements ledger.Observer and notify.DeliveryObserver.
type Metrics struct {
	registry *prometheus.Registry

	payments        *prometheus.CounterVec
	paymentAmount   *prometheus.HistogramVec
	expenses        *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg uses a fresh registry,
// which is what tests want.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_payments_total",
		Help: "Payments recorded by doctor and payment method.",
	}, []string{"doctor", "method"})

	paymentAmount := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinic_payment_net_amount",
		Help:    "Net amount of recorded payments in major currency units.",
		Buckets: []float64{25, 50, 75, 100, 150, 200, 300, 500},
	}, []string{"service"})

	expenses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_expenses_total",
		Help: "Expenses recorded by category.",
	}, []string{"category"})

	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_persist_failures_total",
		Help: "Failed writes of ledger collections by storage key.",
	}, []string{"key"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_notifications_total",
		Help: "Notification delivery outcomes by channel.",
	}, []string{"channel", "status"})

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "clinic_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clinic_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	reg.MustRegister(
		payments,
		paymentAmount,
		expenses,
		persistFailures,
		notifications,
		httpRequests,
		httpDuration,
	)

	return &Metrics{
		registry:        reg,
		payments:        payments,
		paymentAmount:   paymentAmount,
		expenses:        expenses,
		persistFailures: persistFailures,
		notifications:   notifications,
		httpRequests:    httpRequests,
		httpDuration:    httpDuration,
	}
}

func (m *Metrics) PaymentRecorded(p core.Payment) {
	m.payments.WithLabelValues(p.Doctor, p.Method).Inc()
	m.paymentAmount.WithLabelValues(p.Service).Observe(p.NetAmount.Units())
}

func (m *Metrics) ExpenseRecorded(e core.Expense) {
	m.expenses.WithLabelValues(e.Category).Inc()
}

func (m *Metrics) PersistFailed(key string) {
	m.persistFailures.WithLabelValues(key).Inc()
}

func (m *Metrics) NotificationDelivered(channel string, sent bool) {
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// StatsFunc reports the current statistics of one cache.
type StatsFunc func() cache.Stats

// RegisterCache exposes a cache's hits, misses and size as gauges read on
// every scrape.
func (m *Metrics) RegisterCache(name string, stats StatsFunc) {
	labels := prometheus.Labels{"cache": name}
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "clinic_cache_hits",
			Help:        "Cache hits since start.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Hits) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "clinic_cache_misses",
			Help:        "Cache misses since start.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Misses) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "clinic_cache_entries",
			Help:        "Entries currently cached.",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
