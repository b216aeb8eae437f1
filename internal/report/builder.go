// Package report composes monthly aggregates into comparative reports:
// growth against earlier months, performance leaders, trends, rule based
// insights and naive revenue forecasts.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"clinic/internal/analytics"
	"clinic/internal/cache"
	"clinic/internal/core"
	"clinic/internal/log"
	"clinic/internal/period"
)

// Source is the ledger as seen by the report builder. Revision must change
// whenever the ledger content changes; cached reports are keyed on it.
type Source interface {
	analytics.Source
	Revision() uint64
}

type Builder struct {
	src    Source
	agg    *analytics.Aggregator
	logger *log.Logger

	monthly       *cache.LRUCache[MonthlyReport]
	comprehensive *cache.LRUCache[ComprehensiveReport]

	lowTicket core.Money
}

type Option func(*Builder)

// WithCache sizes both report caches.
func WithCache(size int, ttl time.Duration) Option {
	return func(b *Builder) {
		b.monthly = cache.NewLRUCache[MonthlyReport](size, ttl)
		b.comprehensive = cache.NewLRUCache[ComprehensiveReport](size, ttl)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l.WithComponent(log.ComponentReport)
		}
	}
}

// WithLowTicketThreshold sets the average ticket below which a pricing
// recommendation is raised.
func WithLowTicketThreshold(m core.Money) Option {
	return func(b *Builder) { b.lowTicket = m }
}

func NewBuilder(src Source, loc *time.Location, opts ...Option) *Builder {
	b := &Builder{
		src:       src,
		agg:       analytics.New(src, loc),
		logger:    log.Discard(),
		lowTicket: core.Money{Cents: 8000},
	}
	WithCache(64, 10*time.Minute)(b)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Aggregator exposes the underlying aggregator for period queries.
func (b *Builder) Aggregator() *analytics.Aggregator { return b.agg }

// Register hands the report caches to a cleanup manager.
func (b *Builder) Register(m *cache.Manager) {
	m.Register(b.monthly)
	m.Register(b.comprehensive)
}

// CacheStats reports hits and misses of the monthly and comprehensive caches.
func (b *Builder) CacheStats() (monthly, comprehensive cache.Stats) {
	return b.monthly.Stats(), b.comprehensive.Stats()
}

type RevenueSection struct {
	Total     core.Money                        `json:"total"`
	Count     int                               `json:"count"`
	ByDoctor  map[string]analytics.DoctorStats  `json:"byDoctor"`
	ByService map[string]analytics.ServiceStats `json:"byService"`
}

type ExpenseSection struct {
	Total      core.Money            `json:"total"`
	ByCategory map[string]core.Money `json:"byCategory"`
}

// MonthlyReport is the ledger rollup for one calendar month. The maps are
// shared with the cache and must be treated as read-only.
type MonthlyReport struct {
	Year     int                     `json:"year"`
	Month    time.Month              `json:"month"`
	Period   string                  `json:"period"`
	Revenue  RevenueSection          `json:"revenue"`
	Expenses ExpenseSection          `json:"expenses"`
	Profit   analytics.ProfitSummary `json:"profit"`

	payments []core.Payment
	expenses []core.Expense
}

// Payments returns the month's completed payments in insertion order.
func (r MonthlyReport) Payments() []core.Payment { return r.payments }

// HasData reports whether the month has any payment or expense.
func (r MonthlyReport) HasData() bool {
	return len(r.payments) > 0 || len(r.expenses) > 0
}

func (r MonthlyReport) yearMonth() period.YearMonth {
	return period.YearMonth{Year: r.Year, Month: r.Month}
}

func cacheKey(kind string, ym period.YearMonth, rev uint64) string {
	return fmt.Sprintf("%s:%04d-%02d@%d", kind, ym.Year, ym.Month, rev)
}

// Monthly returns the rollup for year/month, memoised per ledger revision.
func (b *Builder) Monthly(year int, month time.Month) (MonthlyReport, error) {
	ym := period.YearMonth{Year: year, Month: month}
	if !ym.Valid() {
		return MonthlyReport{}, core.ErrInvalidMonth
	}
	return b.monthlyOf(ym), nil
}

func (b *Builder) monthlyOf(ym period.YearMonth) MonthlyReport {
	key := cacheKey("monthly", ym, b.src.Revision())
	if r, ok := b.monthly.Get(key); ok {
		return r
	}

	iv := b.agg.Month(ym)
	payments := b.agg.RevenueIn(iv)
	expenses := b.agg.ExpensesIn(iv)
	summary := analytics.Summarize(payments, expenses)

	r := MonthlyReport{
		Year:   ym.Year,
		Month:  ym.Month,
		Period: iv.Start.Format("January 2006"),
		Revenue: RevenueSection{
			Total:     summary.Revenue,
			Count:     len(payments),
			ByDoctor:  analytics.ByDoctor(payments),
			ByService: analytics.ByService(payments),
		},
		Expenses: ExpenseSection{
			Total:      summary.Expenses,
			ByCategory: analytics.GroupExpensesByCategory(expenses),
		},
		Profit:   summary,
		payments: payments,
		expenses: expenses,
	}
	b.monthly.Set(key, r)
	return r
}

// Daily returns the report for one calendar day.
func (b *Builder) Daily(d core.Date) analytics.DailyReport {
	return b.agg.Daily(d)
}

// PercentageChange is (current-previous)/previous*100 rounded to one
// decimal. A zero previous yields 100 when current is positive and 0
// otherwise.
func PercentageChange(current, previous int64) decimal.Decimal {
	if previous == 0 {
		if current > 0 {
			return decimal.NewFromInt(100)
		}
		return decimal.Zero
	}
	return core.Percent(current-previous, previous)
}
