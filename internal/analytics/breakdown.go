package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"clinic/internal/core"
	"clinic/internal/period"
)

type DoctorStats struct {
	TotalAmount   core.Money     `json:"totalAmount"`
	TotalPatients int            `json:"totalPatients"`
	Services      map[string]int `json:"services"`
}

type ServiceStats struct {
	TotalAmount   core.Money `json:"totalAmount"`
	TotalPatients int        `json:"totalPatients"`
	AveragePrice  core.Money `json:"averagePrice"`
}

// Ranked pairs a grouping key with its statistics.
type Ranked[T any] struct {
	Name  string `json:"name"`
	Stats T      `json:"stats"`
}

// ByDoctor groups payments per doctor: revenue, payment count and the
// number of times each service was performed.
func ByDoctor(payments []core.Payment) map[string]DoctorStats {
	out := make(map[string]DoctorStats)
	for _, p := range payments {
		st, ok := out[p.Doctor]
		if !ok {
			st.Services = make(map[string]int)
		}
		st.TotalAmount = st.TotalAmount.Add(p.NetAmount)
		st.TotalPatients++
		st.Services[p.Service]++
		out[p.Doctor] = st
	}
	return out
}

// ByService groups payments per service with the average net price.
func ByService(payments []core.Payment) map[string]ServiceStats {
	out := make(map[string]ServiceStats)
	for _, p := range payments {
		st := out[p.Service]
		st.TotalAmount = st.TotalAmount.Add(p.NetAmount)
		st.TotalPatients++
		out[p.Service] = st
	}
	for k, st := range out {
		st.AveragePrice = st.TotalAmount.DivRound(int64(st.TotalPatients))
		out[k] = st
	}
	return out
}

// GroupExpensesByCategory sums expense amounts per category.
func GroupExpensesByCategory(expenses []core.Expense) map[string]core.Money {
	out := make(map[string]core.Money)
	for _, e := range expenses {
		out[e.Category] = out[e.Category].Add(e.Amount)
	}
	return out
}

// RankDoctors orders doctors by revenue, highest first, ties by name.
func RankDoctors(stats map[string]DoctorStats) []Ranked[DoctorStats] {
	return rank(stats, func(s DoctorStats) int64 { return s.TotalAmount.Cents })
}

// RankServices orders services by revenue, highest first, ties by name.
func RankServices(stats map[string]ServiceStats) []Ranked[ServiceStats] {
	return rank(stats, func(s ServiceStats) int64 { return s.TotalAmount.Cents })
}

func rank[T any](stats map[string]T, by func(T) int64) []Ranked[T] {
	out := make([]Ranked[T], 0, len(stats))
	for name, st := range stats {
		out = append(out, Ranked[T]{Name: name, Stats: st})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := by(out[i].Stats), by(out[j].Stats)
		if a != b {
			return a > b
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Time-of-day labels for peak hours.
const (
	Morning   = "morning"
	Afternoon = "afternoon"
	Evening   = "evening"
	Night     = "night"
)

// TimeOfDay buckets an hour: 6-12 morning, 12-18 afternoon, 18-22 evening.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return Morning
	case hour >= 12 && hour < 18:
		return Afternoon
	case hour >= 18 && hour < 22:
		return Evening
	default:
		return Night
	}
}

type WeekdayRevenue struct {
	Day    string     `json:"day"`
	Amount core.Money `json:"amount"`
}

type HourRevenue struct {
	Hour      string     `json:"hour"`
	Amount    core.Money `json:"amount"`
	TimeOfDay string     `json:"timePeriod"`
}

// PeakWeekdays returns up to three weekdays by summed revenue, highest
// first. Ties resolve in weekday order, Sunday first.
func (a *Aggregator) PeakWeekdays(payments []core.Payment) []WeekdayRevenue {
	var (
		totals [7]core.Money
		seen   [7]bool
	)
	for _, p := range payments {
		day := p.CreatedAt.In(a.loc).Weekday()
		totals[day] = totals[day].Add(p.NetAmount)
		seen[day] = true
	}
	ranked := make([]WeekdayRevenue, 0, 7)
	for day := time.Sunday; day <= time.Saturday; day++ {
		if seen[day] {
			ranked = append(ranked, WeekdayRevenue{Day: day.String(), Amount: totals[day]})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount.Cents > ranked[j].Amount.Cents
	})
	if len(ranked) > 3 {
		ranked = ranked[:3]
	}
	return ranked
}

// PeakHours returns up to three local hours by summed revenue. Hour keys
// are zero padded ("09:00") so ties resolve chronologically.
func (a *Aggregator) PeakHours(payments []core.Payment) []HourRevenue {
	totals := make(map[string]core.Money)
	for _, p := range payments {
		key := fmt.Sprintf("%02d:00", p.CreatedAt.In(a.loc).Hour())
		totals[key] = totals[key].Add(p.NetAmount)
	}
	ranked := core.RankAmounts(totals)
	out := make([]HourRevenue, 0, 3)
	for i := 0; i < len(ranked) && i < 3; i++ {
		hour, _ := strconv.Atoi(ranked[i].Name[:2])
		out = append(out, HourRevenue{Hour: ranked[i].Name, Amount: ranked[i].Amount, TimeOfDay: TimeOfDay(hour)})
	}
	return out
}

type MethodShare struct {
	Method     string          `json:"method"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// MethodBreakdown counts payments per method with their share of the total,
// most used first.
func MethodBreakdown(payments []core.Payment) []MethodShare {
	counts := make(map[string]int)
	for _, p := range payments {
		counts[p.Method]++
	}
	out := make([]MethodShare, 0, len(counts))
	for m, c := range counts {
		out = append(out, MethodShare{Method: m, Count: c, Percentage: core.Percent(int64(c), int64(len(payments)))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// UniquePatients counts distinct patients, identified by phone number.
// Payments without a phone fall back to the patient name.
func UniquePatients(payments []core.Payment) int {
	seen := make(map[string]struct{})
	for _, p := range payments {
		key := strings.TrimSpace(p.PatientPhone)
		if key == "" {
			key = "name:" + strings.ToLower(strings.TrimSpace(p.PatientName))
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

// DailyReport lists one day's completed payments.
type DailyReport struct {
	Date          core.Date      `json:"date"`
	TotalPatients int            `json:"totalPatients"`
	TotalRevenue  core.Money     `json:"totalRevenue"`
	TotalExpenses core.Money     `json:"totalExpenses"`
	Payments      []core.Payment `json:"payments"`
}

// Daily builds the report for the calendar day d in the clinic time zone.
func (a *Aggregator) Daily(d core.Date) DailyReport {
	iv := period.DayOf(d.At(a.loc))
	payments := a.RevenueIn(iv)
	if payments == nil {
		payments = []core.Payment{}
	}
	return DailyReport{
		Date:          d,
		TotalPatients: len(payments),
		TotalRevenue:  TotalRevenue(payments),
		TotalExpenses: TotalExpenses(a.ExpensesIn(iv)),
		Payments:      payments,
	}
}
