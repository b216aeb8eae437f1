package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"clinic/internal/analytics"
	"clinic/internal/core"
	"clinic/internal/period"
)

// Growth holds month-over-month percentage changes.
type Growth struct {
	Revenue  decimal.Decimal `json:"revenue"`
	Patients decimal.Decimal `json:"patients"`
	Profit   decimal.Decimal `json:"profit"`
}

type AmountChange struct {
	Current  core.Money      `json:"current"`
	Previous core.Money      `json:"previous"`
	Change   decimal.Decimal `json:"change"`
}

type CountChange struct {
	Current  int             `json:"current"`
	Previous int             `json:"previous"`
	Change   decimal.Decimal `json:"change"`
}

// Comparison labels.
const (
	PreviousMonth     = "previous_month"
	SameMonthLastYear = "same_month_last_year"
)

type Comparison struct {
	Period   string           `json:"period"`
	Against  period.YearMonth `json:"against"`
	Revenue  AmountChange     `json:"revenue"`
	Patients CountChange      `json:"patients"`
}

type TopDoctor struct {
	Name          string     `json:"name"`
	Revenue       core.Money `json:"revenue"`
	Patients      int        `json:"patients"`
	AvgPerPatient core.Money `json:"avgPerPatient"`
}

type TopService struct {
	Name     string     `json:"name"`
	Revenue  core.Money `json:"revenue"`
	Count    int        `json:"count"`
	AvgPrice core.Money `json:"avgPrice"`
}

type Performance struct {
	TopDoctor        *TopDoctor      `json:"topDoctor"`
	TopService       *TopService     `json:"topService"`
	AvgTicketSize    core.Money      `json:"avgTicketSize"`
	DailyAverage     core.Money      `json:"dailyAvg"`
	PatientRetention decimal.Decimal `json:"patientRetention"`
}

// Seasonal compares a month with the same month of earlier years.
type Seasonal struct {
	Years    []int           `json:"years"`
	Average  core.Money      `json:"average"`
	Current  core.Money      `json:"current"`
	Variance decimal.Decimal `json:"variance"`
	Trend    string          `json:"trend"`
}

const (
	TrendUp   = "up"
	TrendDown = "down"
)

type Trends struct {
	PeakDays        []analytics.WeekdayRevenue `json:"peakDays"`
	PeakHours       []analytics.HourRevenue    `json:"peakHours"`
	SeasonalPattern *Seasonal                  `json:"seasonalPattern"`
	PaymentTrends   []analytics.MethodShare    `json:"paymentTrends"`
}

type Insight struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Recommendation struct {
	Priority    string `json:"priority"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

type Analysis struct {
	Growth      Growth      `json:"growth"`
	Performance Performance `json:"performance"`
	Trends      Trends      `json:"trends"`
	Insights    []Insight   `json:"insights"`
}

// ComprehensiveReport is the monthly rollup plus its analysis.
type ComprehensiveReport struct {
	MonthlyReport
	Analysis        Analysis         `json:"analysis"`
	Comparisons     []Comparison     `json:"comparisons"`
	Recommendations []Recommendation `json:"recommendations"`
	Forecasts       Forecasts        `json:"forecasts"`
}

// Comprehensive builds the full report for year/month. Results are cached
// per ledger revision.
func (b *Builder) Comprehensive(year int, month time.Month) (ComprehensiveReport, error) {
	ym := period.YearMonth{Year: year, Month: month}
	if !ym.Valid() {
		return ComprehensiveReport{}, core.ErrInvalidMonth
	}

	key := cacheKey("comprehensive", ym, b.src.Revision())
	if r, ok := b.comprehensive.Get(key); ok {
		return r, nil
	}

	start := time.Now()
	cur := b.monthlyOf(ym)
	prev := b.monthlyOf(ym.Previous())

	r := ComprehensiveReport{MonthlyReport: cur}
	r.Analysis = Analysis{
		Growth:      growth(cur, prev),
		Performance: performance(cur),
		Trends:      b.trends(cur),
	}
	r.Analysis.Insights = insights(cur)
	r.Comparisons = b.comparisons(cur, prev)
	r.Recommendations = b.recommendations(r)
	r.Forecasts = b.forecasts(cur)

	b.comprehensive.Set(key, r)
	b.logger.Debug("Comprehensive report built",
		"year", year, "month", int(month), "duration", time.Since(start))
	return r, nil
}

func growth(cur, prev MonthlyReport) Growth {
	return Growth{
		Revenue:  PercentageChange(cur.Revenue.Total.Cents, prev.Revenue.Total.Cents),
		Patients: PercentageChange(int64(cur.Revenue.Count), int64(prev.Revenue.Count)),
		Profit:   PercentageChange(cur.Profit.Profit.Cents, prev.Profit.Profit.Cents),
	}
}

func compare(label string, cur, other MonthlyReport) Comparison {
	return Comparison{
		Period:  label,
		Against: other.yearMonth(),
		Revenue: AmountChange{
			Current:  cur.Revenue.Total,
			Previous: other.Revenue.Total,
			Change:   PercentageChange(cur.Revenue.Total.Cents, other.Revenue.Total.Cents),
		},
		Patients: CountChange{
			Current:  cur.Revenue.Count,
			Previous: other.Revenue.Count,
			Change:   PercentageChange(int64(cur.Revenue.Count), int64(other.Revenue.Count)),
		},
	}
}

// comparisons always includes the previous month; the same month last year
// is included only when the ledger has entries for it.
func (b *Builder) comparisons(cur, prev MonthlyReport) []Comparison {
	out := []Comparison{compare(PreviousMonth, cur, prev)}
	if ly := b.monthlyOf(cur.yearMonth().SameMonthLastYear()); ly.HasData() {
		out = append(out, compare(SameMonthLastYear, cur, ly))
	}
	return out
}

func performance(r MonthlyReport) Performance {
	var p Performance
	if doctors := analytics.RankDoctors(r.Revenue.ByDoctor); len(doctors) > 0 {
		top := doctors[0]
		p.TopDoctor = &TopDoctor{
			Name:          top.Name,
			Revenue:       top.Stats.TotalAmount,
			Patients:      top.Stats.TotalPatients,
			AvgPerPatient: top.Stats.TotalAmount.DivRound(int64(top.Stats.TotalPatients)),
		}
	}
	if services := analytics.RankServices(r.Revenue.ByService); len(services) > 0 {
		top := services[0]
		p.TopService = &TopService{
			Name:     top.Name,
			Revenue:  top.Stats.TotalAmount,
			Count:    top.Stats.TotalPatients,
			AvgPrice: top.Stats.AveragePrice,
		}
	}
	p.AvgTicketSize = r.Revenue.Total.DivRound(int64(r.Revenue.Count))
	p.DailyAverage = r.Revenue.Total.DivRound(int64(r.yearMonth().DaysIn()))
	p.PatientRetention = core.Percent(int64(analytics.UniquePatients(r.payments)), int64(r.Revenue.Count))
	return p
}

func (b *Builder) trends(r MonthlyReport) Trends {
	return Trends{
		PeakDays:        b.agg.PeakWeekdays(r.payments),
		PeakHours:       b.agg.PeakHours(r.payments),
		SeasonalPattern: b.seasonal(r),
		PaymentTrends:   analytics.MethodBreakdown(r.payments),
	}
}

// seasonalYears bounds how far back seasonal comparison looks.
const seasonalYears = 10

// seasonal averages the same calendar month over every earlier year that
// has revenue for it, starting from the first year with any payment but no
// more than seasonalYears back. Payments without a timestamp are ignored.
func (b *Builder) seasonal(r MonthlyReport) *Seasonal {
	first := r.Year
	for _, p := range b.src.Payments() {
		if p.CreatedAt.IsZero() {
			continue
		}
		if y := p.CreatedAt.In(b.agg.Location()).Year(); y < first {
			first = y
		}
	}
	first = max(first, r.Year-seasonalYears)

	var (
		years []int
		total core.Money
	)
	for y := first; y < r.Year; y++ {
		past := b.monthlyOf(period.YearMonth{Year: y, Month: r.Month})
		if past.Revenue.Total.Cents > 0 {
			years = append(years, y)
			total = total.Add(past.Revenue.Total)
		}
	}
	if len(years) == 0 {
		return nil
	}

	avg := total.DivRound(int64(len(years)))
	s := &Seasonal{
		Years:    years,
		Average:  avg,
		Current:  r.Revenue.Total,
		Variance: core.Percent(r.Revenue.Total.Cents-avg.Cents, avg.Cents),
		Trend:    TrendDown,
	}
	if r.Revenue.Total.Cents > avg.Cents {
		s.Trend = TrendUp
	}
	return s
}

// Insight types.
const (
	InsightRevenue       = "revenue"
	InsightWorkload      = "workload"
	InsightProfitability = "profitability"
)

func insights(r MonthlyReport) []Insight {
	out := []Insight{}

	type svc struct {
		name string
		avg  core.Money
	}
	var popular []svc
	for name, st := range r.Revenue.ByService {
		if st.TotalPatients >= 5 {
			popular = append(popular, svc{name, st.AveragePrice})
		}
	}
	if len(popular) > 0 {
		sort.Slice(popular, func(i, j int) bool {
			if popular[i].avg.Cents != popular[j].avg.Cents {
				return popular[i].avg.Cents > popular[j].avg.Cents
			}
			return popular[i].name < popular[j].name
		})
		out = append(out, Insight{
			Type:    InsightRevenue,
			Message: fmt.Sprintf("The most profitable service is %q with an average price of %s", popular[0].name, popular[0].avg),
		})
	}

	if len(r.Revenue.ByDoctor) > 0 {
		maxP, minP := 0, -1
		for _, st := range r.Revenue.ByDoctor {
			if st.TotalPatients > maxP {
				maxP = st.TotalPatients
			}
			if minP < 0 || st.TotalPatients < minP {
				minP = st.TotalPatients
			}
		}
		if maxP-minP > 10 {
			out = append(out, Insight{
				Type:    InsightWorkload,
				Message: "Patients are unevenly distributed between doctors; review the appointment schedules",
			})
		}
	}

	if r.HasData() && r.Profit.ProfitMargin.LessThan(decimal.NewFromInt(30)) {
		out = append(out, Insight{
			Type:    InsightProfitability,
			Message: fmt.Sprintf("Profit margin is low (%s%%); review expenses or prices", r.Profit.ProfitMargin.StringFixed(1)),
		})
	}
	return out
}

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

func (b *Builder) recommendations(r ComprehensiveReport) []Recommendation {
	out := []Recommendation{}
	perf := r.Analysis.Performance

	if r.Revenue.Count > 0 && perf.AvgTicketSize.Cents < b.lowTicket.Cents {
		out = append(out, Recommendation{
			Priority:    PriorityHigh,
			Category:    "pricing",
			Title:       "Raise the average ticket size",
			Description: fmt.Sprintf("The average ticket is %s; offer add-on services or bundled packages", perf.AvgTicketSize),
			Action:      "Create comprehensive treatment packages with discounts",
		})
	}

	if peaks := r.Analysis.Trends.PeakHours; len(peaks) > 0 && peaks[0].Hour < "10:00" {
		out = append(out, Recommendation{
			Priority:    PriorityMedium,
			Category:    "scheduling",
			Title:       "Spread appointments across the day",
			Description: "Most activity happens early in the morning",
			Action:      "Promote evening visits",
		})
	}

	if perf.TopDoctor != nil {
		out = append(out, Recommendation{
			Priority:    PriorityMedium,
			Category:    "team",
			Title:       "Share top performer practices",
			Description: fmt.Sprintf("%s brings in the highest revenue; the team can learn from this experience", perf.TopDoctor.Name),
			Action:      "Set up peer training sessions",
		})
	}
	return out
}
