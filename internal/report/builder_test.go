package report

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/core"
)

type ledgerStub struct {
	payments []core.Payment
	expenses []core.Expense
	rev      uint64
}

func (l *ledgerStub) Payments() []core.Payment { return l.payments }
func (l *ledgerStub) Expenses() []core.Expense { return l.expenses }
func (l *ledgerStub) Revision() uint64         { return l.rev }

func (l *ledgerStub) pay(doctor, service string, cents int64, at time.Time) {
	l.payments = append(l.payments, core.Payment{
		ID:           fmt.Sprintf("pay_%d", len(l.payments)),
		PatientName:  "patient",
		PatientPhone: fmt.Sprintf("77%06d", len(l.payments)),
		Doctor:       doctor,
		Service:      service,
		Amount:       core.Money{Cents: cents},
		NetAmount:    core.Money{Cents: cents},
		Method:       core.MethodCash,
		Status:       core.StatusCompleted,
		CreatedAt:    at,
	})
	l.rev++
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleLedger() *ledgerStub {
	l := &ledgerStub{}
	l.pay("dr-aamer", "cleaning", 10000, at(2024, time.November, 20, 11))
	l.pay("dr-aamer", "cleaning", 10000, at(2025, time.September, 3, 11))
	l.pay("dr-aamer", "cleaning", 12000, at(2025, time.October, 5, 11))
	l.pay("dr-aamer", "cleaning", 9000, at(2025, time.November, 10, 9))
	l.pay("dr-huda", "filling", 15000, at(2025, time.November, 11, 14))
	l.expenses = append(l.expenses, core.Expense{Category: "rent", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2025, 11, 1)})
	return l
}

func TestPercentageChange(t *testing.T) {
	cases := []struct {
		cur, prev int64
		want      string
	}{
		{100, 0, "100"},
		{0, 0, "0"},
		{-5, 0, "0"},
		{150, 100, "50"},
		{50, 100, "-50"},
		{1, 3, "-66.7"},
		{7, 6, "16.7"},
	}
	for _, tc := range cases {
		if got := PercentageChange(tc.cur, tc.prev); !got.Equal(dec(tc.want)) {
			t.Errorf("PercentageChange(%d, %d) = %s, want %s", tc.cur, tc.prev, got, tc.want)
		}
	}
}

func TestAverageGrowth(t *testing.T) {
	assert.True(t, AverageGrowth(nil).IsZero())
	assert.True(t, AverageGrowth([]int64{100}).IsZero())
	assert.True(t, AverageGrowth([]int64{100, 120, 240}).Equal(dec("60")))
	// 10% then -10%: the mean is zero.
	assert.True(t, AverageGrowth([]int64{1000, 1100, 990}).Equal(dec("0")))
}

func TestMonthlyTwoDoctors(t *testing.T) {
	b := NewBuilder(sampleLedger(), time.UTC)
	r, err := b.Monthly(2025, time.November)
	require.NoError(t, err)

	assert.Equal(t, "November 2025", r.Period)
	assert.Equal(t, 2, r.Revenue.Count)
	assert.Equal(t, int64(24000), r.Revenue.Total.Cents)
	require.Len(t, r.Revenue.ByDoctor, 2)
	assert.Equal(t, 1, r.Revenue.ByDoctor["dr-aamer"].TotalPatients)
	assert.Equal(t, int64(9000), r.Revenue.ByDoctor["dr-aamer"].TotalAmount.Cents)
	assert.Equal(t, 1, r.Revenue.ByDoctor["dr-huda"].TotalPatients)
	assert.Equal(t, int64(15000), r.Revenue.ByDoctor["dr-huda"].TotalAmount.Cents)
	assert.Equal(t, int64(3000), r.Expenses.ByCategory["rent"].Cents)
	assert.Equal(t, int64(21000), r.Profit.Profit.Cents)

	_, err = b.Monthly(2025, 13)
	assert.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestComprehensive(t *testing.T) {
	b := NewBuilder(sampleLedger(), time.UTC)
	r, err := b.Comprehensive(2025, time.November)
	require.NoError(t, err)

	g := r.Analysis.Growth
	assert.True(t, g.Revenue.Equal(dec("100")), "revenue growth %s", g.Revenue)
	assert.True(t, g.Patients.Equal(dec("100")), "patient growth %s", g.Patients)
	assert.True(t, g.Profit.Equal(dec("75")), "profit growth %s", g.Profit)

	require.Len(t, r.Comparisons, 2)
	assert.Equal(t, PreviousMonth, r.Comparisons[0].Period)
	assert.Equal(t, SameMonthLastYear, r.Comparisons[1].Period)
	assert.True(t, r.Comparisons[1].Revenue.Change.Equal(dec("140")))

	perf := r.Analysis.Performance
	require.NotNil(t, perf.TopDoctor)
	assert.Equal(t, "dr-huda", perf.TopDoctor.Name)
	require.NotNil(t, perf.TopService)
	assert.Equal(t, "filling", perf.TopService.Name)
	assert.Equal(t, int64(12000), perf.AvgTicketSize.Cents)
	assert.Equal(t, int64(800), perf.DailyAverage.Cents)
	assert.True(t, perf.PatientRetention.Equal(dec("100")))

	tr := r.Analysis.Trends
	require.Len(t, tr.PeakHours, 2)
	assert.Equal(t, "14:00", tr.PeakHours[0].Hour)
	require.NotNil(t, tr.SeasonalPattern)
	assert.Equal(t, []int{2024}, tr.SeasonalPattern.Years)
	assert.Equal(t, int64(10000), tr.SeasonalPattern.Average.Cents)
	assert.True(t, tr.SeasonalPattern.Variance.Equal(dec("140")))
	assert.Equal(t, TrendUp, tr.SeasonalPattern.Trend)
	require.Len(t, tr.PaymentTrends, 1)
	assert.True(t, tr.PaymentTrends[0].Percentage.Equal(dec("100")))

	assert.Empty(t, r.Analysis.Insights)
	require.Len(t, r.Recommendations, 1)
	assert.Equal(t, "team", r.Recommendations[0].Category)

	f := r.Forecasts
	assert.True(t, f.NextMonth.GrowthRate.Equal(dec("60")), "growth %s", f.NextMonth.GrowthRate)
	assert.Equal(t, int64(38400), f.NextMonth.Revenue.Cents)
	assert.Equal(t, int64(3), f.NextMonth.Patients)
	assert.Equal(t, int64(115200), f.Quarterly.Revenue.Cents)
	assert.Equal(t, int64(10), f.Quarterly.Patients)
	assert.Equal(t, int64(38400), f.Quarterly.MonthlyAverage.Cents)
	assert.Equal(t, int64(460800), f.Yearly.Revenue.Cents)
}

func TestComprehensiveEmptyMonth(t *testing.T) {
	b := NewBuilder(&ledgerStub{}, time.UTC)
	r, err := b.Comprehensive(2025, time.January)
	require.NoError(t, err)

	assert.True(t, r.Analysis.Growth.Revenue.IsZero())
	assert.Nil(t, r.Analysis.Performance.TopDoctor)
	assert.True(t, r.Analysis.Performance.AvgTicketSize.IsZero())
	assert.True(t, r.Analysis.Performance.PatientRetention.IsZero())
	assert.Nil(t, r.Analysis.Trends.SeasonalPattern)
	assert.Empty(t, r.Analysis.Insights)
	assert.Empty(t, r.Recommendations)
	require.Len(t, r.Comparisons, 1)
	assert.True(t, r.Forecasts.Yearly.Revenue.IsZero())

	_, err = json.Marshal(r)
	require.NoError(t, err)
}

func TestInsightsAndRecommendations(t *testing.T) {
	l := &ledgerStub{}
	for d := 1; d <= 12; d++ {
		l.pay("dr-aamer", "cleaning", 5000, at(2025, time.December, d, 8))
	}
	l.pay("dr-huda", "implant", 50000, at(2025, time.December, 13, 16))
	l.expenses = append(l.expenses, core.Expense{Category: "rent", Amount: core.Money{Cents: 200000}, Date: core.NewDate(2025, 12, 1)})

	r, err := NewBuilder(l, time.UTC).Comprehensive(2025, time.December)
	require.NoError(t, err)

	types := map[string]bool{}
	for _, in := range r.Analysis.Insights {
		types[in.Type] = true
	}
	assert.True(t, types[InsightRevenue])
	assert.True(t, types[InsightWorkload])
	assert.True(t, types[InsightProfitability])
	assert.Contains(t, r.Analysis.Insights[0].Message, `"cleaning"`)

	cats := map[string]bool{}
	for _, rec := range r.Recommendations {
		cats[rec.Category] = true
	}
	assert.True(t, cats["scheduling"])
	assert.True(t, cats["team"])
	assert.False(t, cats["pricing"])
}

func TestLowTicketRecommendation(t *testing.T) {
	l := &ledgerStub{}
	l.pay("dr-aamer", "checkup", 5000, at(2025, time.March, 3, 12))

	r, err := NewBuilder(l, time.UTC).Comprehensive(2025, time.March)
	require.NoError(t, err)
	require.NotEmpty(t, r.Recommendations)
	assert.Equal(t, PriorityHigh, r.Recommendations[0].Priority)
	assert.Equal(t, "pricing", r.Recommendations[0].Category)

	r, err = NewBuilder(l, time.UTC, WithLowTicketThreshold(core.Money{Cents: 1000})).Comprehensive(2025, time.March)
	require.NoError(t, err)
	assert.NotEqual(t, "pricing", r.Recommendations[0].Category)
}

func TestReportsAreCachedPerRevision(t *testing.T) {
	l := sampleLedger()
	b := NewBuilder(l, time.UTC)

	first, err := b.Comprehensive(2025, time.November)
	require.NoError(t, err)
	_, err = b.Comprehensive(2025, time.November)
	require.NoError(t, err)

	_, comp := b.CacheStats()
	assert.Equal(t, uint64(1), comp.Hits)

	l.pay("dr-aamer", "cleaning", 1000, at(2025, time.November, 12, 10))
	second, err := b.Comprehensive(2025, time.November)
	require.NoError(t, err)
	assert.Equal(t, first.Revenue.Count+1, second.Revenue.Count)
}

func TestSeasonalIgnoresUndatedPayments(t *testing.T) {
	l := sampleLedger()
	l.payments = append(l.payments, core.Payment{
		ID:     "pay_undated",
		Amount: core.Money{Cents: 5000},
		Method: core.MethodCash,
		Status: core.StatusCompleted,
	})
	b := NewBuilder(l, time.UTC)

	r, err := b.Comprehensive(2025, time.November)
	require.NoError(t, err)
	require.NotNil(t, r.Analysis.Trends.SeasonalPattern)
	assert.Equal(t, []int{2024}, r.Analysis.Trends.SeasonalPattern.Years)

	monthly, _ := b.CacheStats()
	assert.LessOrEqual(t, monthly.Misses, uint64(30))
}

func TestSeasonalLooksBackBoundedYears(t *testing.T) {
	l := sampleLedger()
	l.pay("dr-aamer", "cleaning", 20000, at(1990, time.November, 5, 10))
	b := NewBuilder(l, time.UTC)

	r, err := b.Comprehensive(2025, time.November)
	require.NoError(t, err)
	require.NotNil(t, r.Analysis.Trends.SeasonalPattern)
	assert.Equal(t, []int{2024}, r.Analysis.Trends.SeasonalPattern.Years)
}

func TestDaily(t *testing.T) {
	b := NewBuilder(sampleLedger(), time.UTC)
	d := b.Daily(core.NewDate(2025, 11, 11))
	assert.Equal(t, 1, d.TotalPatients)
	assert.Equal(t, int64(15000), d.TotalRevenue.Cents)
}
