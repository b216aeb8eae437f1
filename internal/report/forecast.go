package report

import (
	"github.com/shopspring/decimal"

	"clinic/internal/core"
	"clinic/internal/period"
)

// Trailing window lengths, in months.
const (
	nextMonthWindow = 3
	quarterWindow   = 6
	yearWindow      = 12
)

type Forecast struct {
	Revenue        core.Money      `json:"revenue"`
	Patients       int64           `json:"patients"`
	MonthlyAverage core.Money      `json:"monthlyAvg"`
	GrowthRate     decimal.Decimal `json:"growthRate"`
	Confidence     string          `json:"confidence,omitempty"`
}

type Forecasts struct {
	NextMonth Forecast `json:"nextMonth"`
	Quarterly Forecast `json:"quarterly"`
	Yearly    Forecast `json:"yearly"`
}

func (b *Builder) forecasts(cur MonthlyReport) Forecasts {
	next := project(cur, b.averageGrowth(cur.yearMonth(), nextMonthWindow), 1)
	next.Confidence = "medium"
	return Forecasts{
		NextMonth: next,
		Quarterly: project(cur, b.averageGrowth(cur.yearMonth(), quarterWindow), 3),
		Yearly:    project(cur, b.averageGrowth(cur.yearMonth(), yearWindow), 12),
	}
}

// project scales the month's revenue and patient count by (1+rate/100)
// and by the number of months covered.
func project(cur MonthlyReport, rate decimal.Decimal, months int64) Forecast {
	factor := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
	monthly := cur.Revenue.Total.Scale(factor)
	patients := decimal.NewFromInt(int64(cur.Revenue.Count) * months).Mul(factor).Round(0).IntPart()
	return Forecast{
		Revenue:        cur.Revenue.Total.Scale(factor.Mul(decimal.NewFromInt(months))),
		Patients:       patients,
		MonthlyAverage: monthly,
		GrowthRate:     rate,
	}
}

// averageGrowth is the mean month-over-month revenue change across the n
// months ending with ym, oldest first. Months without revenue are skipped
// and consecutive remaining months are compared. Fewer than two months
// with revenue yield zero.
func (b *Builder) averageGrowth(ym period.YearMonth, n int) decimal.Decimal {
	var revenues []int64
	for _, m := range ym.Trailing(n) {
		if total := b.monthlyOf(m).Revenue.Total.Cents; total > 0 {
			revenues = append(revenues, total)
		}
	}
	return AverageGrowth(revenues)
}

// AverageGrowth averages the percentage changes between consecutive values,
// rounded to one decimal.
func AverageGrowth(values []int64) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for i := 1; i < len(values); i++ {
		sum = sum.Add(PercentageChange(values[i], values[i-1]))
	}
	return sum.Div(decimal.NewFromInt(int64(len(values) - 1))).Round(1)
}
