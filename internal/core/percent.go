package core

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Percent returns part/whole*100 rounded to one decimal place,
// half away from zero. A zero whole yields zero.
func Percent(part, whole int64) decimal.Decimal {
	if whole == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(1)
}

// Margin is (revenue-expenses)/revenue*100 with the same rounding as Percent.
func Margin(revenue, expenses Money) decimal.Decimal {
	return Percent(revenue.Cents-expenses.Cents, revenue.Cents)
}

// Scale multiplies m by factor and rounds to whole minor units.
func (m Money) Scale(factor decimal.Decimal) Money {
	return Money{Cents: decimal.NewFromInt(m.Cents).Mul(factor).Round(0).IntPart()}
}
