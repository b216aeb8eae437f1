// Package analytics filters ledger entries by calendar interval and reduces
// them into revenue, expense and profit figures and per-doctor, per-service
// and per-category breakdowns.
//
// Every figure is summed in integer minor units. Empty intervals produce
// zero values; nothing here returns an error.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"clinic/internal/core"
	"clinic/internal/period"
)

// Source is a read-only view of the ledger. Implementations return
// snapshots the aggregator may iterate without locking.
type Source interface {
	Payments() []core.Payment
	Expenses() []core.Expense
}

type Aggregator struct {
	src Source
	loc *time.Location
}

// New returns an aggregator over src. Expense dates are calendar days and
// are placed at local midnight in loc.
func New(src Source, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{src: src, loc: loc}
}

func (a *Aggregator) Location() *time.Location { return a.loc }

type ProfitSummary struct {
	Revenue      core.Money      `json:"revenue"`
	Expenses     core.Money      `json:"expenses"`
	Profit       core.Money      `json:"profit"`
	ProfitMargin decimal.Decimal `json:"profitMargin"`
}

// RevenueIn returns completed payments created inside iv, in insertion order.
func (a *Aggregator) RevenueIn(iv period.Interval) []core.Payment {
	var out []core.Payment
	for _, p := range a.src.Payments() {
		if p.Completed() && iv.Contains(p.CreatedAt) {
			out = append(out, p)
		}
	}
	return out
}

// ExpensesIn returns expenses whose calendar day starts inside iv.
func (a *Aggregator) ExpensesIn(iv period.Interval) []core.Expense {
	var out []core.Expense
	for _, e := range a.src.Expenses() {
		if iv.Contains(e.Date.At(a.loc)) {
			out = append(out, e)
		}
	}
	return out
}

// ProfitIn summarises revenue against expenses for iv.
func (a *Aggregator) ProfitIn(iv period.Interval) ProfitSummary {
	return Summarize(a.RevenueIn(iv), a.ExpensesIn(iv))
}

// RevenueInPeriod resolves token against ref and returns the payments in it.
func (a *Aggregator) RevenueInPeriod(token period.Token, ref time.Time) []core.Payment {
	return a.RevenueIn(a.resolve(token, ref))
}

func (a *Aggregator) ExpensesInPeriod(token period.Token, ref time.Time) []core.Expense {
	return a.ExpensesIn(a.resolve(token, ref))
}

func (a *Aggregator) Profit(token period.Token, ref time.Time) ProfitSummary {
	return a.ProfitIn(a.resolve(token, ref))
}

// Month returns the interval of a calendar month in the clinic time zone.
func (a *Aggregator) Month(ym period.YearMonth) period.Interval {
	return ym.Interval(a.loc)
}

func (a *Aggregator) resolve(token period.Token, ref time.Time) period.Interval {
	return period.Resolve(token, ref.In(a.loc))
}

// Summarize computes totals, profit and margin for already filtered entries.
func Summarize(payments []core.Payment, expenses []core.Expense) ProfitSummary {
	rev := TotalRevenue(payments)
	exp := TotalExpenses(expenses)
	return ProfitSummary{
		Revenue:      rev,
		Expenses:     exp,
		Profit:       rev.Sub(exp),
		ProfitMargin: core.Margin(rev, exp),
	}
}

// TotalRevenue sums net amounts.
func TotalRevenue(payments []core.Payment) core.Money {
	var total core.Money
	for _, p := range payments {
		total = total.Add(p.NetAmount)
	}
	return total
}

func TotalExpenses(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
