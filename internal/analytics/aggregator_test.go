package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"clinic/internal/core"
	"clinic/internal/period"
)

type fixture struct {
	payments []core.Payment
	expenses []core.Expense
}

func (f fixture) Payments() []core.Payment { return f.payments }
func (f fixture) Expenses() []core.Expense { return f.expenses }

var ref = time.Date(2025, 11, 12, 15, 0, 0, 0, time.UTC) // Wednesday

func pay(doctor, service string, net int64, at time.Time) core.Payment {
	return core.Payment{
		ID:           doctor + service + at.String(),
		PatientName:  "patient",
		PatientPhone: doctor + at.Format("150405"),
		Doctor:       doctor,
		Service:      service,
		Amount:       core.Money{Cents: net},
		NetAmount:    core.Money{Cents: net},
		Method:       core.MethodCash,
		Status:       core.StatusCompleted,
		CreatedAt:    at,
	}
}

func TestRevenueInPeriodFiltersByIntervalAndStatus(t *testing.T) {
	pending := pay("a", "x", 500, ref)
	pending.Status = "pending"
	src := fixture{payments: []core.Payment{
		pay("a", "x", 100, ref.Add(-time.Hour)),
		pay("a", "x", 200, time.Date(2025, 10, 31, 23, 59, 0, 0, time.UTC)),
		pending,
		pay("b", "y", 300, time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)),
	}}
	a := New(src, time.UTC)

	got := a.RevenueInPeriod(period.Month, ref)
	if len(got) != 2 || got[0].NetAmount.Cents != 100 || got[1].NetAmount.Cents != 300 {
		t.Fatalf("unexpected month revenue: %+v", got)
	}
	if day := a.RevenueInPeriod(period.Day, ref); len(day) != 1 {
		t.Fatalf("day revenue = %d payments", len(day))
	}
	if all := a.RevenueInPeriod(period.All, ref); len(all) != 3 {
		t.Fatalf("all revenue = %d payments", len(all))
	}
}

func TestExpenseScenario(t *testing.T) {
	src := fixture{expenses: []core.Expense{
		{Category: "إيجار", Amount: core.Money{Cents: 200000}, Date: core.NewDate(2025, 11, 1)},
		{Category: "old", Amount: core.Money{Cents: 1}, Date: core.NewDate(2025, 10, 31)},
	}}
	a := New(src, time.UTC)

	got := a.ExpensesInPeriod(period.Month, ref)
	if len(got) != 1 || got[0].Category != "إيجار" {
		t.Fatalf("month expenses = %+v", got)
	}
	byCat := GroupExpensesByCategory(got)
	if len(byCat) != 1 || byCat["إيجار"].Cents != 200000 {
		t.Fatalf("by category = %+v", byCat)
	}
}

func TestExpenseDatesUseClinicZone(t *testing.T) {
	loc := time.FixedZone("AST", 3*3600)
	src := fixture{expenses: []core.Expense{{Category: "rent", Amount: core.Money{Cents: 1}, Date: core.NewDate(2025, 11, 1)}}}
	a := New(src, loc)

	// 2025-11-01 00:00 AST is still October in UTC; the expense belongs to November locally.
	if got := a.ExpensesInPeriod(period.Month, time.Date(2025, 11, 5, 0, 0, 0, 0, loc)); len(got) != 1 {
		t.Fatalf("expected November expense, got %d", len(got))
	}
}

func TestProfit(t *testing.T) {
	src := fixture{
		payments: []core.Payment{pay("a", "x", 9000, ref)},
		expenses: []core.Expense{{Category: "rent", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2025, 11, 2)}},
	}
	got := New(src, time.UTC).Profit(period.Month, ref)
	if got.Revenue.Cents != 9000 || got.Expenses.Cents != 3000 || got.Profit.Cents != 6000 {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if !got.ProfitMargin.Equal(decimal.RequireFromString("66.7")) {
		t.Fatalf("margin = %s", got.ProfitMargin)
	}
}

func TestProfitEmptyPeriodHasZeroMargin(t *testing.T) {
	src := fixture{expenses: []core.Expense{{Category: "rent", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2025, 11, 2)}}}
	got := New(src, time.UTC).Profit(period.Month, ref)
	if !got.ProfitMargin.IsZero() {
		t.Fatalf("margin = %s", got.ProfitMargin)
	}
	if got.Profit.Cents != -3000 {
		t.Fatalf("profit = %d", got.Profit.Cents)
	}

	empty := New(fixture{}, time.UTC).Profit(period.Week, ref)
	if !empty.Revenue.IsZero() || !empty.ProfitMargin.IsZero() {
		t.Fatalf("empty summary = %+v", empty)
	}
}

func TestByDoctorTwoDoctors(t *testing.T) {
	payments := []core.Payment{
		pay("dr-aamer", "cleaning", 9000, ref),
		pay("dr-huda", "filling", 15000, ref),
	}
	got := ByDoctor(payments)
	if len(got) != 2 {
		t.Fatalf("expected two doctors, got %v", got)
	}
	if got["dr-aamer"].TotalPatients != 1 || got["dr-aamer"].TotalAmount.Cents != 9000 {
		t.Fatalf("dr-aamer = %+v", got["dr-aamer"])
	}
	if got["dr-huda"].TotalPatients != 1 || got["dr-huda"].Services["filling"] != 1 {
		t.Fatalf("dr-huda = %+v", got["dr-huda"])
	}
}

func TestByServiceAveragePrice(t *testing.T) {
	got := ByService([]core.Payment{
		pay("a", "cleaning", 100, ref),
		pay("b", "cleaning", 201, ref),
	})
	st := got["cleaning"]
	if st.TotalPatients != 2 || st.TotalAmount.Cents != 301 || st.AveragePrice.Cents != 151 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestRankingTieBreak(t *testing.T) {
	stats := ByDoctor([]core.Payment{
		pay("zed", "x", 100, ref),
		pay("amy", "x", 100, ref),
		pay("bob", "x", 50, ref),
	})
	ranked := RankDoctors(stats)
	if ranked[0].Name != "amy" || ranked[1].Name != "zed" || ranked[2].Name != "bob" {
		t.Fatalf("unexpected order: %+v", ranked)
	}
}

func TestPeakWeekdaysAndHours(t *testing.T) {
	sun := time.Date(2025, 11, 9, 9, 15, 0, 0, time.UTC)
	mon := time.Date(2025, 11, 10, 14, 0, 0, 0, time.UTC)
	tue := time.Date(2025, 11, 11, 19, 0, 0, 0, time.UTC)
	wed := time.Date(2025, 11, 12, 23, 0, 0, 0, time.UTC)
	payments := []core.Payment{
		pay("a", "x", 100, sun),
		pay("a", "x", 400, mon),
		pay("a", "x", 100, tue),
		pay("a", "x", 50, wed),
	}
	a := New(fixture{}, time.UTC)

	days := a.PeakWeekdays(payments)
	if len(days) != 3 {
		t.Fatalf("expected top 3, got %d", len(days))
	}
	if days[0].Day != "Monday" || days[1].Day != "Sunday" || days[2].Day != "Tuesday" {
		t.Fatalf("unexpected weekdays: %+v", days)
	}

	hours := a.PeakHours(payments)
	if len(hours) != 3 || hours[0].Hour != "14:00" || hours[1].Hour != "09:00" || hours[2].Hour != "19:00" {
		t.Fatalf("unexpected hours: %+v", hours)
	}
	if hours[0].TimeOfDay != Afternoon || hours[1].TimeOfDay != Morning || hours[2].TimeOfDay != Evening {
		t.Fatalf("unexpected labels: %+v", hours)
	}
}

func TestPeakWeekdaysTiesFollowWeekOrder(t *testing.T) {
	fri := time.Date(2025, 11, 14, 10, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 11, 10, 10, 0, 0, 0, time.UTC)
	sat := time.Date(2025, 11, 15, 10, 0, 0, 0, time.UTC)
	sun := time.Date(2025, 11, 9, 10, 0, 0, 0, time.UTC)
	payments := []core.Payment{
		pay("a", "x", 200, fri),
		pay("a", "x", 200, mon),
		pay("a", "x", 200, sat),
		pay("a", "x", 200, sun),
	}
	a := New(fixture{}, time.UTC)

	days := a.PeakWeekdays(payments)
	got := make([]string, 0, len(days))
	for _, d := range days {
		got = append(got, d.Day)
	}
	want := []string{"Sunday", "Monday", "Friday"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("PeakWeekdays() = %v, want %v", got, want)
	}
}

func TestTimeOfDay(t *testing.T) {
	cases := map[int]string{5: Night, 6: Morning, 11: Morning, 12: Afternoon, 17: Afternoon, 18: Evening, 21: Evening, 22: Night, 0: Night}
	for h, want := range cases {
		if got := TimeOfDay(h); got != want {
			t.Errorf("TimeOfDay(%d) = %s, want %s", h, got, want)
		}
	}
}

func TestMethodBreakdown(t *testing.T) {
	card := pay("a", "x", 1, ref)
	card.Method = core.MethodCard
	got := MethodBreakdown([]core.Payment{pay("a", "x", 1, ref), pay("a", "x", 1, ref), card})
	if len(got) != 2 || got[0].Method != core.MethodCash || got[0].Count != 2 {
		t.Fatalf("unexpected breakdown: %+v", got)
	}
	if !got[0].Percentage.Equal(decimal.RequireFromString("66.7")) || !got[1].Percentage.Equal(decimal.RequireFromString("33.3")) {
		t.Fatalf("unexpected shares: %s %s", got[0].Percentage, got[1].Percentage)
	}
}

func TestUniquePatients(t *testing.T) {
	p1 := pay("a", "x", 1, ref)
	p2 := p1
	p3 := pay("a", "x", 1, ref.Add(time.Second))
	p4 := core.Payment{PatientName: "Noor"}
	if got := UniquePatients([]core.Payment{p1, p2, p3, p4}); got != 3 {
		t.Fatalf("UniquePatients = %d", got)
	}
}

func TestDaily(t *testing.T) {
	src := fixture{
		payments: []core.Payment{
			pay("a", "x", 100, time.Date(2025, 11, 12, 9, 0, 0, 0, time.UTC)),
			pay("b", "y", 250, time.Date(2025, 11, 12, 17, 0, 0, 0, time.UTC)),
			pay("b", "y", 999, time.Date(2025, 11, 13, 0, 0, 0, 0, time.UTC)),
		},
		expenses: []core.Expense{{Category: "supplies", Amount: core.Money{Cents: 40}, Date: core.NewDate(2025, 11, 12)}},
	}
	got := New(src, time.UTC).Daily(core.NewDate(2025, 11, 12))
	if got.TotalPatients != 2 || got.TotalRevenue.Cents != 350 || got.TotalExpenses.Cents != 40 {
		t.Fatalf("unexpected daily report: %+v", got)
	}

	empty := New(fixture{}, time.UTC).Daily(core.NewDate(2025, 11, 12))
	if empty.Payments == nil || empty.TotalPatients != 0 {
		t.Fatalf("empty daily report: %+v", empty)
	}
}
