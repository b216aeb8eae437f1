package ledger

import (
	"context"

	"clinic/internal/core"
)

// Seed inserts the clinic's recurring fixed costs when the ledger has no
// expenses yet: rent and salaries on the first of the current month, and
// the electricity bill in the middle of the previous month. It returns the
// number of expenses added.
func (s *Store) Seed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.expenses) > 0 {
		return 0, nil
	}

	now := s.Now()
	first := core.NewDate(now.Year(), int(now.Month()), 1)
	prev := first.AddDate(0, -1, 14)
	month := now.Format("January 2006")

	defaults := []core.ExpenseInput{
		{Category: "rent", Description: "Clinic rent - " + month, Amount: core.Money{Cents: 200000}, Date: first, Method: core.MethodTransfer},
		{Category: "salaries", Description: "Staff salary - " + month, Amount: core.Money{Cents: 80000}, Date: first, Method: core.MethodCash},
		{Category: "electricity", Description: "Electricity bill - " + prev.Format("January 2006"), Amount: core.Money{Cents: 15000}, Date: core.Date{Time: prev}, Method: core.MethodCash},
	}
	for _, in := range defaults {
		s.appendExpenseLocked(in)
	}

	s.logger.InfoContext(ctx, "Seeded default expenses", "count", len(defaults))
	return len(defaults), s.persistLocked(ctx, KeyExpenses)
}
