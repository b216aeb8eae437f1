package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"clinic/internal/core"
	"clinic/internal/sheets"
)

// Mirror records appended rows in memory. It stands in for the spreadsheet
// in development and in tests.
type Mirror struct {
	mu       sync.Mutex
	payments []core.Payment
	expenses []core.Expense
}

var _ sheets.LedgerMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// AppendPayment stores the payment and returns a synthetic row reference.
func (m *Mirror) AppendPayment(_ context.Context, p core.Payment) (string, error) {
	if p.ID == "" {
		return "", errors.New("payment has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, p)
	return fmt.Sprintf("mem:payments:%d", len(m.payments)), nil
}

func (m *Mirror) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", errors.New("expense has no id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, e)
	return fmt.Sprintf("mem:expenses:%d", len(m.expenses)), nil
}

func (m *Mirror) Payments() []core.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Payment(nil), m.payments...)
}

func (m *Mirror) Expenses() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.expenses...)
}
