package sheets

import (
	"context"

	"clinic/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror appends ledger entries to an external spreadsheet, one row
	// per entry. It is append-only: the ledger stays the source of truth.
	LedgerMirror interface {
		AppendPayment(ctx context.Context, p core.Payment) (rowRef string, err error)
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
	}
)
