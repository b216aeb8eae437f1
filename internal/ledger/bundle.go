package ledger

import (
	"errors"
	"strings"
	"time"

	"clinic/internal/core"
)

// BackupVersion is written into every backup bundle.
const BackupVersion = "2.0.0"

// ErrUnsupportedBackup is returned when a backup's major version differs
// from BackupVersion.
var ErrUnsupportedBackup = errors.New("unsupported backup version")

// Scope selects which collections an export carries.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopePayments Scope = "payments"
	ScopeExpenses Scope = "expenses"
	ScopeInvoices Scope = "invoices"
)

// ParseScope maps user input to a Scope. Unknown values export everything.
func ParseScope(s string) Scope {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScopePayments, ScopeExpenses, ScopeInvoices:
		return sc
	default:
		return ScopeAll
	}
}

func (s Scope) includes(c Scope) bool {
	return s == ScopeAll || s == c
}

// Bundle is the export and import shape. A nil collection is absent: it is
// omitted from JSON and left untouched by Import. An empty, non-nil
// collection is present and replaces the stored one.
type Bundle struct {
	Payments []core.Payment `json:"payments,omitzero"`
	Expenses []core.Expense `json:"expenses,omitzero"`
	Invoices []core.Invoice `json:"invoices,omitzero"`
}

// Empty reports whether the bundle carries no collection at all.
func (b Bundle) Empty() bool {
	return b.Payments == nil && b.Expenses == nil && b.Invoices == nil
}

// BackupBundle is a full export stamped with a version and creation time.
type BackupBundle struct {
	Bundle
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func (b BackupBundle) compatible() bool {
	if b.Version == "" {
		return true
	}
	major, _, _ := strings.Cut(b.Version, ".")
	want, _, _ := strings.Cut(BackupVersion, ".")
	return major == want
}
