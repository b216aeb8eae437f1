// Package backend builds the key-value store and the spreadsheet mirror
// selected by configuration.
package backend

import (
	"context"
	"time"

	"clinic/internal/kv"
	"clinic/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, a readiness probe and an optional
// cleanup function.
type BackendResult struct {
	Store   kv.Store
	Ping    func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates the key-value store the ledger and the
	// appointment book persist to.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateMirror creates the spreadsheet mirror, or nil when mirroring is off.
	CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Mirror
	Mirror                MirrorType
	GoogleSpreadsheetID   string
	GooglePaymentsSheet   string
	GoogleExpensesSheet   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	Location              *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// MirrorType selects where ledger entries are mirrored.
type MirrorType string

const (
	NoMirror     MirrorType = "none"
	MemoryMirror MirrorType = "memory"
	SheetsMirror MirrorType = "sheets"
)

func (mt MirrorType) IsValid() bool {
	switch mt {
	case NoMirror, MemoryMirror, SheetsMirror:
		return true
	default:
		return false
	}
}
