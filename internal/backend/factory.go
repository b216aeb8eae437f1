package backend

import (
	"context"
	"fmt"

	"clinic/internal/kv/memory"
	"clinic/internal/log"
	"clinic/internal/sheets"
	gsheet "clinic/internal/sheets/google"
	sheetsmem "clinic/internal/sheets/memory"
	"clinic/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   store,
		Ping:    store.Ping,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.WarnContext(ctx, "Initialized memory backend, data is lost on restart")

	return &BackendResult{
		Store: memory.New(),
		Ping:  func(context.Context) error { return nil },
	}, nil
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (sheets.LedgerMirror, error) {
	switch config.Mirror {
	case "", NoMirror:
		return nil, nil
	case MemoryMirror:
		f.logger.InfoContext(ctx, "Initialized in-memory ledger mirror")
		return sheetsmem.New(), nil
	case SheetsMirror:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			PaymentsSheet:   config.GooglePaymentsSheet,
			ExpensesSheet:   config.GoogleExpensesSheet,
			CredentialsFile: config.GoogleCredentialsFile,
			CredentialsJSON: config.GoogleCredentialsJSON,
			Location:        config.Location,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return cli, nil
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", config.Mirror)
	}
}
