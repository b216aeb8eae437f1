package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"clinic/internal/amqp"
	"clinic/internal/kv"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/sheets"
)

// KeySynced holds the ids of ledger entries already appended to the mirror.
const KeySynced = "clinic_sheets_synced"

// Mirror appends ledger entries to a spreadsheet at most once each. The set
// of mirrored ids is kept in the kv store so redelivered messages and
// restarts do not produce duplicate rows.
type Mirror struct {
	ledger Ledger
	sheet  sheets.LedgerMirror
	state  kv.Store
	logger *log.Logger

	// shared is set when the ledger is the one serving writes in this
	// process; it is then never reloaded from storage.
	shared bool

	mu     sync.Mutex
	synced map[string]bool
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithSharedLedger marks the ledger as owned by this process. Reloading it
// would drop entries whose persistence failed, so the mirror reads memory
// only.
func WithSharedLedger() MirrorOption {
	return func(m *Mirror) { m.shared = true }
}

func NewMirror(ctx context.Context, l Ledger, sheet sheets.LedgerMirror, state kv.Store, logger *log.Logger, opts ...MirrorOption) (*Mirror, error) {
	if logger == nil {
		logger = log.Discard()
	}
	m := &Mirror{
		ledger: l,
		sheet:  sheet,
		state:  state,
		logger: logger.WithComponent(log.ComponentSheets),
		synced: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}

	raw, ok, err := state.Get(ctx, KeySynced)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeySynced, err)
	}
	if ok && strings.TrimSpace(raw) != "" {
		var ids []string
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("decode %s: %w", KeySynced, err)
		}
		for _, id := range ids {
			m.synced[id] = true
		}
	}
	return m, nil
}

// Sync appends the entry with the given id unless it was mirrored before.
// Unless the ledger is shared, an id unknown to it triggers one reload, so
// entries written by another process are found.
func (m *Mirror) Sync(ctx context.Context, entity, id string) error {
	m.mu.Lock()
	done := m.synced[id]
	m.mu.Unlock()
	if done {
		m.logger.DebugContext(ctx, "Entry already mirrored", "entity", entity, "id", id)
		return nil
	}

	ref, err := m.append(ctx, entity, id)
	if errors.Is(err, ledger.ErrNotFound) && !m.shared {
		if rerr := m.ledger.Reload(ctx); rerr != nil {
			return fmt.Errorf("reload ledger: %w", rerr)
		}
		ref, err = m.append(ctx, entity, id)
	}
	if err != nil {
		return fmt.Errorf("mirror %s %s: %w", entity, id, err)
	}

	if err := m.markSynced(ctx, id); err != nil {
		log.NewStructuredLogger(m.logger).LogError(ctx, "Failed to record mirrored entry", err,
			log.ComponentSheets, log.OpPersist, nil)
	}
	m.logger.InfoContext(ctx, "Entry mirrored", "entity", entity, "id", id, "sheets_ref", ref)
	return nil
}

func (m *Mirror) append(ctx context.Context, entity, id string) (string, error) {
	switch entity {
	case amqp.EntityPayment:
		p, err := m.ledger.PaymentByReceipt(id)
		if err != nil {
			return "", err
		}
		return m.sheet.AppendPayment(ctx, p)
	case amqp.EntityExpense:
		e, err := m.ledger.Expense(id)
		if err != nil {
			return "", err
		}
		return m.sheet.AppendExpense(ctx, e)
	default:
		return "", fmt.Errorf("unknown entity %q", entity)
	}
}

func (m *Mirror) markSynced(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced[id] = true
	ids := make([]string, 0, len(m.synced))
	for k := range m.synced {
		ids = append(ids, k)
	}
	sort.Strings(ids)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return m.state.Set(ctx, KeySynced, string(raw))
}

// StartupSyncCheck mirrors every ledger entry that has not been mirrored
// yet. It recovers from lost messages and worker downtime.
func (m *Mirror) StartupSyncCheck(ctx context.Context) (synced int, err error) {
	if !m.shared {
		if err := m.ledger.Reload(ctx); err != nil {
			return 0, fmt.Errorf("reload ledger: %w", err)
		}
	}

	var errs []error
	try := func(entity, id string) {
		m.mu.Lock()
		done := m.synced[id]
		m.mu.Unlock()
		if done {
			return
		}
		if err := m.Sync(ctx, entity, id); err != nil {
			errs = append(errs, err)
			return
		}
		synced++
	}
	for _, p := range m.ledger.Payments() {
		try(amqp.EntityPayment, p.ID)
	}
	for _, e := range m.ledger.Expenses() {
		try(amqp.EntityExpense, e.ID)
	}

	m.logger.InfoContext(ctx, "Startup sync completed", "synced", synced, "errors", len(errs))
	return synced, errors.Join(errs...)
}
