// Package storage persists key-value documents in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clinic/internal/kv"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements kv.Store on a single kv_entries table.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ kv.Store  = (*SQLiteStore)(nil)
	_ kv.Lister = (*SQLiteStore)(nil)
)

// HistoryEntry is a value that was overwritten.
type HistoryEntry struct {
	Key        string
	Value      string
	ReplacedAt time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; whole documents are rewritten on every mutation.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, kv.ErrClosed
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return kv.ErrClosed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "key", key, "bytes", len(value))
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, kv.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// History returns up to limit previous values of key, newest first.
func (s *SQLiteStore) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	if s.db == nil {
		return nil, kv.ErrClosed
	}
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, replaced_at FROM kv_history WHERE key = ? ORDER BY id DESC LIMIT ?`, key, limit)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", key, err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			h          HistoryEntry
			replacedAt string
		)
		if err := rows.Scan(&h.Key, &h.Value, &replacedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.ReplacedAt = parseTimestamp(replacedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Ping checks the database connection, for readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return kv.ErrClosed
	}
	return s.db.PingContext(ctx)
}

// parseTimestamp accepts both SQLite's CURRENT_TIMESTAMP text and RFC 3339.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
