package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "clinic.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.Get(ctx, "clinic_payments"); ok || err != nil {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "clinic_payments", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "clinic_payments", `[{"id":"p1"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "clinic_payments")
	if err != nil || !ok || v != `[{"id":"p1"}]` {
		t.Fatalf("get: v=%q ok=%v err=%v", v, ok, err)
	}

	keys, err := s.Keys(ctx)
	if err != nil || len(keys) != 1 || keys[0] != "clinic_payments" {
		t.Fatalf("keys = %v err=%v", keys, err)
	}
}

func TestSQLiteStoreKeepsHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, v := range []string{"v1", "v2", "v2", "v3"} {
		if err := s.Set(ctx, "k", v); err != nil {
			t.Fatalf("set %s: %v", v, err)
		}
	}
	hist, err := s.History(ctx, "k", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].Value != "v2" || hist[1].Value != "v1" {
		t.Fatalf("unexpected history: %+v", hist)
	}
}

func TestSQLiteStoreReopenRunsNoMigrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clinic.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("value lost across reopen: %q", v)
	}
}
