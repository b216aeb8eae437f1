package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})

	logger.Info("Payment recorded", FieldPaymentID, "pay_1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentLedger || rec[FieldPaymentID] != "pay_1" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Output: &buf})
	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %q", buf.String())
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Output: &buf}))
	sl.LogError(context.Background(), "Persist failed", errors.New("disk full"), ComponentStorage, OpPersist, nil)

	out := buf.String()
	for _, want := range []string{"disk full", "component=storage", "operation=persist"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	logger := Discard().WithComponent(ComponentHTTP)
	var got *Logger
	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil || got.Component() != ComponentHTTP {
		t.Fatalf("logger not propagated: %+v", got)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("fallback logger should be unknown")
	}
}
