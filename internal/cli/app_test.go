package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/config"
	"clinic/internal/core"
	kvmemory "clinic/internal/kv/memory"
	"clinic/internal/ledger"
	"clinic/internal/log"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8081",
		RateLimit:          60,
		RateWindow:         time.Minute,
		DataBackend:        "memory",
		MirrorBackend:      "memory",
		TimeZone:           "UTC",
		ClinicName:         "Test Clinic",
		CountryCode:        "967",
		InvoiceTemplate:    "INV-{YYYY}-{SEQ5}",
		SeedExpenses:       true,
		CacheSize:          8,
		CacheTTL:           time.Minute,
		CacheSweepInterval: time.Minute,
		ReminderStaleAfter: time.Hour,
		LogFormat:          "text",
	}
}

func TestBuildInProcess(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, cfg.Validate())

	app, err := Build(ctx, cfg, log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	assert.Len(t, app.Ledger.Expenses(), 3, "default expenses are seeded")
	require.NotNil(t, app.Worker, "no broker means an in-process worker")
	require.NotNil(t, app.Mirror)

	p, err := app.Service.RecordPayment(ctx, core.PaymentInput{
		PatientName: "Huda Saleh",
		Doctor:      "dr-fatima",
		Service:     "filling",
		Amount:      core.Money{Cents: 10000},
		Method:      core.MethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), p.NetAmount.Cents)

	// The payment was mirrored through the loopback publisher; only the
	// seeded expenses are still pending.
	synced, err := app.Mirror.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, synced)

	synced, err = app.Mirror.StartupSyncCheck(ctx)
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func TestInProcessMirrorKeepsUnpersistedPayment(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.SeedExpenses = false

	app, err := Build(ctx, cfg, log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	store, ok := app.Backend.Store.(*kvmemory.Store)
	require.True(t, ok)
	store.SetFailWrites(errors.New("disk full"))

	p, err := app.Service.RecordPayment(ctx, core.PaymentInput{
		PatientName: "Huda Saleh",
		Doctor:      "dr-fatima",
		Service:     "filling",
		Amount:      core.Money{Cents: 10000},
		Method:      core.MethodCash,
	})
	require.ErrorIs(t, err, ledger.ErrPersistence)

	_, err = app.Mirror.StartupSyncCheck(ctx)
	require.NoError(t, err)
	require.Len(t, app.Ledger.Payments(), 1)
	assert.Equal(t, p.ID, app.Ledger.Payments()[0].ID)

	// The retained payment persists once storage recovers.
	store.SetFailWrites(nil)
	_, err = app.Service.RecordPayment(ctx, core.PaymentInput{
		PatientName: "Omar Saleh",
		Doctor:      "dr-fatima",
		Service:     "filling",
		Amount:      core.Money{Cents: 5000},
		Method:      core.MethodCash,
	})
	require.NoError(t, err)
	raw, found, err := store.Get(ctx, ledger.KeyPayments)
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, raw, p.ID)
}

func TestBuildWithoutMirror(t *testing.T) {
	cfg := testConfig()
	cfg.MirrorBackend = "none"
	cfg.SeedExpenses = false

	app, err := Build(context.Background(), cfg, log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.Mirror)
	assert.Empty(t, app.Ledger.Expenses())
}

func TestBuildRejectsBadTimeZone(t *testing.T) {
	cfg := testConfig()
	cfg.TimeZone = "Mars/Olympus"

	_, err := Build(context.Background(), cfg, log.Discard())
	assert.Error(t, err)
}

func TestServerReadiness(t *testing.T) {
	app, err := Build(context.Background(), testConfig(), log.Discard())
	require.NoError(t, err)
	srv := app.Server()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = app.Close()
	})

	require.Len(t, app.ReadyChecks(), 1)

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinic_cache_entries")
}
