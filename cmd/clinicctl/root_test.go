package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic/internal/ledger"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(dir, "clinic.db"))
	t.Setenv("CLINIC_TIMEZONE", "UTC")
	t.Setenv("MIRROR_BACKEND", "none")
	t.Setenv("AMQP_URL", "")
	t.Setenv("PRINT_DIR", filepath.Join(dir, "print"))
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedExportAndMonthlyReport(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 3 expenses\n", out)

	out, err = run(t, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 0 expenses\n", out, "seeding is a no-op once expenses exist")

	exportPath := filepath.Join(dir, "expenses.json")
	_, err = run(t, "export", "--scope", "expenses", "-o", exportPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	var bundle ledger.Bundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Len(t, bundle.Expenses, 3)
	assert.Nil(t, bundle.Payments)

	out, err = run(t, "report", "monthly")
	require.NoError(t, err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	expenses := rep["expenses"].(map[string]any)
	assert.EqualValues(t, 280000, expenses["total"])
}

func TestBackupClearRestore(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, "seed")
	require.NoError(t, err)

	backupPath := filepath.Join(dir, "backup.json")
	_, err = run(t, "backup", "-o", backupPath)
	require.NoError(t, err)

	_, err = run(t, "clear")
	require.Error(t, err, "clear requires --yes")

	out, err := run(t, "clear", "--yes")
	require.NoError(t, err)
	assert.Equal(t, "ledger cleared\n", out)

	out, err = run(t, "export", "--scope", "expenses")
	require.NoError(t, err)
	var empty ledger.Bundle
	require.NoError(t, json.Unmarshal([]byte(out), &empty))
	assert.Empty(t, empty.Expenses)

	out, err = run(t, "restore", backupPath)
	require.NoError(t, err)
	assert.Contains(t, out, "restored backup "+ledger.BackupVersion)

	out, err = run(t, "export", "--scope", "expenses")
	require.NoError(t, err)
	var restored ledger.Bundle
	require.NoError(t, json.Unmarshal([]byte(out), &restored))
	assert.Len(t, restored.Expenses, 3)
}

func TestImportRejectsEmptyFile(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	_, err := run(t, "import", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no payments")
}

func TestReportFormats(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"monthly html", []string{"report", "monthly", "-f", "html"}, false},
		{"daily json", []string{"report", "daily", "--date", "2025-11-12"}, false},
		{"comprehensive json", []string{"report", "comprehensive", "--year", "2025", "--month", "11"}, false},
		{"comprehensive has no pdf", []string{"report", "comprehensive", "-f", "pdf"}, true},
		{"month out of range", []string{"report", "monthly", "--month", "13"}, true},
		{"bad date", []string{"report", "daily", "--date", "12/11/2025"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestPrintInvoicesWithNothingPending(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "print", "invoices")
	require.NoError(t, err)
	assert.Equal(t, "printed 0 invoices\n", out)
}

func TestStorageKeysAndHistory(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "seed")
	require.NoError(t, err)
	_, err = run(t, "clear", "--yes")
	require.NoError(t, err)

	out, err := run(t, "storage", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, ledger.KeyExpenses+"\n")

	out, err = run(t, "storage", "history", ledger.KeyExpenses)
	require.NoError(t, err)
	assert.Contains(t, out, "REPLACED AT")
	assert.Contains(t, out, " 3\n", "the seeded version held three expenses")
}
