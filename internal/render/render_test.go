package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"clinic/internal/core"
	"clinic/internal/kv/memory"
	"clinic/internal/ledger"
	"clinic/internal/log"
	"clinic/internal/report"
)

var now = time.Date(2025, 11, 12, 10, 30, 0, 0, time.UTC)

func newLedger(t *testing.T, store *memory.Store) *ledger.Store {
	t.Helper()
	l, err := ledger.Open(context.Background(), store,
		ledger.WithClock(func() time.Time { return now }),
		ledger.WithLocation(time.UTC),
		ledger.WithLogger(log.Discard()))
	require.NoError(t, err)
	return l
}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(WithLocation(time.UTC), WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return r
}

func addPayment(t *testing.T, l *ledger.Store, service string, cents, discount int64) core.Payment {
	t.Helper()
	p, err := l.AddPayment(context.Background(), core.PaymentInput{
		PatientName:  "Huda Saleh",
		PatientPhone: "0779876543",
		Doctor:       "dr-fatima",
		Service:      service,
		Amount:       core.Money{Cents: cents},
		Discount:     core.Money{Cents: discount},
		Method:       core.MethodCard,
	})
	require.NoError(t, err)
	return p
}

func TestInvoiceHTML(t *testing.T) {
	l := newLedger(t, memory.New())
	p := addPayment(t, l, "filling", 10000, 1000)
	inv, err := l.Invoice(p.InvoiceNumber)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).Invoice(&buf, inv))
	html := buf.String()

	assert.Contains(t, html, "Al-Aamer Dental Clinic")
	assert.Contains(t, html, inv.Number)
	assert.Contains(t, html, "Huda Saleh")
	assert.Contains(t, html, "Dr. Fatima Al-Ayadi")
	assert.Contains(t, html, "Filling")
	assert.Contains(t, html, "100.00")
	assert.Contains(t, html, "-10.00")
	assert.Contains(t, html, "90.00")
	assert.Contains(t, html, "Card")
}

func TestReceiptHTMLWithoutDiscount(t *testing.T) {
	l := newLedger(t, memory.New())
	p := addPayment(t, l, "cleaning", 7500, 0)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).Receipt(&buf, p))
	html := buf.String()

	assert.Contains(t, html, p.ReceiptNumber)
	assert.Contains(t, html, "Professional cleaning")
	assert.Contains(t, html, "75.00")
	assert.NotContains(t, html, "Discount")
}

func TestHTMLEscapesPatientInput(t *testing.T) {
	var buf bytes.Buffer
	p := core.Payment{ID: "pay_1", PatientName: "<script>x</script>", CreatedAt: now}
	require.NoError(t, newRenderer(t).Receipt(&buf, p))
	assert.NotContains(t, buf.String(), "<script>x</script>")
	assert.Contains(t, buf.String(), "&lt;script&gt;")
}

func TestMonthlyAndDailyHTML(t *testing.T) {
	l := newLedger(t, memory.New())
	addPayment(t, l, "filling", 10000, 0)
	addPayment(t, l, "cleaning", 7500, 0)
	_, err := l.AddExpense(context.Background(), core.ExpenseInput{Category: "supplies", Amount: core.Money{Cents: 2500}})
	require.NoError(t, err)

	b := report.NewBuilder(l, time.UTC)
	m, err := b.Monthly(2025, time.November)
	require.NoError(t, err)

	r := newRenderer(t)
	var buf bytes.Buffer
	require.NoError(t, r.Monthly(&buf, m))
	html := buf.String()
	assert.Contains(t, html, "November 2025")
	assert.Contains(t, html, "175.00")
	assert.Contains(t, html, "supplies")
	assert.Contains(t, html, "150.00", "profit")
	assert.Less(t, strings.Index(html, "Filling"), strings.Index(html, "Professional cleaning"), "ranked by revenue")

	buf.Reset()
	require.NoError(t, r.Daily(&buf, b.Daily(core.NewDate(2025, 11, 12))))
	html = buf.String()
	assert.Contains(t, html, "2025-11-12")
	assert.Contains(t, html, "10:30")
	assert.NotContains(t, html, "No payments on this day")

	buf.Reset()
	require.NoError(t, r.Daily(&buf, b.Daily(core.NewDate(2025, 11, 11))))
	assert.Contains(t, buf.String(), "No payments on this day")
}

func TestPDFDocuments(t *testing.T) {
	l := newLedger(t, memory.New())
	p := addPayment(t, l, "filling", 10000, 1000)
	inv, err := l.Invoice(p.InvoiceNumber)
	require.NoError(t, err)
	b := report.NewBuilder(l, time.UTC)
	m, err := b.Monthly(2025, time.November)
	require.NoError(t, err)

	r := newRenderer(t)
	for name, render := range map[string]func() ([]byte, error){
		"invoice": func() ([]byte, error) { return r.InvoicePDF(inv) },
		"receipt": func() ([]byte, error) { return r.ReceiptPDF(p) },
		"monthly": func() ([]byte, error) { return r.MonthlyPDF(m) },
		"daily":   func() ([]byte, error) { return r.DailyPDF(b.Daily(core.NewDate(2025, 11, 12))) },
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := render()
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")), "pdf header")
		})
	}
}

func TestServicesCSV(t *testing.T) {
	l := newLedger(t, memory.New())
	addPayment(t, l, "cleaning", 7500, 0)
	addPayment(t, l, "filling", 10000, 0)
	addPayment(t, l, "filling", 10000, 2000)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).ServicesCSV(&buf, l.Payments()))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "service,patients,revenue,average price", lines[0])
	assert.Equal(t, "Filling,2,180.00,90.00", lines[1])
	assert.Equal(t, "Professional cleaning,1,75.00,75.00", lines[2])
}

func TestServicesCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).ServicesCSV(&buf, nil))
	assert.Equal(t, "service,patients,revenue,average price\n", buf.String())
}

func TestLedgerXLSX(t *testing.T) {
	l := newLedger(t, memory.New())
	p := addPayment(t, l, "filling", 10000, 0)
	_, err := l.AddExpense(context.Background(), core.ExpenseInput{Category: "rent", Description: "November", Amount: core.Money{Cents: 50000}})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, newRenderer(t).LedgerXLSX(&buf, l.Export(ledger.ScopeAll)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPayments, SheetExpenses, SheetServices}, f.GetSheetList())

	v, err := f.GetCellValue(SheetPayments, "B2")
	require.NoError(t, err)
	assert.Equal(t, p.ReceiptNumber, v)
	v, err = f.GetCellValue(SheetExpenses, "B2")
	require.NoError(t, err)
	assert.Equal(t, "rent", v)
	v, err = f.GetCellValue(SheetServices, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Filling", v)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		ext   string
		parts []string
		want  string
	}{
		{"pdf", []string{"invoice", "INV-2025-00001"}, "invoice-inv-2025-00001.pdf"},
		{".csv", []string{"Services", "November 2025"}, "services-november-2025.csv"},
		{"json", nil, "export.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Filename(tt.ext, tt.parts...))
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}

func TestPrintUnprinted(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, memory.New())
	p1 := addPayment(t, l, "filling", 10000, 0)
	p2 := addPayment(t, l, "cleaning", 7500, 0)
	printer := NewPrinter(newRenderer(t), l, nil)
	dir := t.TempDir()

	n, err := printer.PrintUnprinted(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, l.Unprinted())
	for _, number := range []string{p1.InvoiceNumber, p2.InvoiceNumber} {
		_, err := os.Stat(filepath.Join(dir, Filename("pdf", "invoice", number)))
		assert.NoError(t, err)
	}

	n, err = printer.PrintUnprinted(ctx, dir)
	require.NoError(t, err, "nothing to print is not an error")
	assert.Equal(t, 0, n)
}

func TestPrintUnprintedKeepsFlagOnWriteFailure(t *testing.T) {
	l := newLedger(t, memory.New())
	addPayment(t, l, "filling", 10000, 0)

	// A regular file where the directory should be.
	target := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(target, nil, 0o644))

	n, err := NewPrinter(newRenderer(t), l, nil).PrintUnprinted(context.Background(), target)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, l.Unprinted(), 1)
}

func TestPrintTodayReceipts(t *testing.T) {
	l := newLedger(t, memory.New())
	p := addPayment(t, l, "filling", 10000, 0)
	printer := NewPrinter(newRenderer(t), l, nil)
	dir := t.TempDir()

	n, err := printer.PrintTodayReceipts(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = os.Stat(filepath.Join(dir, Filename("pdf", "receipt", p.ReceiptNumber)))
	assert.NoError(t, err)

	n, err = printer.PrintReceipts(context.Background(), dir, core.NewDate(2025, 11, 11))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPrintPersistenceFailureIsReported(t *testing.T) {
	store := memory.New()
	l := newLedger(t, store)
	addPayment(t, l, "filling", 10000, 0)
	store.SetFailWrites(errors.New("disk full"))

	n, err := NewPrinter(newRenderer(t), l, nil).PrintUnprinted(context.Background(), t.TempDir())
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.Empty(t, l.Unprinted(), "in-memory flag is kept")
}
