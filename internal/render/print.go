package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clinic/internal/core"
	"clinic/internal/log"
	"clinic/internal/period"
)

// PrintLedger is the part of the ledger the print batch reads and updates.
type PrintLedger interface {
	Unprinted() []core.Invoice
	MarkPrinted(ctx context.Context, numbers ...string) (int, error)
	Payments() []core.Payment
	Now() time.Time
}

// Printer writes batches of PDF documents to a directory.
type Printer struct {
	renderer *Renderer
	ledger   PrintLedger
	logger   *log.Logger
}

func NewPrinter(r *Renderer, l PrintLedger, logger *log.Logger) *Printer {
	if logger == nil {
		logger = log.Discard()
	}
	return &Printer{renderer: r, ledger: l, logger: logger.WithComponent(log.ComponentRender)}
}

// PrintUnprinted writes a PDF for every invoice not printed yet and marks
// the written ones printed. Nothing to print is not an error.
func (p *Printer) PrintUnprinted(ctx context.Context, dir string) (int, error) {
	pending := p.ledger.Unprinted()
	if len(pending) == 0 {
		p.logger.InfoContext(ctx, "All invoices already printed")
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create print directory: %w", err)
	}

	var (
		printed []string
		errs    []error
	)
	for _, inv := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		doc, err := p.renderer.InvoicePDF(inv)
		if err == nil {
			err = writeFile(dir, Filename("pdf", "invoice", inv.Number), doc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.Number, err))
			continue
		}
		printed = append(printed, inv.Number)
	}

	if len(printed) > 0 {
		if _, err := p.ledger.MarkPrinted(ctx, printed...); err != nil {
			errs = append(errs, fmt.Errorf("mark printed: %w", err))
		}
	}
	p.logger.InfoContext(ctx, "Invoice batch printed", "printed", len(printed), "failed", len(pending)-len(printed))
	return len(printed), errors.Join(errs...)
}

// PrintReceipts writes a PDF receipt for every payment made on day d in
// the clinic time zone.
func (p *Printer) PrintReceipts(ctx context.Context, dir string, d core.Date) (int, error) {
	now := p.ledger.Now()
	iv := period.DayOf(d.At(now.Location()))

	var due []core.Payment
	for _, pay := range p.ledger.Payments() {
		if pay.Completed() && iv.Contains(pay.CreatedAt) {
			due = append(due, pay)
		}
	}
	if len(due) == 0 {
		p.logger.InfoContext(ctx, "No receipts for day", "date", d.String())
		return 0, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create print directory: %w", err)
	}

	written := 0
	var errs []error
	for _, pay := range due {
		doc, err := p.renderer.ReceiptPDF(pay)
		if err == nil {
			err = writeFile(dir, Filename("pdf", "receipt", receiptRef(pay)), doc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("receipt %s: %w", receiptRef(pay), err))
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// PrintTodayReceipts prints the receipts of the ledger's current day.
func (p *Printer) PrintTodayReceipts(ctx context.Context, dir string) (int, error) {
	return p.PrintReceipts(ctx, dir, core.DateOf(p.ledger.Now()))
}

func writeFile(dir, name string, data []byte) error {
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}
