package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"clinic/internal/core"
	"clinic/internal/log"
	ports "clinic/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base names without year; the entry's year is prefixed on write.
	paymentsBase string
	expensesBase string
	loc          *time.Location
	logger       *log.Logger
}

var _ ports.LedgerMirror = (*Client)(nil)

// Config selects the spreadsheet and how to authenticate against it.
type Config struct {
	SpreadsheetID   string
	PaymentsSheet   string
	ExpensesSheet   string
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
}

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_PAYMENTS_SHEET_NAME,
// GOOGLE_EXPENSES_SHEET_NAME and the service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func ConfigFromEnv() Config {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		PaymentsSheet:   strings.TrimSpace(os.Getenv("GOOGLE_PAYMENTS_SHEET_NAME")),
		ExpensesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_EXPENSES_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return cfg
}

// New creates a Sheets client with service account credentials. Extra
// client options are appended after the credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	if len(opts) == 0 {
		creds, err := credentials(cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
			goption.WithHTTPClient(newHTTPClientWithPooling()),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		paymentsBase:  cfg.PaymentsSheet,
		expensesBase:  cfg.ExpensesSheet,
		loc:           cfg.Location,
		logger:        logger,
	}
	if c.paymentsBase == "" {
		c.paymentsBase = "Payments"
	}
	if c.expensesBase == "" {
		c.expensesBase = "Expenses"
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	logger.InfoContext(ctx, "Google Sheets mirror ready",
		"spreadsheet_id", c.spreadsheetID,
		"payments_sheet", c.paymentsBase,
		"expenses_sheet", c.expensesBase)
	return c, nil
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// PaymentRow is the spreadsheet row for a payment.
func (c *Client) PaymentRow(p core.Payment) []any {
	at := p.CreatedAt.In(c.loc)
	return []any{
		at.Format(time.DateOnly),
		at.Format("15:04"),
		p.ReceiptNumber,
		p.InvoiceNumber,
		p.PatientName,
		p.PatientPhone,
		p.Doctor,
		p.Service,
		p.Amount.Units(),
		p.Discount.Units(),
		p.NetAmount.Units(),
		p.Method,
	}
}

// ExpenseRow is the spreadsheet row for an expense.
func ExpenseRow(e core.Expense) []any {
	return []any{
		e.Date.String(),
		e.Category,
		e.Description,
		e.Amount.Units(),
		e.Method,
		e.ReceiptNumber,
	}
}

func (c *Client) AppendPayment(ctx context.Context, p core.Payment) (string, error) {
	if p.ID == "" {
		return "", errors.New("payment has no id")
	}
	sheet := yearPrefixedName(c.paymentsBase, p.CreatedAt.In(c.loc).Year())
	return c.append(ctx, sheet, "A:L", c.PaymentRow(p))
}

func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if e.ID == "" {
		return "", errors.New("expense has no id")
	}
	sheet := yearPrefixedName(c.expensesBase, e.Date.Year())
	return c.append(ctx, sheet, "A:F", ExpenseRow(e))
}

func (c *Client) append(ctx context.Context, sheet, cols string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Row appended", "range", ref)
	return ref, nil
}

// yearPrefixedName returns "<year> <base>" unless base already starts with
// a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
