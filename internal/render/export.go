package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/xuri/excelize/v2"

	"clinic/internal/analytics"
	"clinic/internal/core"
	"clinic/internal/ledger"
)

// Filename joins the parts into a lowercase, dash-separated download name.
func Filename(ext string, parts ...string) string {
	name := slug.Make(strings.Join(parts, " "))
	if name == "" {
		name = "export"
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// ServicesCSV writes the per-service breakdown of payments, highest revenue
// first.
func (r *Renderer) ServicesCSV(w io.Writer, payments []core.Payment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"service", "patients", "revenue", "average price"}); err != nil {
		return err
	}
	for _, s := range analytics.RankServices(analytics.ByService(payments)) {
		row := []string{
			r.serviceName(s.Name),
			strconv.Itoa(s.Stats.TotalPatients),
			s.Stats.TotalAmount.String(),
			s.Stats.AveragePrice.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes v indented, as the report downloads are meant to be read.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Sheet names of the ledger workbook.
const (
	SheetPayments = "Payments"
	SheetExpenses = "Expenses"
	SheetServices = "Services"
)

// LedgerXLSX writes a workbook with the bundle's payments and expenses and
// a per-service breakdown of the payments.
func (r *Renderer) LedgerXLSX(w io.Writer, b ledger.Bundle) error {
	f := excelize.NewFile()
	defer f.Close()

	payments := [][]any{}
	for _, p := range b.Payments {
		payments = append(payments, []any{
			p.CreatedAt.In(r.loc).Format("2006-01-02 15:04"),
			p.ReceiptNumber,
			p.InvoiceNumber,
			p.PatientName,
			p.PatientPhone,
			r.doctorName(p.Doctor),
			r.serviceName(p.Service),
			p.Amount.Units(),
			p.Discount.Units(),
			p.NetAmount.Units(),
			methodLabel(p.Method),
		})
	}
	if err := writeSheet(f, SheetPayments,
		[]string{"Date", "Receipt", "Invoice", "Patient", "Phone", "Doctor", "Service", "Amount", "Discount", "Net", "Method"},
		payments); err != nil {
		return err
	}

	expenses := [][]any{}
	for _, e := range b.Expenses {
		expenses = append(expenses, []any{
			e.Date.String(),
			e.Category,
			e.Description,
			e.Amount.Units(),
			methodLabel(e.Method),
			e.ReceiptNumber,
		})
	}
	if err := writeSheet(f, SheetExpenses,
		[]string{"Date", "Category", "Description", "Amount", "Method", "Receipt"},
		expenses); err != nil {
		return err
	}

	services := [][]any{}
	for _, s := range analytics.RankServices(analytics.ByService(b.Payments)) {
		services = append(services, []any{
			r.serviceName(s.Name),
			s.Stats.TotalPatients,
			s.Stats.TotalAmount.Units(),
			s.Stats.AveragePrice.Units(),
		})
	}
	if err := writeSheet(f, SheetServices,
		[]string{"Service", "Patients", "Revenue", "Average price"},
		services); err != nil {
		return err
	}

	// The default sheet is replaced by ours.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetPayments); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(name, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
