package render

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"clinic/internal/analytics"
	clinic "clinic/internal/core"
	"clinic/internal/report"
)

var (
	small  = props.Text{Size: 9}
	right  = props.Text{Size: 9, Align: align.Right}
	bold   = props.Text{Size: 9, Style: fontstyle.Bold}
	boldR  = props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}
	header = props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}
)

func (r *Renderer) newDocument() core.Maroto {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, r.clinic.Name, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Center}),
	)
	m.AddRow(10,
		col.New(12).Add(
			text.New(r.clinic.Address, props.Text{Size: 9, Align: align.Center}),
			text.New(r.clinic.Phone+"  "+r.clinic.Email, props.Text{Size: 9, Align: align.Center, Top: 4}),
		),
	)
	return m
}

func generate(m core.Maroto, what string) ([]byte, error) {
	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate %s pdf: %w", what, err)
	}
	return doc.GetBytes(), nil
}

func title(m core.Maroto, s string) {
	m.AddRow(14, text.NewCol(12, s, props.Text{Size: 16, Style: fontstyle.Bold, Top: 4}))
}

func field(m core.Maroto, label, value string) {
	m.AddRow(6,
		text.NewCol(3, label, bold),
		text.NewCol(9, value, small),
	)
}

func total(m core.Maroto, label string, amount clinic.Money, emphasis bool) {
	l, v := small, right
	if emphasis {
		l, v = bold, boldR
	}
	m.AddRow(7,
		col.New(8),
		text.NewCol(2, label, l),
		text.NewCol(2, amount.String(), v),
	)
}

// InvoicePDF renders an invoice as a PDF document.
func (r *Renderer) InvoicePDF(inv clinic.Invoice) ([]byte, error) {
	m := r.newDocument()
	title(m, "Invoice "+inv.Number)
	field(m, "Date", inv.Date.String())
	field(m, "Patient", inv.PatientName)
	field(m, "Phone", inv.PatientPhone)

	m.AddRow(10,
		text.NewCol(4, "Service", header),
		text.NewCol(3, "Doctor", header),
		text.NewCol(1, "Qty", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
	)
	for _, item := range inv.Items {
		m.AddRow(8,
			text.NewCol(4, r.serviceName(item.Service), small),
			text.NewCol(3, r.doctorName(item.Doctor), small),
			text.NewCol(1, strconv.Itoa(item.Quantity), right),
			text.NewCol(2, item.UnitPrice.String(), right),
			text.NewCol(2, item.Total.String(), right),
		)
	}

	total(m, "Subtotal", inv.Subtotal, false)
	if !inv.Discount.IsZero() {
		total(m, "Discount", clinic.Money{Cents: -inv.Discount.Cents}, false)
	}
	total(m, "Total", inv.Total, true)
	field(m, "Payment method", methodLabel(inv.Method))

	return generate(m, "invoice")
}

// ReceiptPDF renders a payment receipt as a PDF document.
func (r *Renderer) ReceiptPDF(p clinic.Payment) ([]byte, error) {
	m := r.newDocument()
	title(m, "Payment receipt")
	field(m, "Receipt", receiptRef(p))
	field(m, "Date", p.CreatedAt.In(r.loc).Format("2006-01-02 15:04"))
	field(m, "Patient", p.PatientName)
	field(m, "Phone", p.PatientPhone)
	field(m, "Doctor", r.doctorName(p.Doctor))
	field(m, "Service", r.serviceName(p.Service))
	if p.InvoiceNumber != "" {
		field(m, "Invoice", p.InvoiceNumber)
	}

	total(m, "Amount", p.Amount, false)
	if !p.Discount.IsZero() {
		total(m, "Discount", clinic.Money{Cents: -p.Discount.Cents}, false)
	}
	total(m, "Paid", p.NetAmount, true)
	field(m, "Payment method", methodLabel(p.Method))

	return generate(m, "receipt")
}

// MonthlyPDF renders the monthly report as a PDF document.
func (r *Renderer) MonthlyPDF(rep report.MonthlyReport) ([]byte, error) {
	v := newMonthlyView(rep)
	m := r.newDocument()
	title(m, "Monthly report "+rep.Period)

	field(m, "Revenue", fmt.Sprintf("%s (%d payments)", rep.Revenue.Total, rep.Revenue.Count))
	field(m, "Expenses", rep.Expenses.Total.String())
	field(m, "Profit", fmt.Sprintf("%s (margin %s%%)", rep.Profit.Profit, rep.Profit.ProfitMargin))

	m.AddRow(10,
		text.NewCol(8, "Doctor", header),
		text.NewCol(2, "Patients", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
		text.NewCol(2, "Revenue", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
	)
	for _, d := range v.Doctors {
		rankedRow(m, r.doctorName(d.Name), d.Stats.TotalPatients, d.Stats.TotalAmount)
	}

	m.AddRow(10,
		text.NewCol(8, "Service", header),
		text.NewCol(2, "Patients", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
		text.NewCol(2, "Revenue", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
	)
	for _, s := range v.Services {
		rankedRow(m, r.serviceName(s.Name), s.Stats.TotalPatients, s.Stats.TotalAmount)
	}

	m.AddRow(10,
		text.NewCol(10, "Expense category", header),
		text.NewCol(2, "Amount", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
	)
	for _, c := range v.Categories {
		m.AddRow(7,
			text.NewCol(10, c.Name, small),
			text.NewCol(2, c.Amount.String(), right),
		)
	}

	return generate(m, "monthly report")
}

func rankedRow(m core.Maroto, name string, patients int, amount clinic.Money) {
	m.AddRow(7,
		text.NewCol(8, name, small),
		text.NewCol(2, strconv.Itoa(patients), right),
		text.NewCol(2, amount.String(), right),
	)
}

// DailyPDF renders one day's payments as a PDF document.
func (r *Renderer) DailyPDF(d analytics.DailyReport) ([]byte, error) {
	m := r.newDocument()
	title(m, "Daily report "+d.Date.String())
	field(m, "Patients", strconv.Itoa(d.TotalPatients))
	field(m, "Revenue", d.TotalRevenue.String())
	field(m, "Expenses", d.TotalExpenses.String())

	m.AddRow(10,
		text.NewCol(2, "Time", header),
		text.NewCol(4, "Patient", header),
		text.NewCol(4, "Service", header),
		text.NewCol(2, "Paid", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2, Align: align.Right}),
	)
	for _, p := range d.Payments {
		m.AddRow(7,
			text.NewCol(2, p.CreatedAt.In(r.loc).Format("15:04"), small),
			text.NewCol(4, p.PatientName, small),
			text.NewCol(4, r.serviceName(p.Service), small),
			text.NewCol(2, p.NetAmount.String(), right),
		)
	}
	return generate(m, "daily report")
}
