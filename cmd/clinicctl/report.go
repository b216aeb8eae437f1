package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clinic/internal/core"
	"clinic/internal/render"
)

func newReportCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build monthly, comprehensive or daily reports",
	}
	cmd.PersistentFlags().StringP("format", "f", "json", "Output format: json, html or pdf")
	cmd.PersistentFlags().StringP("out", "o", "", "Write to this file instead of stdout")

	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Revenue, expenses and profit of one month",
		Example: `  clinicctl report monthly --year 2025 --month 11
  clinicctl report monthly -f pdf -o november.pdf`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := yearMonth(cmd, s.app.Ledger.Now())
			if err != nil {
				return err
			}
			rep, err := s.app.Reports.Monthly(year, month)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep,
				func(w io.Writer) error { return s.app.Renderer.Monthly(w, rep) },
				func() ([]byte, error) { return s.app.Renderer.MonthlyPDF(rep) })
		},
	}
	addMonthFlags(monthly)

	comprehensive := &cobra.Command{
		Use:   "comprehensive",
		Short: "Monthly report with comparisons, insights and forecasts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := yearMonth(cmd, s.app.Ledger.Now())
			if err != nil {
				return err
			}
			rep, err := s.app.Reports.Comprehensive(year, month)
			if err != nil {
				return err
			}
			return writeReport(cmd, rep, nil, nil)
		},
	}
	addMonthFlags(comprehensive)

	daily := &cobra.Command{
		Use:   "daily",
		Short: "Patients, revenue and expenses of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := core.DateOf(s.app.Ledger.Now())
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				parsed, err := core.ParseDate(raw)
				if err != nil {
					return err
				}
				d = parsed
			}
			rep := s.app.Reports.Daily(d)
			return writeReport(cmd, rep,
				func(w io.Writer) error { return s.app.Renderer.Daily(w, rep) },
				func() ([]byte, error) { return s.app.Renderer.DailyPDF(rep) })
		},
	}
	daily.Flags().String("date", "", "Day to report (YYYY-MM-DD, default: today)")

	cmd.AddCommand(monthly, comprehensive, daily)
	return cmd
}

func addMonthFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Report year (default: current year)")
	cmd.Flags().Int("month", 0, "Report month 1-12 (default: current month)")
}

func yearMonth(cmd *cobra.Command, now time.Time) (int, time.Month, error) {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if year < 1 {
		return 0, 0, fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d: must be between 1 and 12", month)
	}
	return year, time.Month(month), nil
}

// writeReport writes v in the --format requested. html and pdf are nil for
// reports that only have a JSON form.
func writeReport(cmd *cobra.Command, v any, html func(io.Writer) error, pdf func() ([]byte, error)) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)

	var buf bytes.Buffer
	switch {
	case format == "json":
		if err := render.JSON(&buf, v); err != nil {
			return err
		}
	case format == "html" && html != nil:
		if err := html(&buf); err != nil {
			return err
		}
	case format == "pdf" && pdf != nil:
		doc, err := pdf()
		if err != nil {
			return err
		}
		buf.Write(doc)
	default:
		return fmt.Errorf("format %q is not available for %s", format, cmd.Name())
	}

	w, closeOut, err := output(cmd)
	if err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}
