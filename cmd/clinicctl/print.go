package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clinic/internal/core"
)

func newPrintCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Write PDF batches of invoices or receipts",
	}
	cmd.PersistentFlags().String("dir", "", "Output directory (default: PRINT_DIR)")

	invoices := &cobra.Command{
		Use:   "invoices",
		Short: "Print every invoice not printed yet and mark it printed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := s.app.Printer.PrintUnprinted(cmd.Context(), printDir(cmd, s))
			fmt.Fprintf(cmd.OutOrStdout(), "printed %d invoices\n", n)
			return err
		},
	}

	receipts := &cobra.Command{
		Use:   "receipts",
		Short: "Print the receipts of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, _ := cmd.Flags().GetString("date")
			if raw == "" {
				n, err := s.app.Printer.PrintTodayReceipts(cmd.Context(), printDir(cmd, s))
				fmt.Fprintf(cmd.OutOrStdout(), "printed %d receipts\n", n)
				return err
			}
			d, err := core.ParseDate(raw)
			if err != nil {
				return err
			}
			n, err := s.app.Printer.PrintReceipts(cmd.Context(), printDir(cmd, s), d)
			fmt.Fprintf(cmd.OutOrStdout(), "printed %d receipts for %s\n", n, d)
			return err
		},
	}
	receipts.Flags().String("date", "", "Day to print (YYYY-MM-DD, default: today)")

	cmd.AddCommand(invoices, receipts)
	return cmd
}

func printDir(cmd *cobra.Command, s *session) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return s.app.Config.PrintDir
}
