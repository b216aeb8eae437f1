package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clinic/internal/ledger"
	"clinic/internal/render"
)

func newExportCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger collections as JSON or an xlsx workbook",
		Example: `  clinicctl export --scope payments -o payments.json
  clinicctl export -f xlsx -o ledger.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			format, _ := cmd.Flags().GetString("format")
			bundle := s.app.Ledger.Export(ledger.ParseScope(scope))

			w, closeOut, err := output(cmd)
			if err != nil {
				return err
			}
			switch strings.ToLower(format) {
			case "json":
				err = render.JSON(w, bundle)
			case "xlsx":
				err = s.app.Renderer.LedgerXLSX(w, bundle)
			default:
				err = fmt.Errorf("unknown export format %q", format)
			}
			return errors.Join(err, closeOut())
		},
	}
	cmd.Flags().String("scope", string(ledger.ScopeAll), "all, payments, expenses or invoices")
	cmd.Flags().StringP("format", "f", "json", "json or xlsx")
	cmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newImportCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace ledger collections with those in an export file",
		Long: `Every collection present in FILE replaces the stored one; collections
absent from FILE are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bundle ledger.Bundle
			if err := readJSON(args[0], &bundle); err != nil {
				return err
			}
			if bundle.Empty() {
				return fmt.Errorf("%s contains no payments, expenses or invoices", args[0])
			}
			if err := s.app.Ledger.Import(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d payments, %d expenses, %d invoices\n",
				len(bundle.Payments), len(bundle.Expenses), len(bundle.Invoices))
			return nil
		},
	}
}

func newBackupCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a versioned backup of the whole ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, closeOut, err := output(cmd)
			if err != nil {
				return err
			}
			return errors.Join(render.JSON(w, s.app.Ledger.Backup()), closeOut())
		},
	}
	cmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newRestoreCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "restore FILE",
		Short: "Restore the ledger from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var backup ledger.BackupBundle
			if err := readJSON(args[0], &backup); err != nil {
				return err
			}
			if err := s.app.Ledger.Restore(cmd.Context(), backup); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored backup %s from %s\n",
				backup.Version, backup.Timestamp.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func newSeedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Add the default monthly expenses to an empty expense list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := s.app.Ledger.Seed(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d expenses\n", n)
			return nil
		},
	}
}

func newClearCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every payment, expense and invoice",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return errors.New("refusing to clear the ledger without --yes")
			}
			if err := s.app.Ledger.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger cleared")
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting all ledger data")
	return cmd
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
