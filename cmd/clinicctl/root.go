package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"clinic/internal/cli"
	"clinic/internal/log"
)

var version = "1.0.0"

// session holds the app opened for one command invocation.
type session struct {
	app *cli.App
}

func (s *session) open(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	// stdout carries command output; logs go to stderr.
	logger = log.New(log.Config{
		Level:     logLevel(cmd, cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	app, err := cli.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("open clinic: %w", err)
	}
	s.app = app
	return nil
}

func (s *session) close(*cobra.Command, []string) error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

func logLevel(cmd *cobra.Command, configured string) slog.Level {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		return log.ParseLevel(configured)
	}
	return log.ParseLevel("warn")
}

func newRootCmd() *cobra.Command {
	s := &session{}
	root := &cobra.Command{
		Use:   "clinicctl",
		Short: "Clinic ledger maintenance",
		Long: `clinicctl works on the same storage as the clinic server, selected by
DATA_BACKEND and SQLITE_DB_PATH. Use it for month-end reports, exports,
backups and printing batches.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  s.open,
		PersistentPostRunE: s.close,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Log at the configured LOG_LEVEL instead of warn")

	root.AddCommand(
		newReportCmd(s),
		newExportCmd(s),
		newImportCmd(s),
		newBackupCmd(s),
		newRestoreCmd(s),
		newPrintCmd(s),
		newSeedCmd(s),
		newClearCmd(s),
		newStorageCmd(s),
	)
	return root
}

// output returns the file named by --out, or the command's stdout.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("out")
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}
