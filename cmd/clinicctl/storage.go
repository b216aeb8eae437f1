package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"clinic/internal/kv"
	"clinic/internal/storage"
)

func newStorageCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the stored documents",
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List the stored document keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			lister, ok := s.app.Backend.Store.(kv.Lister)
			if !ok {
				return fmt.Errorf("the %s backend cannot list keys", s.app.Config.DataBackend)
			}
			names, err := lister.Keys(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range names {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	history := &cobra.Command{
		Use:   "history KEY",
		Short: "Show previous versions of a stored document",
		Long: `The sqlite backend keeps every overwritten value of a key. history lists
them newest first with their size and, for collections, their entry count.`,
		Example: `  clinicctl storage history clinic_payments --limit 5`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ok := s.app.Backend.Store.(*storage.SQLiteStore)
			if !ok {
				return fmt.Errorf("history is only kept by the sqlite backend, not %s", s.app.Config.DataBackend)
			}
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := store.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPLACED AT\tBYTES\tENTRIES")
			for _, h := range entries {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", h.ReplacedAt.Format("2006-01-02 15:04:05"), len(h.Value), entryCount(h.Value))
			}
			return tw.Flush()
		},
	}
	history.Flags().Int("limit", 10, "Number of versions to show")

	cmd.AddCommand(keys, history)
	return cmd
}

// entryCount returns the length of a JSON array document, or "-".
func entryCount(doc string) string {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(doc), &items); err != nil {
		return "-"
	}
	return fmt.Sprint(len(items))
}
