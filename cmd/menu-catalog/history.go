package main

import (
	"fmt"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/ledger"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent image outcomes from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Ledger.DSN == "" {
				return common.NewAppError("CONFIG_ERROR", "LEDGER_DSN is empty; the ledger is disabled", common.ErrConfig)
			}
			store, err := ledger.Open(cmd.Context(), ledger.Config{DSN: a.cfg.Ledger.DSN}, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No entries yet")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tFILE\tSTATUS\tITEMS\tSHEET\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					e.ProcessedAt.Local().Format("2006-01-02 15:04:05"),
					e.FileName, e.Status, e.Items, e.SheetPath, truncate(e.Error, 60))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}
