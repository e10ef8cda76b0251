package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/merge"
)

func newMergeCmd(a *app) *cobra.Command {
	var source, out, parquet string
	var deleteSources bool

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge every sheet in the output folder into the catalog",
		Long: `Reads every .xlsx in the output folder, drops rows without a name or
value, keeps the first row for each name and writes the consolidated catalog.
The previous catalog is moved to the archive folder as <name>_<n>.xlsx.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if source != "" {
				cfg.Paths.OutputDir = source
			}
			if out != "" {
				cfg.Paths.ConsolidatedPath = out
			}
			if parquet != "" {
				cfg.Merge.ParquetPath = parquet
			}
			if cmd.Flags().Changed("delete-sources") {
				cfg.Merge.DeleteSources = deleteSources
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			res, err := newMerger(cfg, a.logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range res.Skipped {
				fmt.Fprintf(w, "[error] Skipped unreadable sheet %s: %v\n", filepath.Base(s.Path), s.Err)
			}
			switch res.Status {
			case merge.StatusNoSources:
				fmt.Fprintf(w, "No sheets found in %s\n", cfg.Paths.OutputDir)
			case merge.StatusNothingReadable:
				fmt.Fprintf(w, "[error] None of the %d sheet(s) in %s could be read\n", res.Sources, cfg.Paths.OutputDir)
			case merge.StatusMerged:
				if res.ArchivedPrevious != "" {
					fmt.Fprintf(w, "Previous catalog archived as %s\n", res.ArchivedPrevious)
				}
				fmt.Fprintf(w, "[ok] Catalog written to %s (%d rows from %d sheet(s), %d dropped)\n",
					res.Path, res.Rows, res.Readable, res.RowsIn-res.Rows)
				if res.ParquetPath != "" {
					fmt.Fprintf(w, "[ok] Parquet snapshot written to %s\n", res.ParquetPath)
				}
				if len(res.Deleted) > 0 {
					fmt.Fprintf(w, "Deleted %d source sheet(s)\n", len(res.Deleted))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "Folder with per-image sheets (env MENU_OUTPUT_DIR)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Consolidated catalog path (env MENU_CONSOLIDATED_PATH)")
	cmd.Flags().StringVar(&parquet, "parquet", "", "Also write a Parquet snapshot here (env MERGE_PARQUET_PATH)")
	cmd.Flags().BoolVar(&deleteSources, "delete-sources", false, "Delete source sheets after merging (env MERGE_DELETE_SOURCES)")

	return cmd
}
