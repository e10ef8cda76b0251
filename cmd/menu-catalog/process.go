package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/pipeline"
)

type pathFlags struct {
	input      string
	output     string
	processed  string
	categories string
	prompt     string
}

func (f pathFlags) apply(cfg *common.Config) {
	if f.input != "" {
		cfg.Paths.InputDir = f.input
	}
	if f.output != "" {
		cfg.Paths.OutputDir = f.output
	}
	if f.processed != "" {
		cfg.Paths.ProcessedDir = f.processed
	}
	if f.categories != "" {
		cfg.Paths.CategoriesFile = f.categories
	}
	if f.prompt != "" {
		cfg.Paths.PromptFile = f.prompt
	}
}

func addPathFlags(cmd *cobra.Command, f *pathFlags) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Folder with menu images (env MENU_INPUT_DIR)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Folder for per-image sheets (env MENU_OUTPUT_DIR)")
	cmd.Flags().StringVar(&f.processed, "processed", "", "Folder for processed images (env MENU_PROCESSED_DIR)")
	cmd.Flags().StringVarP(&f.categories, "categories", "c", "", "JSON array of category labels (env MENU_CATEGORIES_FILE)")
	cmd.Flags().StringVar(&f.prompt, "prompt", "", "YAML file with an instruction template (env MENU_PROMPT_FILE)")
}

func newProcessCmd(a *app) *cobra.Command {
	var paths pathFlags
	var noMerge, skipKnown bool

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Extract items from every image in the input folder",
		Long: `Processes every .png/.jpg/.jpeg image in the input folder, one at a time:
the image is sent to Gemini, the items are written to <image>.xlsx in the
output folder and the image is moved to the processed folder. Images that
fail extraction stay in place for the next run. When at least one sheet was
written, the sheets are merged into the consolidated catalog.`,
		Example: `  # Process with defaults from the environment
  menu-catalog process

  # Custom folders, no merge
  menu-catalog process -i ./photos -o ./sheets --no-merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			paths.apply(cfg)
			if skipKnown {
				cfg.Ledger.SkipKnown = true
			}

			rt, err := buildRuntime(cmd.Context(), cfg, !noMerge, a.logger)
			if err != nil {
				a.logger.Error("startup failed", "error", err)
				return err
			}
			defer rt.close(a.logger)

			job := pipeline.Start(cmd.Context(), rt.proc)
			printLines(cmd.OutOrStdout(), job.Lines())
			res, err := job.Wait()
			if err != nil {
				return err
			}
			return batchError(res)
		},
	}

	addPathFlags(cmd, &paths)
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "Do not merge sheets after the batch")
	cmd.Flags().BoolVar(&skipKnown, "skip-known", false, "Archive images whose content was already processed (env LEDGER_SKIP_KNOWN)")

	return cmd
}

// batchError turns a finished batch into the command's exit status: per-image
// problems are not fatal, a failed merge write is.
func batchError(res pipeline.Result) error {
	if res.MergeErr != nil {
		return fmt.Errorf("merge: %w", res.MergeErr)
	}
	return nil
}
