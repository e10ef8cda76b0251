package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/categories"
	"github.com/joseph-ayodele/menu-catalog/internal/ingest"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

func newExtractCmd(a *app) *cobra.Command {
	var categoriesFile, promptFile string
	var times int
	var pause time.Duration

	cmd := &cobra.Command{
		Use:   "extract <image>",
		Short: "Run extraction on one image and print the items as JSON",
		Long: `Sends a single image to Gemini and prints the extracted items. Nothing is
written or moved, which makes it handy for tuning the instruction template.
With --times the same image is extracted repeatedly to compare runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if categoriesFile != "" {
				cfg.Paths.CategoriesFile = categoriesFile
			}
			if promptFile != "" {
				cfg.Paths.PromptFile = promptFile
			}
			if err := cfg.ValidateExtraction(); err != nil {
				return err
			}
			cats, err := categories.Load(cfg.Paths.CategoriesFile)
			if err != nil {
				return err
			}
			prompt, err := loadPrompt(cfg)
			if err != nil {
				return err
			}
			ext, closeExt, err := newExtractor(cmd.Context(), cfg, prompt, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = closeExt() }()

			img, err := ingest.Load(args[0])
			if err != nil {
				return err
			}
			req := llm.ExtractRequest{
				ImageName:         img.Name,
				MIMEType:          img.MIMEType,
				ImageBase64:       img.Base64,
				AllowedCategories: cats,
				FallbackCategory:  cfg.Paths.FallbackCategory,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for i := 1; i <= times; i++ {
				start := time.Now()
				a.logger.Info("extract.run.start", "iter", i, "image", img.Name, "width", img.Width, "height", img.Height)
				items, err := ext.ExtractItems(cmd.Context(), req)
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					a.logger.Error("extract.run.error", "iter", i, "error", err)
					if times == 1 {
						return err
					}
				} else {
					a.logger.Info("extract.run.ok", "iter", i, "items", len(items), "elapsed_ms", time.Since(start).Milliseconds())
					if err := enc.Encode(items); err != nil {
						return fmt.Errorf("encode items: %w", err)
					}
				}
				if i < times && pause > 0 {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(pause):
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&categoriesFile, "categories", "c", "", "JSON array of category labels (env MENU_CATEGORIES_FILE)")
	cmd.Flags().StringVar(&promptFile, "prompt", "", "YAML file with an instruction template (env MENU_PROMPT_FILE)")
	cmd.Flags().IntVarP(&times, "times", "n", 1, "Number of extractions to run")
	cmd.Flags().DurationVar(&pause, "pause", 750*time.Millisecond, "Pause between repeated extractions")

	return cmd
}
