package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/categories"
	"github.com/joseph-ayodele/menu-catalog/internal/ledger"
)

func newCheckCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate configuration, categories and ledger connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			cfg := a.cfg

			if err := cfg.ValidateExtraction(); err != nil {
				fmt.Fprintf(w, "config: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintf(w, "config: OK (model %s, backend %s)\n", cfg.Gemini.Model, cfg.Gemini.Backend)

			cats, err := categories.Load(cfg.Paths.CategoriesFile)
			if err != nil {
				fmt.Fprintf(w, "categories: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintf(w, "categories count: %d\n", len(cats))
			for i, c := range cats {
				fmt.Fprintf(w, "- [%d] %s\n", i+1, c)
			}

			if _, err := loadPrompt(cfg); err != nil {
				fmt.Fprintf(w, "prompt: FAIL (%v)\n", err)
				return err
			}

			if cfg.Ledger.DSN == "" {
				fmt.Fprintln(w, "ledger: disabled")
				return nil
			}
			store, err := ledger.Open(cmd.Context(), ledger.Config{DSN: cfg.Ledger.DSN, DialTimeout: timeout}, a.logger)
			if err != nil {
				fmt.Fprintf(w, "ledger: FAIL (%v)\n", err)
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Ping(cmd.Context(), timeout); err != nil {
				fmt.Fprintf(w, "ledger: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintln(w, "ledger: OK")
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Ledger connect and ping timeout")
	return cmd
}
