package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/logger"
)

// app is shared by every subcommand once the root pre-run has loaded config.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
}

type rootFlags struct {
	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "menu-catalog",
		Short: "Extract priced items from menu images into spreadsheets",
		Long: `menu-catalog reads photographed menus and price lists, asks Gemini to
extract every priced item, writes one spreadsheet per image and merges them
into a single deduplicated catalog.

Configuration comes from the environment (and a .env file if present).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			if flags.envFile != "" {
				_ = godotenv.Load(flags.envFile)
			} else {
				_ = godotenv.Load()
			}

			a.cfg = common.LoadConfig()
			if flags.logLevel != "" {
				a.cfg.Log.Level = flags.logLevel
			}
			if flags.logFormat != "" {
				a.cfg.Log.Format = flags.logFormat
			}
			a.logger = logger.Init(logger.Config{Level: a.cfg.Log.Level, Format: a.cfg.Log.Format})
		},
	}

	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to a .env file (default ./.env)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (env LOG_FORMAT)")

	cmd.AddCommand(newProcessCmd(a))
	cmd.AddCommand(newMergeCmd(a))
	cmd.AddCommand(newWatchCmd(a))
	cmd.AddCommand(newHistoryCmd(a))
	cmd.AddCommand(newExtractCmd(a))
	cmd.AddCommand(newCheckCmd(a))

	return cmd
}
