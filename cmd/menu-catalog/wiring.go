package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/menu-catalog/internal/categories"
	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/ledger"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
	"github.com/joseph-ayodele/menu-catalog/internal/llm/gemini"
	"github.com/joseph-ayodele/menu-catalog/internal/merge"
	"github.com/joseph-ayodele/menu-catalog/internal/pipeline"
)

// runtime holds everything a batch needs; close releases it.
type runtime struct {
	proc    *pipeline.Processor
	ledger  *ledger.Store
	closers []func() error
}

func (r *runtime) close(logger *slog.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Warn("close error", "error", err)
		}
	}
}

func newMerger(cfg *common.Config, logger *slog.Logger) *merge.Merger {
	return merge.NewMerger(merge.Config{
		SourceDir:        cfg.Paths.OutputDir,
		ConsolidatedPath: cfg.Paths.ConsolidatedPath,
		ArchiveDir:       cfg.Paths.ArchiveDir,
		ParquetPath:      cfg.Merge.ParquetPath,
		DeleteSources:    cfg.Merge.DeleteSources,
	}, logger)
}

func loadPrompt(cfg *common.Config) (*llm.PromptTemplate, error) {
	if cfg.Paths.PromptFile == "" {
		return llm.DefaultPromptTemplate(), nil
	}
	p, err := llm.LoadPromptTemplate(cfg.Paths.PromptFile)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "load prompt template", fmt.Errorf("%w: %w", common.ErrConfig, err))
	}
	return p, nil
}

func newExtractor(ctx context.Context, cfg *common.Config, prompt *llm.PromptTemplate, logger *slog.Logger) (llm.ItemExtractor, func() error, error) {
	gcfg := gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		BaseURL:     cfg.Gemini.BaseURL,
		Model:       cfg.Gemini.Model,
		Timeout:     cfg.Gemini.Timeout,
		MaxAttempts: cfg.Gemini.MaxAttempts,
		BackoffUnit: cfg.Gemini.BackoffUnit,
		Lenient:     cfg.Gemini.Lenient,
	}
	if cfg.Gemini.Backend == common.BackendSDK {
		c, err := gemini.NewSDKClient(ctx, gcfg, prompt, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	c, err := gemini.NewClient(gcfg, prompt, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() error { return nil }, nil
}

// openLedger returns nil when the ledger is disabled or cannot be opened; a
// broken ledger never blocks extraction.
func openLedger(ctx context.Context, cfg *common.Config, logger *slog.Logger) *ledger.Store {
	store, err := ledger.Open(ctx, ledger.Config{DSN: cfg.Ledger.DSN}, logger)
	if err != nil {
		logger.Error("ledger unavailable, continuing without it", "error", err)
		return nil
	}
	return store
}

// buildRuntime validates config and loads categories before any image is
// touched. Every error it returns is fatal for the command.
func buildRuntime(ctx context.Context, cfg *common.Config, autoMerge bool, logger *slog.Logger) (*runtime, error) {
	if err := cfg.ValidateExtraction(); err != nil {
		return nil, err
	}
	cats, err := categories.Load(cfg.Paths.CategoriesFile)
	if err != nil {
		return nil, err
	}
	logger.Info("categories.loaded", "path", cfg.Paths.CategoriesFile, "count", len(cats))

	prompt, err := loadPrompt(cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{}
	ext, closeExt, err := newExtractor(ctx, cfg, prompt, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, closeExt)

	deps := pipeline.Deps{Extractor: ext, Logger: logger}
	if store := openLedger(ctx, cfg, logger); store != nil {
		rt.ledger = store
		rt.closers = append(rt.closers, store.Close)
		deps.Ledger = store
	}
	if autoMerge {
		deps.Merger = newMerger(cfg, logger)
	}

	proc, err := pipeline.New(pipeline.Config{
		InputDir:         cfg.Paths.InputDir,
		OutputDir:        cfg.Paths.OutputDir,
		ProcessedDir:     cfg.Paths.ProcessedDir,
		Categories:       cats,
		FallbackCategory: cfg.Paths.FallbackCategory,
		AutoMerge:        autoMerge,
		SkipKnown:        cfg.Ledger.SkipKnown,
	}, deps)
	if err != nil {
		rt.close(logger)
		return nil, err
	}
	rt.proc = proc
	return rt, nil
}

// printLines writes progress lines to w until the channel closes.
func printLines(w io.Writer, lines <-chan pipeline.Line) {
	for l := range lines {
		_, _ = fmt.Fprintln(w, l.String())
	}
}
