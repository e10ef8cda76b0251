// Package pipeline runs one batch: ingest, extract, write, archive, merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/menu-catalog/constants"
	"github.com/joseph-ayodele/menu-catalog/internal/archive"
	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/export"
	"github.com/joseph-ayodele/menu-catalog/internal/ingest"
	"github.com/joseph-ayodele/menu-catalog/internal/ledger"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
	"github.com/joseph-ayodele/menu-catalog/internal/merge"
)

// SheetWriter writes one per-image spreadsheet.
type SheetWriter interface {
	WriteItemsXLSX(path string, items []llm.MenuItem) (bool, error)
}

// Merger consolidates the written sheets.
type Merger interface {
	Run(ctx context.Context) (merge.Result, error)
}

// Ledger records image outcomes.
type Ledger interface {
	Record(ctx context.Context, e ledger.Entry) error
	FindProcessedByHash(ctx context.Context, hash string) (*ledger.Entry, error)
}

type Config struct {
	InputDir         string
	OutputDir        string
	ProcessedDir     string
	Categories       []string
	FallbackCategory string
	AutoMerge        bool
	SkipKnown        bool // archive images whose content hash was already processed
}

type Deps struct {
	Extractor llm.ItemExtractor
	Writer    SheetWriter // defaults to export.Writer
	Merger    Merger      // nil disables the merge step
	Ledger    Ledger      // optional
	Logger    *slog.Logger
}

// Result summarizes one batch.
type Result struct {
	RunID         string
	Found         int
	Processed     int
	Corrupt       int
	Failed        int
	Empty         int
	Duplicates    int
	ArchiveErrors int
	Merge         *merge.Result
	MergeErr      error
}

type Processor struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps) (*Processor, error) {
	if deps.Extractor == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "pipeline needs an extractor", common.ErrConfig)
	}
	if len(cfg.Categories) == 0 {
		return nil, common.NewAppError("CONFIG_ERROR", "pipeline needs at least one category", common.ErrConfig)
	}
	for _, d := range []struct{ name, val string }{
		{"input dir", cfg.InputDir},
		{"output dir", cfg.OutputDir},
		{"processed dir", cfg.ProcessedDir},
	} {
		if strings.TrimSpace(d.val) == "" {
			return nil, common.NewAppError("CONFIG_ERROR", d.name+" is empty", common.ErrConfig)
		}
	}
	if cfg.FallbackCategory == "" {
		cfg.FallbackCategory = constants.DefaultFallbackCategory
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Writer == nil {
		deps.Writer = export.NewWriter(deps.Logger)
	}
	return &Processor{cfg: cfg, deps: deps, logger: deps.Logger}, nil
}

// Run processes every image currently in the input folder, one at a time.
// Per-image problems are counted and reported; the returned error is only
// set for setup failures and cancellation.
func (p *Processor) Run(ctx context.Context, rep Reporter) (Result, error) {
	if rep == nil {
		rep = discardReporter{}
	}
	runID := uuid.New().String()
	ctx = common.WithRunID(ctx, runID)
	log := p.logger.With("run_id", runID)
	res := Result{RunID: runID}
	start := time.Now()

	emit := func(kind LineKind, format string, args ...any) {
		rep.Report(Line{Kind: kind, Text: fmt.Sprintf(format, args...), At: time.Now()})
	}

	for _, dir := range []string{p.cfg.InputDir, p.cfg.OutputDir, p.cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("create folder %s: %w", dir, err)
		}
	}

	images, err := ingest.ListImages(p.cfg.InputDir)
	if err != nil {
		return res, err
	}
	res.Found = len(images)
	emit(KindHeader, "Processing %d image(s) from %s", len(images), p.cfg.InputDir)
	log.Info("pipeline.start", "images", len(images), "input_dir", p.cfg.InputDir)
	if len(images) == 0 {
		emit(KindInfo, "No images to process")
		return res, nil
	}

	for i, path := range images {
		if err := ctx.Err(); err != nil {
			emit(KindError, "Cancelled before %s", filepath.Base(path))
			log.Warn("pipeline.cancelled", "remaining", len(images)-i)
			return res, errors.Join(common.ErrCancelled, err)
		}
		emit(KindInfo, "[%d/%d] %s", i+1, len(images), filepath.Base(path))
		if err := p.processOne(ctx, log, path, &res, emit); err != nil {
			log.Warn("pipeline.cancelled", "image", filepath.Base(path))
			return res, errors.Join(common.ErrCancelled, err)
		}
	}

	log.Info("pipeline.batch.done",
		"found", res.Found,
		"processed", res.Processed,
		"corrupt", res.Corrupt,
		"failed", res.Failed,
		"empty", res.Empty,
		"duplicates", res.Duplicates,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	emit(KindHeader, "Batch done: %d processed, %d corrupt, %d failed, %d empty, %d duplicate",
		res.Processed, res.Corrupt, res.Failed, res.Empty, res.Duplicates)

	if p.cfg.AutoMerge && p.deps.Merger != nil && res.Processed > 0 {
		p.runMerge(ctx, log, &res, emit)
	}
	return res, nil
}

type emitFunc func(kind LineKind, format string, args ...any)

// processOne handles a single image. It only returns an error when ctx was
// cancelled mid-image.
func (p *Processor) processOne(ctx context.Context, log *slog.Logger, path string, res *Result, emit emitFunc) error {
	name := filepath.Base(path)
	runID := common.RunIDFromContext(ctx)
	entry := ledger.Entry{RunID: runID, FileName: name}

	img, err := ingest.Load(path)
	if err != nil {
		if errors.Is(err, ingest.ErrCorruptImage) {
			res.Corrupt++
			entry.Status = constants.ImageStatusCorrupt
			entry.Error = err.Error()
			log.Warn("pipeline.image.corrupt", "image", name, "error", err)
			dst, mvErr := archive.Move(path, p.cfg.ProcessedDir, constants.CorruptedPrefix)
			if mvErr != nil {
				res.ArchiveErrors++
				emit(KindError, "%s: corrupt image, could not move it: %v", name, mvErr)
				log.Error("pipeline.archive.failed", "image", name, "error", mvErr)
			} else {
				emit(KindError, "%s: corrupt image, moved to %s", name, dst)
			}
			p.record(ctx, log, entry)
			return nil
		}
		res.Failed++
		entry.Status = constants.ImageStatusFailed
		entry.Error = err.Error()
		emit(KindError, "%s: %v", name, err)
		log.Error("pipeline.image.load_failed", "image", name, "error", err)
		p.record(ctx, log, entry)
		return nil
	}
	entry.ContentHash = img.HashHex

	if p.cfg.SkipKnown && p.deps.Ledger != nil {
		prev, err := p.deps.Ledger.FindProcessedByHash(ctx, img.HashHex)
		if err != nil {
			log.Warn("pipeline.ledger.lookup_failed", "image", name, "error", err)
		} else if prev != nil {
			res.Duplicates++
			entry.Status = constants.ImageStatusDuplicate
			entry.SheetPath = prev.SheetPath
			dst, mvErr := archive.Move(path, p.cfg.ProcessedDir, constants.DuplicatePrefix)
			if mvErr != nil {
				res.ArchiveErrors++
				emit(KindError, "%s: already processed as %s, could not move it: %v", name, prev.FileName, mvErr)
			} else {
				emit(KindInfo, "%s: already processed as %s, moved to %s", name, prev.FileName, dst)
			}
			log.Info("pipeline.image.duplicate", "image", name, "previous", prev.FileName, "hash", img.HashHex)
			p.record(ctx, log, entry)
			return nil
		}
	}

	items, err := p.deps.Extractor.ExtractItems(ctx, llm.ExtractRequest{
		ImageName:         name,
		MIMEType:          img.MIMEType,
		ImageBase64:       img.Base64,
		AllowedCategories: p.cfg.Categories,
		FallbackCategory:  p.cfg.FallbackCategory,
	})
	if err != nil {
		if ctx.Err() != nil {
			emit(KindError, "%s: cancelled", name)
			return ctx.Err()
		}
		res.Failed++
		entry.Status = constants.ImageStatusFailed
		entry.Error = err.Error()
		emit(KindError, "%s: extraction failed, image left in place: %v", name, err)
		log.Error("pipeline.image.extract_failed", "image", name, "error", err)
		p.record(ctx, log, entry)
		return nil
	}
	if len(items) == 0 {
		res.Empty++
		entry.Status = constants.ImageStatusEmpty
		emit(KindError, "%s: no items found, image left in place", name)
		log.Warn("pipeline.image.empty", "image", name)
		p.record(ctx, log, entry)
		return nil
	}

	// sheets are never overwritten; menu.jpg and menu.png both get their own
	sheet, err := archive.FreePath(p.cfg.OutputDir, strings.TrimSuffix(name, filepath.Ext(name))+constants.SheetExt)
	if err == nil {
		_, err = p.deps.Writer.WriteItemsXLSX(sheet, items)
	}
	if err != nil {
		res.Failed++
		entry.Status = constants.ImageStatusFailed
		entry.Error = err.Error()
		emit(KindError, "%s: could not write sheet: %v", name, err)
		log.Error("pipeline.image.write_failed", "image", name, "sheet", sheet, "error", err)
		p.record(ctx, log, entry)
		return nil
	}
	res.Processed++
	entry.Status = constants.ImageStatusProcessed
	entry.Items = len(items)
	entry.SheetPath = sheet
	emit(KindSuccess, "%s: %d item(s) written to %s", name, len(items), sheet)

	if _, err := archive.Move(path, p.cfg.ProcessedDir, ""); err != nil {
		res.ArchiveErrors++
		emit(KindError, "%s: sheet written but image could not be moved: %v", name, err)
		log.Error("pipeline.archive.failed", "image", name, "error", err)
	}
	log.Info("pipeline.image.ok", "image", name, "items", len(items), "sheet", sheet)
	p.record(ctx, log, entry)
	return nil
}

func (p *Processor) record(ctx context.Context, log *slog.Logger, e ledger.Entry) {
	if p.deps.Ledger == nil {
		return
	}
	// the outcome already happened on disk; record it even if the run is being cancelled
	if err := p.deps.Ledger.Record(context.WithoutCancel(ctx), e); err != nil {
		log.Warn("pipeline.ledger.record_failed", "image", e.FileName, "error", err)
	}
}

func (p *Processor) runMerge(ctx context.Context, log *slog.Logger, res *Result, emit emitFunc) {
	emit(KindHeader, "Merging sheets")
	mr, err := p.deps.Merger.Run(ctx)
	if err != nil {
		res.MergeErr = err
		emit(KindError, "Merge failed: %v", err)
		log.Error("pipeline.merge.failed", "error", err)
		return
	}
	res.Merge = &mr
	switch mr.Status {
	case merge.StatusMerged:
		if mr.ArchivedPrevious != "" {
			emit(KindInfo, "Previous catalog archived as %s", mr.ArchivedPrevious)
		}
		for _, s := range mr.Skipped {
			emit(KindError, "Skipped unreadable sheet %s: %v", filepath.Base(s.Path), s.Err)
		}
		emit(KindSuccess, "Catalog written to %s (%d rows from %d sheet(s))", mr.Path, mr.Rows, mr.Readable)
	case merge.StatusNoSources:
		emit(KindInfo, "No sheets to merge")
	case merge.StatusNothingReadable:
		emit(KindError, "None of the %d sheet(s) could be read", mr.Sources)
	}
}
