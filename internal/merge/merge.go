// Package merge consolidates per-image spreadsheets into one catalog.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/menu-catalog/constants"
	"github.com/joseph-ayodele/menu-catalog/internal/archive"
	"github.com/joseph-ayodele/menu-catalog/internal/export"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

type Status string

const (
	StatusMerged          Status = "merged"
	StatusNoSources       Status = "no_sources"
	StatusNothingReadable Status = "nothing_readable"
)

type Config struct {
	SourceDir        string // per-image sheets
	ConsolidatedPath string
	ArchiveDir       string // previous consolidated versions
	ParquetPath      string // optional snapshot of the merged rows
	DeleteSources    bool
}

// SkippedFile is a source sheet that could not be read.
type SkippedFile struct {
	Path string
	Err  error
}

type Result struct {
	Status           Status
	Path             string
	ArchivedPrevious string
	ParquetPath      string
	Sources          int
	Readable         int
	RowsIn           int
	Rows             int
	Skipped          []SkippedFile
	Deleted          []string
}

type Merger struct {
	cfg    Config
	writer *export.Writer
	logger *slog.Logger
}

func NewMerger(cfg Config, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{cfg: cfg, writer: export.NewWriter(logger), logger: logger}
}

// Run merges every sheet in the source folder. Absence of input is reported
// through Result.Status, not as an error.
func (m *Merger) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{}

	sources, err := ListSheets(m.cfg.SourceDir)
	if err != nil {
		return res, err
	}
	res.Sources = len(sources)
	if len(sources) == 0 {
		res.Status = StatusNoSources
		m.logger.Info("merge.no_sources", "dir", m.cfg.SourceDir)
		return res, nil
	}

	var all []llm.MenuItem
	var readable []string
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		items, err := export.ReadItemsXLSX(src)
		if err != nil {
			m.logger.Warn("merge.read_failed", "path", src, "error", err)
			res.Skipped = append(res.Skipped, SkippedFile{Path: src, Err: err})
			continue
		}
		readable = append(readable, src)
		all = append(all, items...)
	}
	res.Readable = len(readable)
	if len(readable) == 0 {
		res.Status = StatusNothingReadable
		m.logger.Warn("merge.nothing_readable", "dir", m.cfg.SourceDir, "skipped", len(res.Skipped))
		return res, nil
	}

	res.RowsIn = len(all)
	merged := Clean(all)
	res.Rows = len(merged)

	prev, err := archive.Rotate(m.cfg.ConsolidatedPath, m.cfg.ArchiveDir)
	if err != nil {
		return res, fmt.Errorf("archive previous catalog: %w", err)
	}
	res.ArchivedPrevious = prev
	if prev != "" {
		m.logger.Info("merge.archived_previous", "from", m.cfg.ConsolidatedPath, "to", prev)
	}

	if err := m.writer.WriteCatalogXLSX(m.cfg.ConsolidatedPath, merged); err != nil {
		return res, fmt.Errorf("write catalog: %w", err)
	}
	res.Path = m.cfg.ConsolidatedPath
	res.Status = StatusMerged

	if m.cfg.ParquetPath != "" {
		if err := export.WriteItemsParquet(m.cfg.ParquetPath, merged); err != nil {
			m.logger.Warn("merge.parquet_failed", "path", m.cfg.ParquetPath, "error", err)
		} else {
			res.ParquetPath = m.cfg.ParquetPath
		}
	}

	if m.cfg.DeleteSources {
		for _, src := range readable {
			if err := os.Remove(src); err != nil {
				m.logger.Warn("merge.delete_source_failed", "path", src, "error", err)
				continue
			}
			res.Deleted = append(res.Deleted, src)
		}
	}

	m.logger.Info("merge.ok",
		"path", res.Path,
		"sources", res.Sources,
		"readable", res.Readable,
		"rows_in", res.RowsIn,
		"rows", res.Rows,
		"deleted", len(res.Deleted),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// ListSheets returns the .xlsx files in dir sorted by name, skipping Office
// lock files and hidden files.
func ListSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sheet dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		if constants.NormalizeExt(filepath.Ext(name)) != constants.NormalizeExt(constants.SheetExt) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}

// Clean drops rows without a Name or Value, keeps the first row per Name and
// fills blank fields with "". Input order is preserved.
func Clean(items []llm.MenuItem) []llm.MenuItem {
	seen := make(map[string]struct{}, len(items))
	out := make([]llm.MenuItem, 0, len(items))
	for _, it := range items {
		it.Name = strings.TrimSpace(it.Name)
		it.Value = strings.TrimSpace(it.Value)
		if it.Name == "" || it.Value == "" {
			continue
		}
		if _, dup := seen[it.Name]; dup {
			continue
		}
		seen[it.Name] = struct{}{}
		out = append(out, it)
	}
	return out
}
