package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

// SheetName is the worksheet every menu spreadsheet is written to.
const SheetName = "Menu"

// Headers in column order.
var Headers = []string{"Category", "Name", "Value", "Description"}

var columnWidths = []struct {
	col   string
	width float64
}{
	{"A", 20}, // category
	{"B", 35}, // name
	{"C", 10}, // value
	{"D", 50}, // description
}

// Writer writes menu records to XLSX files.
type Writer struct {
	logger *slog.Logger
}

func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteItemsXLSX writes items to path. Zero items writes nothing and returns false.
func (w *Writer) WriteItemsXLSX(path string, items []llm.MenuItem) (bool, error) {
	if len(items) == 0 {
		w.logger.Info("export.xlsx.skip_empty", "path", path)
		return false, nil
	}
	if err := w.save(path, items); err != nil {
		return false, err
	}
	return true, nil
}

// WriteCatalogXLSX writes items to path even when there are none, leaving a
// header-only sheet.
func (w *Writer) WriteCatalogXLSX(path string, items []llm.MenuItem) error {
	return w.save(path, items)
}

func (w *Writer) save(path string, items []llm.MenuItem) error {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("export.xlsx.close_error", "path", path, "error", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	style, err := f.NewStyle(headerStyle())
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for i, it := range items {
		row := i + 2
		for col, v := range []string{it.Category, it.Name, it.Value, it.Description} {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellStr(SheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	for _, c := range columnWidths {
		_ = f.SetColWidth(SheetName, c.col, c.col, c.width)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}

	w.logger.Info("export.xlsx.ok",
		"path", path,
		"rows", len(items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func headerStyle() *excelize.Style {
	border := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: "000000", Style: 1}
	}
	return &excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D7E4BC"}},
		Border:    []excelize.Border{border("left"), border("top"), border("right"), border("bottom")},
	}
}
