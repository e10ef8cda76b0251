package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

// CatalogRow is the Parquet layout of one consolidated record.
type CatalogRow struct {
	Category    string `parquet:"category"`
	Name        string `parquet:"name"`
	Value       string `parquet:"value"`
	Description string `parquet:"description"`
}

// WriteItemsParquet writes items to path as a single row group.
func WriteItemsParquet(path string, items []llm.MenuItem) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create parquet dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}

	rows := make([]CatalogRow, len(items))
	for i, it := range items {
		rows[i] = CatalogRow{Category: it.Category, Name: it.Name, Value: it.Value, Description: it.Description}
	}

	writer := parquet.NewGenericWriter[CatalogRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadItemsParquet loads a snapshot written by WriteItemsParquet.
func ReadItemsParquet(path string) ([]llm.MenuItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[CatalogRow](pf)
	defer reader.Close()

	var items []llm.MenuItem
	rows := make([]CatalogRow, 128)
	for {
		n, err := reader.Read(rows)
		for _, r := range rows[:n] {
			items = append(items, llm.MenuItem{Category: r.Category, Name: r.Name, Value: r.Value, Description: r.Description})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return items, nil
}
