package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

// ErrNoNameColumn marks a workbook whose header row has no Name column.
var ErrNoNameColumn = errors.New("no Name column in header row")

// headerAliases maps accepted header labels onto record fields. The
// Portuguese labels cover sheets produced by the earlier tooling.
var headerAliases = map[string]string{
	"category":    "Category",
	"categoria":   "Category",
	"name":        "Name",
	"nome":        "Name",
	"value":       "Value",
	"valor":       "Value",
	"price":       "Value",
	"description": "Description",
	"descrição":   "Description",
	"descricao":   "Description",
}

// ReadItemsXLSX reads the first worksheet of path. Columns are matched by
// header name, so their order in the file does not matter. Cells are
// returned as text; blank rows are skipped.
func ReadItemsXLSX(path string) ([]llm.MenuItem, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("open xlsx: no worksheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoNameColumn
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		if field, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}
	if _, ok := cols["Name"]; !ok {
		return nil, ErrNoNameColumn
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	items := make([]llm.MenuItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		it := llm.MenuItem{
			Category:    cell(row, "Category"),
			Name:        cell(row, "Name"),
			Value:       cell(row, "Value"),
			Description: cell(row, "Description"),
		}
		if it == (llm.MenuItem{}) {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
