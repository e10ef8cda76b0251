package merge

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/menu-catalog/internal/export"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
)

type fixture struct {
	root   string
	src    string
	live   string
	arch   string
	writer *export.Writer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	return fixture{
		root:   root,
		src:    filepath.Join(root, "sheets_ready"),
		live:   filepath.Join(root, "menu_catalog.xlsx"),
		arch:   filepath.Join(root, "sheets_archived"),
		writer: export.NewWriter(quiet()),
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f fixture) sheet(t *testing.T, name string, items ...llm.MenuItem) string {
	t.Helper()
	path := filepath.Join(f.src, name)
	if _, err := f.writer.WriteItemsXLSX(path, items); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f fixture) merger(deleteSources bool) *Merger {
	return NewMerger(Config{
		SourceDir:        f.src,
		ConsolidatedPath: f.live,
		ArchiveDir:       f.arch,
		DeleteSources:    deleteSources,
	}, quiet())
}

func TestRunNoSources(t *testing.T) {
	f := newFixture(t)
	res, err := f.merger(false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNoSources {
		t.Fatalf("status = %s", res.Status)
	}
	if _, err := os.Stat(f.live); !os.IsNotExist(err) {
		t.Fatal("catalog written without sources")
	}
}

func TestRunNothingReadable(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(f.src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.src, "broken.xlsx"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := f.merger(false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusNothingReadable || len(res.Skipped) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRunMergesDedupesAndArchives(t *testing.T) {
	f := newFixture(t)
	f.sheet(t, "a.xlsx",
		llm.MenuItem{Name: "Coke", Value: "R$ 6,00", Category: "Drinks", Description: "Can"},
		llm.MenuItem{Name: "Water", Value: "", Category: "Drinks"},
	)
	f.sheet(t, "b.xlsx",
		llm.MenuItem{Name: "Coke", Value: "R$ 7,00", Category: "Drinks", Description: "Bottle"},
		llm.MenuItem{Name: "Pizza", Value: "R$ 30,00", Category: "Pizzas"},
	)
	if err := os.WriteFile(filepath.Join(f.src, "~$a.xlsx"), []byte("lock"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.src, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := f.merger(false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusMerged || res.Sources != 2 || res.Readable != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.ArchivedPrevious != "" {
		t.Fatalf("archived on first run: %q", res.ArchivedPrevious)
	}

	got, err := export.ReadItemsXLSX(f.live)
	if err != nil {
		t.Fatal(err)
	}
	want := []llm.MenuItem{
		{Name: "Coke", Value: "R$ 6,00", Category: "Drinks", Description: "Can"},
		{Name: "Pizza", Value: "R$ 30,00", Category: "Pizzas"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// second run sees new content and rotates the first catalog
	f.sheet(t, "c.xlsx", llm.MenuItem{Name: "Salad", Value: "R$ 15,00", Category: "Starters"})
	res, err = f.merger(false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantArchived := filepath.Join(f.arch, "menu_catalog_1.xlsx")
	if res.ArchivedPrevious != wantArchived {
		t.Fatalf("archived = %q, want %q", res.ArchivedPrevious, wantArchived)
	}
	old, err := export.ReadItemsXLSX(wantArchived)
	if err != nil || len(old) != 2 {
		t.Fatalf("archived catalog = %+v, %v", old, err)
	}
	live, err := export.ReadItemsXLSX(f.live)
	if err != nil || len(live) != 3 {
		t.Fatalf("live catalog = %+v, %v", live, err)
	}
}

func TestRunDeleteSourcesAndParquet(t *testing.T) {
	f := newFixture(t)
	a := f.sheet(t, "a.xlsx", llm.MenuItem{Name: "Coke", Value: "1"})
	pq := filepath.Join(f.root, "catalog.parquet")

	m := NewMerger(Config{
		SourceDir:        f.src,
		ConsolidatedPath: f.live,
		ArchiveDir:       f.arch,
		ParquetPath:      pq,
		DeleteSources:    true,
	}, quiet())
	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != a {
		t.Fatalf("deleted = %v", res.Deleted)
	}
	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Fatal("source sheet kept")
	}
	rows, err := export.ReadItemsParquet(pq)
	if err != nil || len(rows) != 1 || rows[0].Name != "Coke" {
		t.Fatalf("parquet rows = %+v, %v", rows, err)
	}
}

func TestClean(t *testing.T) {
	in := []llm.MenuItem{
		{Name: " A ", Value: "1"},
		{Name: "", Value: "2"},
		{Name: "B", Value: "  "},
		{Name: "A", Value: "3"},
		{Name: "C", Value: "4", Description: "x"},
	}
	got := Clean(in)
	want := []llm.MenuItem{{Name: "A", Value: "1"}, {Name: "C", Value: "4", Description: "x"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
