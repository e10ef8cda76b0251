package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/menu-catalog/constants"
	"github.com/joseph-ayodele/menu-catalog/internal/common"
	"github.com/joseph-ayodele/menu-catalog/internal/export"
	"github.com/joseph-ayodele/menu-catalog/internal/ledger"
	"github.com/joseph-ayodele/menu-catalog/internal/llm"
	"github.com/joseph-ayodele/menu-catalog/internal/merge"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls []llm.ExtractRequest
	fn    func(ctx context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error)
}

func (f *fakeExtractor) ExtractItems(ctx context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type memLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (m *memLedger) Record(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLedger) FindProcessedByHash(_ context.Context, hash string) (*ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ContentHash == hash && m.entries[i].Status == constants.ImageStatusProcessed {
			e := m.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

type dirs struct {
	root, in, out, done, live, arch string
}

func newDirs(t *testing.T) dirs {
	root := t.TempDir()
	return dirs{
		root: root,
		in:   filepath.Join(root, "in"),
		out:  filepath.Join(root, "out"),
		done: filepath.Join(root, "done"),
		live: filepath.Join(root, "catalog.xlsx"),
		arch: filepath.Join(root, "archive"),
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: shade, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newProcessor(t *testing.T, d dirs, ext llm.ItemExtractor, led Ledger, skipKnown bool) *Processor {
	t.Helper()
	p, err := New(Config{
		InputDir:     d.in,
		OutputDir:    d.out,
		ProcessedDir: d.done,
		Categories:   []string{"Pizzas", "Drinks"},
		AutoMerge:    true,
		SkipKnown:    skipKnown,
	}, Deps{
		Extractor: ext,
		Merger: merge.NewMerger(merge.Config{
			SourceDir:        d.out,
			ConsolidatedPath: d.live,
			ArchiveDir:       d.arch,
		}, quiet()),
		Ledger: led,
		Logger: quiet(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

type lineLog struct {
	mu    sync.Mutex
	lines []Line
}

func (l *lineLog) Report(line Line) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
}

func (l *lineLog) count(kind LineKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.Kind == kind {
			n++
		}
	}
	return n
}

func TestRunProcessesAndMerges(t *testing.T) {
	d := newDirs(t)
	writePNG(t, filepath.Join(d.in, "a.png"), 10)
	writePNG(t, filepath.Join(d.in, "b.PNG"), 20)

	ext := &fakeExtractor{fn: func(_ context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
		if req.MIMEType != "image/png" || req.ImageBase64 == "" {
			return nil, fmt.Errorf("bad request %+v", req)
		}
		return []llm.MenuItem{
			{Name: "Coke", Value: "R$ 6,00", Category: "Drinks"},
			{Name: "Pizza " + req.ImageName, Value: "R$ 30,00", Category: "Pizzas"},
		}, nil
	}}
	led := &memLedger{}
	lines := &lineLog{}

	res, err := newProcessor(t, d, ext, led, false).Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Found != 2 || res.Processed != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v", res)
	}
	for _, name := range []string{"a", "b"} {
		if !exists(filepath.Join(d.out, name+".xlsx")) {
			t.Errorf("sheet for %s missing", name)
		}
	}
	if !exists(filepath.Join(d.done, "a.png")) || !exists(filepath.Join(d.done, "b.PNG")) {
		t.Error("images not archived")
	}
	if exists(filepath.Join(d.in, "a.png")) {
		t.Error("image still in input folder")
	}

	if res.Merge == nil || res.Merge.Status != merge.StatusMerged {
		t.Fatalf("merge = %+v, err %v", res.Merge, res.MergeErr)
	}
	rows, err := export.ReadItemsXLSX(d.live)
	if err != nil {
		t.Fatal(err)
	}
	// Coke appears in both sheets and is kept once
	if len(rows) != 3 {
		t.Fatalf("catalog rows = %+v", rows)
	}
	if len(led.entries) != 2 || led.entries[0].Status != constants.ImageStatusProcessed || led.entries[0].ContentHash == "" {
		t.Fatalf("ledger = %+v", led.entries)
	}
	if lines.count(KindSuccess) < 3 {
		t.Errorf("success lines = %d", lines.count(KindSuccess))
	}
	for _, call := range ext.calls {
		if len(call.AllowedCategories) != 2 || call.FallbackCategory != "Other" {
			t.Errorf("request categories = %v / %q", call.AllowedCategories, call.FallbackCategory)
		}
	}
}

func TestRunSameStemGetsSeparateSheets(t *testing.T) {
	d := newDirs(t)
	writePNG(t, filepath.Join(d.in, "menu.png"), 10)
	// png bytes under a .jpg name still decode; only the stem matters here
	writePNG(t, filepath.Join(d.in, "menu.jpg"), 20)

	n := 0
	ext := &fakeExtractor{fn: func(_ context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
		n++
		return []llm.MenuItem{{Name: fmt.Sprintf("Item %d from %s", n, req.ImageName), Value: "R$ 10,00", Category: "Pizzas"}}, nil
	}}
	led := &memLedger{}

	res, err := newProcessor(t, d, ext, led, false).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, name := range []string{"menu.xlsx", "menu_1.xlsx"} {
		if !exists(filepath.Join(d.out, name)) {
			t.Errorf("sheet %s missing", name)
		}
	}
	if len(led.entries) != 2 || led.entries[0].SheetPath == led.entries[1].SheetPath {
		t.Fatalf("ledger sheet paths = %+v", led.entries)
	}
	rows, err := export.ReadItemsXLSX(d.live)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("catalog rows = %+v", rows)
	}

	// a later image with the same stem must not replace the kept sheets
	writePNG(t, filepath.Join(d.in, "menu.png"), 30)
	if _, err := newProcessor(t, d, ext, led, false).Run(context.Background(), nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !exists(filepath.Join(d.out, "menu_2.xlsx")) {
		t.Error("second-run sheet missing")
	}
	rows, err = export.ReadItemsXLSX(d.live)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("catalog rows after second run = %+v", rows)
	}
}

func TestRunCorruptAndFailedImages(t *testing.T) {
	d := newDirs(t)
	if err := os.MkdirAll(d.in, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.in, "broken.jpg"), []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(d.in, "fails.png"), 1)
	writePNG(t, filepath.Join(d.in, "nothing.png"), 2)

	ext := &fakeExtractor{fn: func(_ context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
		if req.ImageName == "fails.png" {
			return nil, fmt.Errorf("%w: boom", llm.ErrExtractionFailed)
		}
		return nil, nil
	}}
	lines := &lineLog{}

	res, err := newProcessor(t, d, ext, nil, false).Run(context.Background(), lines)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Corrupt != 1 || res.Failed != 1 || res.Empty != 1 || res.Processed != 0 {
		t.Fatalf("result = %+v", res)
	}
	if ext.callCount() != 2 {
		t.Fatalf("extractor called %d times, want 2", ext.callCount())
	}
	if !exists(filepath.Join(d.done, "CORRUPTED_broken.jpg")) {
		t.Error("corrupt image not archived with prefix")
	}
	for _, name := range []string{"fails.png", "nothing.png"} {
		if !exists(filepath.Join(d.in, name)) {
			t.Errorf("%s moved out of the input folder", name)
		}
		if exists(filepath.Join(d.done, name)) {
			t.Errorf("%s archived", name)
		}
	}
	if res.Merge != nil || exists(d.live) {
		t.Error("merge ran although no image succeeded")
	}
	if lines.count(KindError) != 3 {
		t.Errorf("error lines = %d, want 3", lines.count(KindError))
	}
}

func TestRunSkipKnown(t *testing.T) {
	d := newDirs(t)
	writePNG(t, filepath.Join(d.in, "a.png"), 7)

	ext := &fakeExtractor{fn: func(context.Context, llm.ExtractRequest) ([]llm.MenuItem, error) {
		return []llm.MenuItem{{Name: "X", Value: "1", Category: "Pizzas"}}, nil
	}}
	led := &memLedger{}
	if _, err := newProcessor(t, d, ext, led, true).Run(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	// same bytes under another name
	writePNG(t, filepath.Join(d.in, "copy.png"), 7)
	res, err := newProcessor(t, d, ext, led, true).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicates != 1 || ext.callCount() != 1 {
		t.Fatalf("result = %+v, calls = %d", res, ext.callCount())
	}
	if !exists(filepath.Join(d.done, "DUPLICATE_copy.png")) {
		t.Error("duplicate not archived with prefix")
	}
}

func TestRunNoImages(t *testing.T) {
	d := newDirs(t)
	ext := &fakeExtractor{fn: func(context.Context, llm.ExtractRequest) ([]llm.MenuItem, error) { return nil, nil }}
	res, err := newProcessor(t, d, ext, nil, false).Run(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Found != 0 || res.Merge != nil {
		t.Fatalf("result = %+v", res)
	}
	for _, dir := range []string{d.in, d.out, d.done} {
		if !exists(dir) {
			t.Errorf("folder %s not created", dir)
		}
	}
}

func TestNewRejectsMissingCategories(t *testing.T) {
	_, err := New(Config{InputDir: "a", OutputDir: "b", ProcessedDir: "c"}, Deps{
		Extractor: &fakeExtractor{},
	})
	if !common.IsConfigError(err) {
		t.Fatalf("err = %v, want config error", err)
	}
}

func TestJobStreamsLinesAndCancels(t *testing.T) {
	d := newDirs(t)
	writePNG(t, filepath.Join(d.in, "a.png"), 1)
	writePNG(t, filepath.Join(d.in, "b.png"), 2)

	started := make(chan struct{})
	ext := &fakeExtractor{fn: func(ctx context.Context, req llm.ExtractRequest) ([]llm.MenuItem, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	job := Start(context.Background(), newProcessor(t, d, ext, nil, false))

	var got []Line
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for l := range job.Lines() {
			got = append(got, l)
		}
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never started")
	}
	job.Cancel()

	res, err := job.Wait()
	if !errors.Is(err, common.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want cancellation", err)
	}
	<-collected

	if res.Processed != 0 || ext.callCount() != 1 {
		t.Fatalf("result = %+v, calls = %d", res, ext.callCount())
	}
	if !exists(filepath.Join(d.in, "a.png")) || !exists(filepath.Join(d.in, "b.png")) {
		t.Error("images moved after cancellation")
	}
	if len(got) == 0 || got[0].Kind != KindHeader {
		t.Fatalf("lines = %+v", got)
	}
	last := got[len(got)-1]
	if last.Kind != KindError {
		t.Errorf("last line = %+v, want error line", last)
	}
}
