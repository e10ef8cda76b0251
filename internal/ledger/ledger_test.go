package ledger

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/menu-catalog/constants"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(context.Background(), Config{DSN: dsn}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.Ping(ctx, time.Second); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{RunID: "r1", FileName: "a.png", ContentHash: "h1", Status: constants.ImageStatusFailed, Error: "boom", ProcessedAt: base},
		{RunID: "r1", FileName: "a.png", ContentHash: "h1", Status: constants.ImageStatusProcessed, Items: 3, SheetPath: "out/a.xlsx", ProcessedAt: base.Add(time.Minute)},
		{RunID: "r2", FileName: "b.png", ContentHash: "h2", Status: constants.ImageStatusCorrupt, ProcessedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.FindProcessedByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("FindProcessedByHash: %v", err)
	}
	if got == nil || got.Items != 3 || got.SheetPath != "out/a.xlsx" || got.ID == "" {
		t.Fatalf("entry = %+v", got)
	}
	if !got.ProcessedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("processed_at = %v", got.ProcessedAt)
	}

	none, err := s.FindProcessedByHash(ctx, "h2")
	if err != nil || none != nil {
		t.Fatalf("corrupt entry matched as processed: %+v, %v", none, err)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].FileName != "b.png" || recent[0].Status != constants.ImageStatusCorrupt {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestNilStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{}, nil)
	if err != nil || s != nil {
		t.Fatalf("Open with empty dsn = %v, %v", s, err)
	}
	if err := s.Record(ctx, Entry{FileName: "x"}); err != nil {
		t.Fatal(err)
	}
	if e, err := s.FindProcessedByHash(ctx, "h"); e != nil || err != nil {
		t.Fatal("nil store found an entry")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenRejectsUnknownDSN(t *testing.T) {
	if _, err := Open(context.Background(), Config{DSN: "mysql://x"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRebind(t *testing.T) {
	got := rebind(dialectPostgres, "a = ? AND b = ?")
	if got != "a = $1 AND b = $2" {
		t.Fatalf("got %q", got)
	}
	if rebind(dialectSQLite, "a = ?") != "a = ?" {
		t.Fatal("sqlite query rewritten")
	}
}
