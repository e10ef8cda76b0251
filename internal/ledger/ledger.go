// Package ledger keeps a SQL record of every image outcome.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/menu-catalog/constants"
)

type Entry struct {
	ID          string
	RunID       string
	FileName    string
	ContentHash string
	Status      constants.ImageStatus
	Items       int
	SheetPath   string
	Error       string
	ProcessedAt time.Time
}

// Store is a ledger backed by SQLite or PostgreSQL. A nil *Store is a
// disabled ledger: writes are dropped and lookups find nothing.
type Store struct {
	db      *sql.DB
	dialect dialect
	closeFn func()
	logger  *slog.Logger
}

const schema = `CREATE TABLE IF NOT EXISTS processed_images (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	status       TEXT NOT NULL,
	items        INTEGER NOT NULL DEFAULT 0,
	sheet_path   TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL
)`

// fixed width so processed_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const indexHash = `CREATE INDEX IF NOT EXISTS idx_processed_images_hash ON processed_images(content_hash, status)`

// Open connects and creates the table if absent. An empty DSN returns a nil
// Store and no error.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Info("ledger.disabled")
		return nil, nil
	}
	db, d, closeFn, err := openDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("ledger.connect_failed", "error", err)
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	for _, stmt := range []string{schema, indexHash} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			closeFn()
			return nil, fmt.Errorf("migrate ledger: %w", err)
		}
	}
	return &Store{db: db, dialect: d, closeFn: closeFn, logger: logger}, nil
}

// Ping checks connectivity, bounded by timeout when it is positive.
func (s *Store) Ping(ctx context.Context, timeout time.Duration) error {
	if s == nil {
		return nil
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.logger.Debug("ledger.ping")
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	err := s.db.Close()
	s.closeFn()
	return err
}

// Record inserts e, filling ID and ProcessedAt when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	q := rebind(s.dialect, `INSERT INTO processed_images
		(id, run_id, file_name, content_hash, status, items, sheet_path, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.RunID, e.FileName, e.ContentHash, string(e.Status),
		e.Items, e.SheetPath, e.Error, e.ProcessedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record %s: %w", e.FileName, err)
	}
	s.logger.Debug("ledger.record", "file", e.FileName, "status", e.Status, "run_id", e.RunID)
	return nil
}

// FindProcessedByHash returns the latest processed entry with the given
// content hash, or nil.
func (s *Store) FindProcessedByHash(ctx context.Context, hash string) (*Entry, error) {
	if s == nil || hash == "" {
		return nil, nil
	}
	q := rebind(s.dialect, selectCols+` WHERE content_hash = ? AND status = ? ORDER BY processed_at DESC LIMIT 1`)
	row := s.db.QueryRowContext(ctx, q, hash, string(constants.ImageStatusProcessed))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return &e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	q := rebind(s.dialect, selectCols+` ORDER BY processed_at DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectCols = `SELECT id, run_id, file_name, content_hash, status, items, sheet_path, error, processed_at FROM processed_images`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var e Entry
	var status, at string
	if err := sc.Scan(&e.ID, &e.RunID, &e.FileName, &e.ContentHash, &status, &e.Items, &e.SheetPath, &e.Error, &at); err != nil {
		return Entry{}, err
	}
	e.Status = constants.ImageStatus(status)
	t, err := time.Parse(timeLayout, at)
	if err != nil {
		return Entry{}, fmt.Errorf("parse processed_at %q: %w", at, err)
	}
	e.ProcessedAt = t
	return e, nil
}
