package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

type Config struct {
	DSN             string // "sqlite:<path>" or "postgres://..."
	MaxConns        int32
	DialTimeout     time.Duration
	MaxConnIdleTime time.Duration
}

// openDB resolves the DSN to a *sql.DB. PostgreSQL goes through a pgx pool
// wrapped as database/sql.
func openDB(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, dialect, func(), error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, 0, nil, fmt.Errorf("sqlite dsn has no path")
		}
		logger.Info("ledger.connect", "driver", "sqlite", "path", path)
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, 0, nil, err
		}
		// one writer at a time
		db.SetMaxOpenConns(1)
		return db, dialectSQLite, func() {}, nil

	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		logger.Info("ledger.connect", "driver", "pgx")
		pc, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, 0, nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		if cfg.MaxConnIdleTime > 0 {
			pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "menu-catalog"

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return nil, 0, nil, err
		}
		return stdlib.OpenDBFromPool(pool), dialectPostgres, pool.Close, nil

	default:
		return nil, 0, nil, fmt.Errorf("unsupported ledger dsn %q (want sqlite:<path> or postgres://...)", dsn)
	}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(d dialect, query string) string {
	if d != dialectPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
