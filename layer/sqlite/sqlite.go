// Package sqlite implements the durable-structured tier on a per-device
// SQLite database. Entries survive process restarts; the table is bounded by
// a maximum row count and evicts oldest-by-timestamp rows on insert.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/stratacache/internal/wire"
	"github.com/unkn0wn-root/stratacache/layer"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key       TEXT PRIMARY KEY,
	envelope  BLOB NOT NULL,
	version   INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_timestamp ON cache_entries(timestamp);
`

// Layer persists framed entries in SQLite. The database handle is opened
// lazily on first use so constructing the layer never touches the disk;
// if the database cannot be opened every operation keeps returning the
// open error and the orchestrator degrades to the remaining tiers.
type Layer struct {
	path       string
	maxEntries int

	openOnce sync.Once
	sqlDB    *sql.DB
	openErr  error

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

var _ layer.Layer = (*Layer)(nil)

type Config struct {
	// Path to the database file. Required.
	Path string
	// MaxEntries bounds the table; 0 means unbounded.
	MaxEntries int
}

func New(cfg Config) (*Layer, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite: database path is required")
	}
	return &Layer{path: filepath.Clean(cfg.Path), maxEntries: cfg.MaxEntries}, nil
}

func (l *Layer) Kind() layer.Kind { return layer.DurableStructured }

func (l *Layer) db() (*sql.DB, error) {
	l.openOnce.Do(func() {
		dsn := l.path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
		sqlDB, err := sql.Open("sqlite", dsn)
		if err != nil {
			l.openErr = fmt.Errorf("open sqlite db: %w", err)
			return
		}
		if _, err := sqlDB.Exec(schema); err != nil {
			_ = sqlDB.Close()
			l.openErr = fmt.Errorf("create schema: %w", err)
			return
		}
		l.sqlDB = sqlDB
	})
	return l.sqlDB, l.openErr
}

func (l *Layer) Get(ctx context.Context, key string) (layer.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return layer.Entry{}, false, err
	}
	sqlDB, err := l.db()
	if err != nil {
		return layer.Entry{}, false, err
	}

	var envelope []byte
	err = sqlDB.QueryRowContext(ctx,
		`SELECT envelope FROM cache_entries WHERE key = ?`, key).Scan(&envelope)
	if errors.Is(err, sql.ErrNoRows) {
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	if err != nil {
		return layer.Entry{}, false, fmt.Errorf("select entry: %w", err)
	}
	e, err := wire.Decode(envelope)
	if err != nil {
		// self-heal corrupt row
		_, _ = sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		l.misses.Add(1)
		return layer.Entry{}, false, nil
	}
	l.hits.Add(1)
	return e, true, nil
}

func (l *Layer) Set(ctx context.Context, key string, e layer.Entry, _ layer.SetOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sqlDB, err := l.db()
	if err != nil {
		return false, err
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cache_entries (key, envelope, version, timestamp)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			envelope = excluded.envelope,
			version = excluded.version,
			timestamp = excluded.timestamp`,
		key, wire.Encode(e), int64(e.Version), e.Timestamp)
	if err != nil {
		return false, fmt.Errorf("upsert entry: %w", err)
	}

	if l.maxEntries > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM cache_entries WHERE key IN (
				SELECT key FROM cache_entries
				ORDER BY timestamp ASC
				LIMIT (SELECT MAX(COUNT(*) - ?, 0) FROM cache_entries)
			)`, l.maxEntries)
		if err != nil {
			return false, fmt.Errorf("evict oldest: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			l.evictions.Add(uint64(n))
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (l *Layer) Delete(ctx context.Context, key string) (bool, error) {
	sqlDB, err := l.db()
	if err != nil {
		return false, err
	}
	res, err := sqlDB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Layer) Clear(ctx context.Context) error {
	sqlDB, err := l.db()
	if err != nil {
		return err
	}
	if _, err := sqlDB.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}
	return nil
}

func (l *Layer) Stats(ctx context.Context) (layer.Stats, error) {
	st := layer.Stats{
		Kind:      layer.DurableStructured,
		Capacity:  l.maxEntries,
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Evictions: l.evictions.Load(),
	}
	sqlDB, err := l.db()
	if err != nil {
		return st, err
	}
	if err := sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries`).Scan(&st.Size); err != nil {
		return st, fmt.Errorf("count entries: %w", err)
	}
	return st, nil
}

func (l *Layer) Close(context.Context) error {
	if l.sqlDB == nil {
		return nil
	}
	return l.sqlDB.Close()
}
