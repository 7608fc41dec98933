// Package sqlite provides a file-backed cache.Store on an embedded SQLite
// database. It is the default backend for single-node deployments: entries
// survive process restarts without requiring any external service.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/entlink/entlink/pkg/cache"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    source     TEXT NOT NULL,
    lookup_key TEXT NOT NULL,
    payload    BLOB NOT NULL,
    fetched_at INTEGER NOT NULL,
    PRIMARY KEY (source, lookup_key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_source ON cache_entries(source);
`

// SQLiteStore implements cache.Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ cache.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and initializes) the cache database at path.
// Use ":memory:" for a non-persistent store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "entlink_cache.db"
	}

	if path != ":memory:" {
		if dir := filepath.Dir(filepath.Clean(path)); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to ensure cache directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, source, key string) (*cache.Entry, error) {
	query, args, err := sq.Select("payload", "fetched_at").
		From("cache_entries").
		Where(sq.Eq{"source": source, "lookup_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var payload []byte
	var fetchedAt int64
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	return &cache.Entry{
		Payload:   payload,
		FetchedAt: time.Unix(fetchedAt, 0),
	}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, source, key string, payload []byte) error {
	query, args, err := sq.Insert("cache_entries").
		Columns("source", "lookup_key", "payload", "fetched_at").
		Values(source, key, payload, time.Now().Unix()).
		Suffix("ON CONFLICT (source, lookup_key) DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Invalidate(ctx context.Context, source string) error {
	query, args, err := sq.Delete("cache_entries").
		Where(sq.Eq{"source": source}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invalidate query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("invalidate cache namespace: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
