// Package pgx provides a cache.Store on PostgreSQL for deployments where
// several resolver instances share one cache. The schema is applied through
// embedded migrations on startup.
package pgx

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/entlink/entlink/pkg/cache"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements cache.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ cache.Store = (*PostgresStore)(nil)

// NewPostgresStore connects to databaseURL, applies pending migrations and
// returns the store.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, source, key string) (*cache.Entry, error) {
	var payload []byte
	var fetchedAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT payload, fetched_at FROM cache_entries WHERE source = $1 AND lookup_key = $2`,
		source, key,
	).Scan(&payload, &fetchedAt)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	return &cache.Entry{Payload: payload, FetchedAt: fetchedAt}, nil
}

func (s *PostgresStore) Put(ctx context.Context, source, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (source, lookup_key, payload, fetched_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (source, lookup_key)
		 DO UPDATE SET payload = EXCLUDED.payload, fetched_at = EXCLUDED.fetched_at`,
		source, key, payload,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Invalidate(ctx context.Context, source string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM cache_entries WHERE source = $1`, source)
	if err != nil {
		return fmt.Errorf("invalidate cache namespace: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
