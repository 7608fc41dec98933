// Package cache provides the content-addressed lookup cache shared by all
// source adapters. Entries are keyed by (source, lookup key), written once
// per successful fetch and only ever replaced wholesale; there is no
// in-place mutation. Implementations must be safe for concurrent readers
// and writers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("cache: entry not found")

// Entry is one cached payload together with the time it was fetched from
// the live source.
type Entry struct {
	Payload   []byte
	FetchedAt time.Time
}

// Stale reports whether the entry is older than maxAge. A zero maxAge
// means entries never expire.
func (e *Entry) Stale(maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.FetchedAt) > maxAge
}

// Store is the persistence contract for resolved lookups. Keys are
// case-sensitive and namespaced per source, so identical mentions across a
// batch always address the same slot.
type Store interface {
	// Get returns the entry stored under (source, key), or ErrNotFound.
	Get(ctx context.Context, source, key string) (*Entry, error)
	// Put stores payload under (source, key), replacing any previous entry.
	// Writes are idempotent; the last successful fetch wins.
	Put(ctx context.Context, source, key string, payload []byte) error
	// Invalidate removes every entry belonging to the source namespace.
	Invalidate(ctx context.Context, source string) error
	// Close releases any underlying resources.
	Close() error
}
