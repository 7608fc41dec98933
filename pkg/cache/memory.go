package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for tests and for callers that do
// not need persistence across restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]map[string]Entry),
	}
}

func (s *MemoryStore) Get(_ context.Context, source, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.entries[source]
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := ns[key]
	if !ok {
		return nil, ErrNotFound
	}

	payload := make([]byte, len(entry.Payload))
	copy(payload, entry.Payload)
	return &Entry{Payload: payload, FetchedAt: entry.FetchedAt}, nil
}

func (s *MemoryStore) Put(_ context.Context, source, key string, payload []byte) error {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.entries[source]
	if !ok {
		ns = make(map[string]Entry)
		s.entries[source] = ns
	}
	ns[key] = Entry{Payload: stored, FetchedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, source)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of entries stored for the source.
func (s *MemoryStore) Len(source string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[source])
}
