package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entlink/entlink/pkg/cache"
	"github.com/entlink/entlink/pkg/logger"
)

// envelope is the cached representation of one lookup outcome. Definitive
// misses are stored with Found=false so repeated lookups of unknown
// entities do not hit the live source again.
type envelope struct {
	Found bool  `json:"found"`
	Page  *Page `json:"page,omitempty"`
	Hits  []Hit `json:"hits,omitempty"`
}

// CachedSource wraps a Source with read-through caching. Positive results
// and definitive misses are cached; transport failures and unsupported
// operations are never cached. Cache I/O failures degrade to a live fetch.
type CachedSource struct {
	inner      Source
	store      cache.Store
	maxAge     time.Duration
	allowStale bool
	now        func() time.Time
}

var _ Source = (*CachedSource)(nil)

// CachedSourceParams contains configuration for creating a CachedSource.
type CachedSourceParams struct {
	// Inner is the live adapter being wrapped.
	Inner Source
	// Store persists the cached outcomes.
	Store cache.Store
	// MaxAge bounds how old an entry may be before it is refetched. Zero
	// means entries never expire.
	MaxAge time.Duration
	// AllowStale serves an expired entry when the refetch fails with a
	// transient error, instead of propagating the failure.
	AllowStale bool
}

// NewCachedSource wraps inner with the cache store.
func NewCachedSource(params CachedSourceParams) *CachedSource {
	return &CachedSource{
		inner:      params.Inner,
		store:      params.Store,
		maxAge:     params.MaxAge,
		allowStale: params.AllowStale,
		now:        time.Now,
	}
}

func (s *CachedSource) Name() string {
	return s.inner.Name()
}

func (s *CachedSource) Lookup(ctx context.Context, key string) (*Page, error) {
	return s.cachedPage(ctx, "lookup:"+key, func(ctx context.Context) (*Page, error) {
		return s.inner.Lookup(ctx, key)
	})
}

func (s *CachedSource) LookupAlias(ctx context.Context, alias string) (*Page, error) {
	return s.cachedPage(ctx, "alias:"+alias, func(ctx context.Context) (*Page, error) {
		return s.inner.LookupAlias(ctx, alias)
	})
}

func (s *CachedSource) LookupViaLanguage(ctx context.Context, key, lang, pivot string) (*Page, error) {
	cacheKey := fmt.Sprintf("lang:%s:%s:%s", lang, pivot, key)
	return s.cachedPage(ctx, cacheKey, func(ctx context.Context) (*Page, error) {
		return s.inner.LookupViaLanguage(ctx, key, lang, pivot)
	})
}

func (s *CachedSource) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	cacheKey := fmt.Sprintf("search:%d:%s", limit, query)

	cached, fresh := s.load(ctx, cacheKey)
	if cached != nil && fresh {
		return cached.Hits, nil
	}

	hits, err := s.inner.Search(ctx, query, limit)
	if err != nil {
		if cached != nil && s.allowStale && IsTransient(err) {
			logger.Warn("serving stale search results", "source", s.Name(), "query", query, "error", err)
			return cached.Hits, nil
		}
		return nil, err
	}

	s.save(ctx, cacheKey, &envelope{Found: true, Hits: hits})
	return hits, nil
}

// cachedPage runs the read-through flow for one page-returning operation.
func (s *CachedSource) cachedPage(ctx context.Context, cacheKey string, fetch func(context.Context) (*Page, error)) (*Page, error) {
	cached, fresh := s.load(ctx, cacheKey)
	if cached != nil && fresh {
		if !cached.Found {
			return nil, ErrNotFound
		}
		return cached.Page, nil
	}

	page, err := fetch(ctx)
	switch {
	case err == nil:
		s.save(ctx, cacheKey, &envelope{Found: true, Page: page})
		return page, nil
	case errors.Is(err, ErrNotFound):
		s.save(ctx, cacheKey, &envelope{Found: false})
		return nil, ErrNotFound
	case cached != nil && s.allowStale && IsTransient(err):
		logger.Warn("serving stale entry", "source", s.Name(), "key", cacheKey, "error", err)
		if !cached.Found {
			return nil, ErrNotFound
		}
		return cached.Page, nil
	default:
		return nil, err
	}
}

// load returns the decoded cached envelope, if any, and whether it is
// still fresh. Cache read failures are logged and treated as misses.
func (s *CachedSource) load(ctx context.Context, cacheKey string) (*envelope, bool) {
	entry, err := s.store.Get(ctx, s.Name(), cacheKey)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("cache read failed", "source", s.Name(), "key", cacheKey, "error", err)
		}
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(entry.Payload, &env); err != nil {
		logger.Warn("discarding undecodable cache entry", "source", s.Name(), "key", cacheKey, "error", err)
		return nil, false
	}

	return &env, !entry.Stale(s.maxAge, s.now())
}

// save writes the envelope, logging instead of failing when the store
// rejects the write.
func (s *CachedSource) save(ctx context.Context, cacheKey string, env *envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		logger.Warn("cache encode failed", "source", s.Name(), "key", cacheKey, "error", err)
		return
	}
	if err := s.store.Put(ctx, s.Name(), cacheKey, payload); err != nil {
		logger.Warn("cache write failed", "source", s.Name(), "key", cacheKey, "error", err)
	}
}
