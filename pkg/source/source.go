// Package source defines the contract every knowledge source adapter
// implements, plus the caching decorator that wraps them. A Source exposes
// one method per resolution strategy; adapters that do not support a
// strategy return ErrUnsupported so the resolver can record the step as
// skipped instead of failed.
package source

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is the definitive answer that the source has no entry for
// the key. It is cacheable, unlike transport failures.
var ErrNotFound = errors.New("source: entity not found")

// ErrUnsupported is returned by adapters for strategies the underlying
// service cannot serve.
var ErrUnsupported = errors.New("source: operation not supported")

// TransientError wraps failures worth retrying, such as network errors and
// 5xx responses. Anything not wrapped in TransientError is treated as
// permanent for the current resolution.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient source error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// Page is a resolved entry as returned by a source.
type Page struct {
	// Title is the canonical title after any server-side redirect.
	Title string `json:"title"`
	// URL points at the human-readable page for the entry.
	URL string `json:"url,omitempty"`
	// Extract is a plain-text summary, when the source provides one.
	Extract string `json:"extract,omitempty"`
	// Fields holds source-specific structured data keyed by property name.
	Fields map[string]any `json:"fields,omitempty"`
	// RedirectedFrom is the requested title when the source redirected,
	// empty otherwise.
	RedirectedFrom string `json:"redirected_from,omitempty"`
}

// Hit is one search result candidate.
type Hit struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Source is the adapter contract for one knowledge service.
type Source interface {
	// Name returns the stable identifier used for cache namespacing and
	// result keying, e.g. "wikipedia".
	Name() string
	// Lookup fetches the entry titled key, following source-side redirects.
	// Returns ErrNotFound when the source definitively has no such entry.
	Lookup(ctx context.Context, key string) (*Page, error)
	// LookupAlias resolves alias through the source's synonym data and
	// returns the canonical entry. The matched alias, when known, is set in
	// Fields under "matched_alias".
	LookupAlias(ctx context.Context, alias string) (*Page, error)
	// Search runs the source's free-text search and returns up to limit
	// candidates, best first. An empty slice means no candidates.
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	// LookupViaLanguage looks key up in the given language edition and
	// pivots back to an entry in the pivot language. Fields carries the
	// pivot-language title under "translated_title".
	LookupViaLanguage(ctx context.Context, key, lang, pivot string) (*Page, error)
}
