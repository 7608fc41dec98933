package resolve

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/match"
	"github.com/entlink/entlink/pkg/source"
)

// scriptedSource is a Source whose behavior per operation is set by the
// test. Unset operations default to a definitive miss for lookups and to
// unsupported for the rest. Call counters are atomic so batch tests can
// assert fetch counts across goroutines.
type scriptedSource struct {
	name     string
	onLookup func(key string) (*source.Page, error)
	onAlias  func(alias string) (*source.Page, error)
	onSearch func(query string, limit int) ([]source.Hit, error)
	onLang   func(key, lang, pivot string) (*source.Page, error)

	lookupCalls int32
	aliasCalls  int32
	searchCalls int32
	langCalls   int32
}

func (s *scriptedSource) Name() string { return s.name }

func (s *scriptedSource) Lookup(ctx context.Context, key string) (*source.Page, error) {
	atomic.AddInt32(&s.lookupCalls, 1)
	if s.onLookup == nil {
		return nil, source.ErrNotFound
	}
	page, err := s.onLookup(key)
	// A real transport surfaces cancellation that hit mid-flight.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return page, err
}

func (s *scriptedSource) LookupAlias(_ context.Context, alias string) (*source.Page, error) {
	atomic.AddInt32(&s.aliasCalls, 1)
	if s.onAlias == nil {
		return nil, source.ErrUnsupported
	}
	return s.onAlias(alias)
}

func (s *scriptedSource) Search(_ context.Context, query string, limit int) ([]source.Hit, error) {
	atomic.AddInt32(&s.searchCalls, 1)
	if s.onSearch == nil {
		return nil, source.ErrUnsupported
	}
	return s.onSearch(query, limit)
}

func (s *scriptedSource) LookupViaLanguage(_ context.Context, key, lang, pivot string) (*source.Page, error) {
	atomic.AddInt32(&s.langCalls, 1)
	if s.onLang == nil {
		return nil, source.ErrUnsupported
	}
	return s.onLang(key, lang, pivot)
}

func traceStrategies(record *common.ResolutionRecord) []common.Strategy {
	strategies := make([]common.Strategy, len(record.FallbackTrace))
	for i, step := range record.FallbackTrace {
		strategies[i] = step.Strategy
	}
	return strategies
}

func assertCanonicalOrder(t *testing.T, record *common.ResolutionRecord) {
	t.Helper()
	strategies := traceStrategies(record)
	if len(strategies) == 0 {
		t.Fatal("fallback trace is empty")
	}
	for i, strategy := range strategies {
		if strategy != common.Strategies[i] {
			t.Fatalf("trace[%d] = %q, want %q", i, strategy, common.Strategies[i])
		}
	}
}

func TestResolveExactHit(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onLookup: func(key string) (*source.Page, error) {
			return &source.Page{Title: key, URL: "https://example.org/" + key}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Albert Einstein", SourceConfig{})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found (detail: %s)", record.Status, record.ErrorDetail)
	}
	if record.CanonicalTitle != "Albert Einstein" {
		t.Errorf("CanonicalTitle = %q", record.CanonicalTitle)
	}
	if len(record.FallbackTrace) != 1 {
		t.Errorf("trace length = %d, want 1 (stop at first success)", len(record.FallbackTrace))
	}
	assertCanonicalOrder(t, record)
	if record.RedirectFrom != "" || record.SynonymMatch != "" || record.OpensearchMatch != "" || record.EnglishTranslation != "" {
		t.Error("exact hit must carry no fallback annotation")
	}
}

func TestResolveRedirect(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onLookup: func(key string) (*source.Page, error) {
			return &source.Page{Title: "Albert Einstein", RedirectedFrom: key}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Einstein", SourceConfig{})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found", record.Status)
	}
	if record.RedirectFrom != "Einstein" {
		t.Errorf("RedirectFrom = %q, want %q", record.RedirectFrom, "Einstein")
	}
	if len(record.FallbackTrace) != 2 {
		t.Fatalf("trace length = %d, want 2", len(record.FallbackTrace))
	}
	if record.FallbackTrace[0].Outcome != common.OutcomeMiss {
		t.Errorf("exact outcome = %q, want miss", record.FallbackTrace[0].Outcome)
	}
	if record.FallbackTrace[1].Outcome != common.OutcomeHit {
		t.Errorf("redirect outcome = %q, want hit", record.FallbackTrace[1].Outcome)
	}
	if got := atomic.LoadInt32(&src.lookupCalls); got != 1 {
		t.Errorf("lookup calls = %d, want redirect to reuse the exact fetch", got)
	}
	assertCanonicalOrder(t, record)
}

func TestResolveSynonym(t *testing.T) {
	src := &scriptedSource{
		name: "wikidata",
		onAlias: func(alias string) (*source.Page, error) {
			return &source.Page{
				Title:  "Albert Einstein",
				Fields: map[string]any{"matched_alias": alias},
			}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "A. Einstein", SourceConfig{})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found", record.Status)
	}
	if record.SynonymMatch != "A. Einstein" {
		t.Errorf("SynonymMatch = %q", record.SynonymMatch)
	}
	if len(record.FallbackTrace) != 3 {
		t.Errorf("trace length = %d, want 3", len(record.FallbackTrace))
	}
	assertCanonicalOrder(t, record)
}

func TestResolveOpensearch(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onLookup: func(key string) (*source.Page, error) {
			if key == "Albert Einstein" {
				return &source.Page{Title: "Albert Einstein"}, nil
			}
			return nil, source.ErrNotFound
		},
		onSearch: func(query string, limit int) ([]source.Hit, error) {
			return []source.Hit{{Title: "Albert Einstein"}, {Title: "Einstein family"}}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Einstien", SourceConfig{})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found (detail: %s)", record.Status, record.ErrorDetail)
	}
	if record.OpensearchMatch != "Albert Einstein" {
		t.Errorf("OpensearchMatch = %q", record.OpensearchMatch)
	}
	if len(record.FallbackTrace) != 4 {
		t.Errorf("trace length = %d, want 4", len(record.FallbackTrace))
	}
	if record.FallbackTrace[2].Outcome != common.OutcomeSkipped {
		t.Errorf("synonym outcome = %q, want skipped for unsupported alias lookup", record.FallbackTrace[2].Outcome)
	}
	assertCanonicalOrder(t, record)
}

func TestResolveSearchBelowFloor(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onSearch: func(query string, limit int) ([]source.Hit, error) {
			return []source.Hit{{Title: "Something Entirely Unrelated"}}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Quasar", SourceConfig{SearchFloor: 0.9})

	if record.Status != common.StatusError {
		t.Fatalf("Status = %q, want error", record.Status)
	}
	if record.FallbackTrace[3].Outcome != common.OutcomeMiss {
		t.Errorf("search outcome = %q, want miss", record.FallbackTrace[3].Outcome)
	}
}

func TestResolveCrossLanguage(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onLang: func(key, lang, pivot string) (*source.Page, error) {
			if lang != "de" {
				return nil, source.ErrNotFound
			}
			return &source.Page{
				Title:  "Quantum mechanics",
				Fields: map[string]any{"translated_title": "Quantum mechanics"},
			}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Quantenmechanik", SourceConfig{
		FallbackLanguages: []string{"fr", "de"},
	})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found (detail: %s)", record.Status, record.ErrorDetail)
	}
	if record.EnglishTranslation != "Quantum mechanics" {
		t.Errorf("EnglishTranslation = %q", record.EnglishTranslation)
	}
	if len(record.FallbackTrace) != len(common.Strategies) {
		t.Errorf("trace length = %d, want %d", len(record.FallbackTrace), len(common.Strategies))
	}
	assertCanonicalOrder(t, record)
}

func TestResolveExhaustedTraceIsComplete(t *testing.T) {
	src := &scriptedSource{name: "wikipedia"}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "NichtExistierendeEntität123", SourceConfig{
		FallbackLanguages: []string{"de"},
	})

	if record.Status != common.StatusError {
		t.Fatalf("Status = %q, want error", record.Status)
	}
	if record.ErrorDetail == "" {
		t.Error("ErrorDetail is empty on exhaustion")
	}
	if len(record.FallbackTrace) != len(common.Strategies) {
		t.Fatalf("trace length = %d, want full sequence of %d", len(record.FallbackTrace), len(common.Strategies))
	}
	assertCanonicalOrder(t, record)
}

func TestResolveRetriesTransient(t *testing.T) {
	var failures int32 = 2
	src := &scriptedSource{
		name: "wikipedia",
		onLookup: func(key string) (*source.Page, error) {
			if atomic.AddInt32(&failures, -1) >= 0 {
				return nil, &source.TransientError{Err: errors.New("connection reset")}
			}
			return &source.Page{Title: key}, nil
		},
	}
	resolver := NewResolver(match.NewMatcher(0))

	record := resolver.Resolve(context.Background(), src, "Albert Einstein", SourceConfig{MaxAttempts: 3})

	if record.Status != common.StatusFound {
		t.Fatalf("Status = %q, want found after retries (detail: %s)", record.Status, record.ErrorDetail)
	}
	if got := atomic.LoadInt32(&src.lookupCalls); got != 3 {
		t.Errorf("lookup calls = %d, want 3", got)
	}
}

func TestResolveNoRetryOnNotFound(t *testing.T) {
	src := &scriptedSource{name: "wikipedia"}
	resolver := NewResolver(match.NewMatcher(0))

	resolver.Resolve(context.Background(), src, "Missing", SourceConfig{MaxAttempts: 5})

	if got := atomic.LoadInt32(&src.lookupCalls); got != 1 {
		t.Errorf("lookup calls = %d, want no retry on a definitive miss", got)
	}
}

func TestResolveCancelledContext(t *testing.T) {
	src := &scriptedSource{name: "wikipedia"}
	resolver := NewResolver(match.NewMatcher(0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	record := resolver.Resolve(ctx, src, "Albert Einstein", SourceConfig{})

	if record.Status != common.StatusError {
		t.Fatalf("Status = %q, want error", record.Status)
	}
	if !strings.Contains(record.ErrorDetail, "deadline") {
		t.Errorf("ErrorDetail = %q, want deadline reason", record.ErrorDetail)
	}
	if len(record.FallbackTrace) != len(common.Strategies) {
		t.Errorf("trace length = %d, want every state recorded", len(record.FallbackTrace))
	}
	if got := atomic.LoadInt32(&src.lookupCalls); got != 0 {
		t.Errorf("lookup calls = %d, want 0 after cancellation", got)
	}
}
