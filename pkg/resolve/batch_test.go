package resolve

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entlink/entlink/pkg/cache"
	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/source"
)

func foundSource(name string) *scriptedSource {
	return &scriptedSource{
		name: name,
		onLookup: func(key string) (*source.Page, error) {
			return &source.Page{Title: key, URL: "https://" + name + ".example.org/" + key}, nil
		},
	}
}

func TestResolveBatchNoSourcesIsFatal(t *testing.T) {
	client := NewClient(NewClientParams{})

	_, err := client.ResolveBatch(context.Background(), []string{"Albert Einstein"}, BatchOptions{})
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("ResolveBatch() error = %v, want ErrNoSources", err)
	}
}

func TestResolveBatchUnknownSource(t *testing.T) {
	client := NewClient(NewClientParams{Sources: []source.Source{foundSource("wikipedia")}})

	_, err := client.ResolveBatch(context.Background(), []string{"x"}, BatchOptions{Sources: []string{"nope"}})
	if err == nil {
		t.Error("ResolveBatch() error = nil, want unknown source failure")
	}
}

func TestResolveBatchCompleteMapping(t *testing.T) {
	wikipedia := foundSource("wikipedia")
	wikidata := &scriptedSource{name: "wikidata"} // everything misses
	client := NewClient(NewClientParams{Sources: []source.Source{wikipedia, wikidata}})

	mentions := []string{"Albert Einstein", "Quantenmechanik"}
	merged, err := client.ResolveBatch(context.Background(), mentions, BatchOptions{})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if len(merged) != 2 {
		t.Fatalf("mapping size = %d, want 2", len(merged))
	}
	for _, mention := range mentions {
		record, ok := merged[mention]
		if !ok {
			t.Fatalf("mapping is missing %q", mention)
		}
		for _, name := range []string{"wikipedia", "wikidata"} {
			if record.Records[name] == nil {
				t.Errorf("%q has no record for source %q", mention, name)
			}
		}
		if record.Records["wikipedia"].Status != common.StatusFound {
			t.Errorf("%q wikipedia status = %q, want found", mention, record.Records["wikipedia"].Status)
		}
		// The failing source contributes an error record, never aborts.
		if record.Records["wikidata"].Status != common.StatusError {
			t.Errorf("%q wikidata status = %q, want error", mention, record.Records["wikidata"].Status)
		}
	}
}

func TestResolveBatchCoalescesDuplicates(t *testing.T) {
	src := foundSource("wikipedia")
	client := NewClient(NewClientParams{Sources: []source.Source{src}})

	// Same normalized key spelled three ways plus exact duplicates.
	mentions := []string{
		"Albert Einstein",
		"Albert Einstein",
		"Albert  Einstein",
		" Albert Einstein ",
		"Albert Einstein",
	}
	merged, err := client.ResolveBatch(context.Background(), mentions, BatchOptions{})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	if len(merged) != 3 {
		t.Errorf("mapping size = %d, want 3 distinct exact strings", len(merged))
	}
	if got := atomic.LoadInt32(&src.lookupCalls); got != 1 {
		t.Errorf("live fetches = %d, want 1 per (source, normalized key)", got)
	}
	// Every spelling of the key shares the one resolved record.
	shared := merged["Albert Einstein"].Records["wikipedia"]
	for _, mention := range []string{"Albert  Einstein", " Albert Einstein "} {
		if merged[mention].Records["wikipedia"] != shared {
			t.Errorf("%q did not reuse the resolved record for its normalized key", mention)
		}
	}
}

func TestResolveBatchCacheIdempotence(t *testing.T) {
	src := foundSource("wikipedia")
	cached := source.NewCachedSource(source.CachedSourceParams{
		Inner: src,
		Store: cache.NewMemoryStore(),
	})
	client := NewClient(NewClientParams{Sources: []source.Source{cached}})

	mentions := []string{"Albert Einstein", "Quantenmechanik"}
	first, err := client.ResolveBatch(context.Background(), mentions, BatchOptions{})
	if err != nil {
		t.Fatalf("first ResolveBatch() error = %v", err)
	}
	fetchesAfterFirst := atomic.LoadInt32(&src.lookupCalls)

	second, err := client.ResolveBatch(context.Background(), mentions, BatchOptions{})
	if err != nil {
		t.Fatalf("second ResolveBatch() error = %v", err)
	}

	if got := atomic.LoadInt32(&src.lookupCalls); got != fetchesAfterFirst {
		t.Errorf("live fetches after warm batch = %d, want %d", got, fetchesAfterFirst)
	}
	for _, mention := range mentions {
		if !reflect.DeepEqual(first[mention].Records, second[mention].Records) {
			t.Errorf("records for %q differ between identical batches", mention)
		}
	}
}

func TestResolveBatchTimeout(t *testing.T) {
	src := &scriptedSource{
		name: "wikipedia",
		onLookup: func(key string) (*source.Page, error) {
			time.Sleep(100 * time.Millisecond)
			return &source.Page{Title: key}, nil
		},
	}
	client := NewClient(NewClientParams{Sources: []source.Source{src}})

	merged, err := client.ResolveBatch(context.Background(), []string{"Slow Entity"}, BatchOptions{
		Timeout: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v, want timeout to stay non-fatal", err)
	}

	record := merged["Slow Entity"].Records["wikipedia"]
	if record == nil {
		t.Fatal("mapping is missing the timed-out record")
	}
	if record.Status != common.StatusError {
		t.Errorf("Status = %q, want error for timed-out fetch", record.Status)
	}
}

func TestMergedRecordFound(t *testing.T) {
	client := NewClient(NewClientParams{Sources: []source.Source{foundSource("wikipedia")}})

	merged, err := client.ResolveBatch(context.Background(), []string{"Albert Einstein"}, BatchOptions{})
	if err != nil {
		t.Fatalf("ResolveBatch() error = %v", err)
	}

	record := merged["Albert Einstein"]
	if !record.Found() {
		t.Error("Found() = false, want true with one found source")
	}
	if got := record.DisplayName([]string{"wikipedia"}); got != "Albert Einstein" {
		t.Errorf("DisplayName() = %q", got)
	}
}
