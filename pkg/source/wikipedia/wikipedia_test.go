package wikipedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/entlink/entlink/pkg/source"
)

// newTestWikipedia serves the given handler for every language edition.
func newTestWikipedia(t *testing.T, handler http.HandlerFunc) *Wikipedia {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWikipedia(WikipediaParams{
		Client:     source.NewHTTPClient(source.HTTPClientParams{Timeout: 5 * time.Second}),
		APIPattern: server.URL + "/%s/api.php",
	})
}

func TestLookupFound(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("titles"); got != "Albert Einstein" {
			t.Errorf("titles = %q, want %q", got, "Albert Einstein")
		}
		fmt.Fprint(w, `{"query":{"pages":[{"title":"Albert Einstein","extract":"<p>Albert Einstein was a theoretical physicist.</p>","fullurl":"https://en.wikipedia.org/wiki/Albert_Einstein"}]}}`)
	})

	page, err := wiki.Lookup(context.Background(), "Albert Einstein")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if page.Title != "Albert Einstein" {
		t.Errorf("Title = %q, want %q", page.Title, "Albert Einstein")
	}
	if page.Extract != "Albert Einstein was a theoretical physicist." {
		t.Errorf("Extract = %q, want HTML stripped", page.Extract)
	}
	if page.RedirectedFrom != "" {
		t.Errorf("RedirectedFrom = %q, want empty", page.RedirectedFrom)
	}
}

func TestLookupFollowsRedirect(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"redirects":[{"from":"Einstein","to":"Albert Einstein"}],"pages":[{"title":"Albert Einstein","extract":"physicist"}]}}`)
	})

	page, err := wiki.Lookup(context.Background(), "Einstein")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if page.Title != "Albert Einstein" {
		t.Errorf("Title = %q, want canonical title", page.Title)
	}
	if page.RedirectedFrom != "Einstein" {
		t.Errorf("RedirectedFrom = %q, want %q", page.RedirectedFrom, "Einstein")
	}
}

func TestLookupMissing(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":[{"title":"NoSuchPage","missing":true}]}}`)
	})

	_, err := wiki.Lookup(context.Background(), "NoSuchPage")
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want source.ErrNotFound", err)
	}
}

func TestLookupServerErrorIsTransient(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := wiki.Lookup(context.Background(), "Anything")
	if !source.IsTransient(err) {
		t.Errorf("Lookup() error = %v, want transient", err)
	}
}

func TestSearch(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "opensearch" {
			t.Errorf("action = %q, want opensearch", got)
		}
		fmt.Fprint(w, `["einstien",["Albert Einstein","Einstein family"],["physicist","family"],["https://en.wikipedia.org/wiki/Albert_Einstein","https://en.wikipedia.org/wiki/Einstein_family"]]`)
	})

	hits, err := wiki.Search(context.Background(), "einstien", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	want := []source.Hit{
		{Title: "Albert Einstein", Description: "physicist"},
		{Title: "Einstein family", Description: "family"},
	}
	if len(hits) != len(want) {
		t.Fatalf("Search() returned %d hits, want %d", len(hits), len(want))
	}
	for i := range want {
		if hits[i] != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, hits[i], want[i])
		}
	}
}

func TestLookupAliasUnsupported(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("alias lookup must not reach the network")
	})

	_, err := wiki.LookupAlias(context.Background(), "anything")
	if !errors.Is(err, source.ErrUnsupported) {
		t.Errorf("LookupAlias() error = %v, want source.ErrUnsupported", err)
	}
}

func TestLookupViaLanguage(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Query().Get("prop") == "langlinks":
			fmt.Fprint(w, `{"query":{"pages":[{"title":"Albert Einstein","langlinks":[{"lang":"en","title":"Albert Einstein"}]}]}}`)
		default:
			fmt.Fprint(w, `{"query":{"pages":[{"title":"Albert Einstein","extract":"physicist","fullurl":"https://en.wikipedia.org/wiki/Albert_Einstein"}]}}`)
		}
	})

	page, err := wiki.LookupViaLanguage(context.Background(), "Albert Einstein", "de", "en")
	if err != nil {
		t.Fatalf("LookupViaLanguage() error = %v", err)
	}
	if page.Title != "Albert Einstein" {
		t.Errorf("Title = %q", page.Title)
	}
	if got := page.Fields["translated_title"]; got != "Albert Einstein" {
		t.Errorf("translated_title = %v, want %q", got, "Albert Einstein")
	}
}

func TestLookupViaLanguageNoLink(t *testing.T) {
	wiki := newTestWikipedia(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query":{"pages":[{"title":"Etwas","langlinks":[]}]}}`)
	})

	_, err := wiki.LookupViaLanguage(context.Background(), "Etwas", "de", "en")
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("LookupViaLanguage() error = %v, want source.ErrNotFound", err)
	}
}
