package wikidata

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

// newTestWikidata serves the handler as both the entity API and the SPARQL
// endpoint; the handler can tell them apart by the request parameters.
func newTestWikidata(t *testing.T, skipSPARQL bool, handler http.HandlerFunc) *Wikidata {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewWikidata(WikidataParams{
		Client:     source.NewHTTPClient(source.HTTPClientParams{Timeout: 5 * time.Second}),
		APIURL:     server.URL + "/w/api.php",
		SPARQLURL:  server.URL + "/sparql",
		SkipSPARQL: skipSPARQL,
	})
}

func TestLookupExactLabel(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "wbsearchentities" {
			t.Errorf("action = %q, want wbsearchentities", got)
		}
		fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","description":"theoretical physicist","concepturi":"http://www.wikidata.org/entity/Q937","match":{"type":"label","text":"Albert Einstein"}}]}`)
	})

	page, err := wd.Lookup(context.Background(), "Albert Einstein")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if page.Title != "Albert Einstein" {
		t.Errorf("Title = %q, want %q", page.Title, "Albert Einstein")
	}
	if page.Fields["wikidata_id"] != "Q937" {
		t.Errorf("Fields[wikidata_id] = %v, want Q937", page.Fields["wikidata_id"])
	}
	if page.Extract != "theoretical physicist" {
		t.Errorf("Extract = %q, want description", page.Extract)
	}
}

func TestLookupIgnoresAliasMatches(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","match":{"type":"alias","text":"Einstein"}}]}`)
	})

	_, err := wd.Lookup(context.Background(), "Einstein")
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want source.ErrNotFound", err)
	}
}

func TestLookupAlias(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","match":{"type":"alias","text":"A. Einstein"}}]}`)
	})

	page, err := wd.LookupAlias(context.Background(), "A. Einstein")
	if err != nil {
		t.Fatalf("LookupAlias() error = %v", err)
	}
	if page.Title != "Albert Einstein" {
		t.Errorf("Title = %q, want canonical label", page.Title)
	}
	if page.Fields["matched_alias"] != "A. Einstein" {
		t.Errorf("Fields[matched_alias] = %v, want the alias", page.Fields["matched_alias"])
	}
}

func TestLookupEnrichesClaims(t *testing.T) {
	wd := newTestWikidata(t, false, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == "wbsearchentities" {
			fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","match":{"type":"label","text":"Albert Einstein"}}]}`)
			return
		}
		if r.URL.Query().Get("query") == "" {
			t.Errorf("expected SPARQL query, got %q", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"results":{"bindings":[{"propLabel":{"value":"place of birth"},"valueLabel":{"value":"Ulm"}}]}}`)
	})

	page, err := wd.Lookup(context.Background(), "Albert Einstein")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if page.Fields["place of birth"] != "Ulm" {
		t.Errorf("Fields[place of birth] = %v, want Ulm", page.Fields["place of birth"])
	}
}

func TestSearchReturnsHits(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","description":"physicist","match":{"type":"label","text":"einstein"}},{"id":"Q88665","label":"Einstein family","description":"family","match":{"type":"label","text":"einstein"}}]}`)
	})

	hits, err := wd.Search(context.Background(), "einstein", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Title != "Albert Einstein" || hits[0].Description != "physicist" {
		t.Errorf("hits[0] = %+v, want Albert Einstein / physicist", hits[0])
	}
}

func TestLookupViaLanguage(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case "wbsearchentities":
			if got := r.URL.Query().Get("language"); got != "fr" {
				t.Errorf("language = %q, want fr", got)
			}
			fmt.Fprint(w, `{"search":[{"id":"Q937","label":"Albert Einstein","concepturi":"http://www.wikidata.org/entity/Q937","match":{"type":"label","text":"Albert Einstein"}}]}`)
		case "wbgetentities":
			fmt.Fprint(w, `{"entities":{"Q937":{"labels":{"en":{"value":"Albert Einstein"}},"descriptions":{"en":{"value":"theoretical physicist"}}}}}`)
		default:
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
	})

	page, err := wd.LookupViaLanguage(context.Background(), "Albert Einstein", "fr", "en")
	if err != nil {
		t.Fatalf("LookupViaLanguage() error = %v", err)
	}
	if page.Fields["translated_title"] != "Albert Einstein" {
		t.Errorf("Fields[translated_title] = %v, want pivot label", page.Fields["translated_title"])
	}
	if page.Extract != "theoretical physicist" {
		t.Errorf("Extract = %q, want pivot description", page.Extract)
	}
}

func TestLookupViaHomeLanguageUnsupported(t *testing.T) {
	wd := newTestWikidata(t, true, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := wd.LookupViaLanguage(context.Background(), "Albert Einstein", "en", "en")
	if !errors.Is(err, source.ErrUnsupported) {
		t.Errorf("LookupViaLanguage() error = %v, want source.ErrUnsupported", err)
	}
}
