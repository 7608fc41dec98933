// Package wikipedia adapts the MediaWiki Action API as a knowledge source.
// Lookups follow server-side redirects and carry the intro extract; search
// uses the opensearch endpoint; cross-language lookups pivot through
// langlinks. Wikipedia has no alias endpoint, so LookupAlias is
// unsupported.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/entlink/entlink/pkg/source"

	"github.com/PuerkitoBio/goquery"
)

const defaultAPIPattern = "https://%s.wikipedia.org/w/api.php"

// Wikipedia is a Source backed by a Wikipedia language edition.
type Wikipedia struct {
	http       *source.HTTPClient
	apiURL     string
	apiPattern string
	language   string
}

var _ source.Source = (*Wikipedia)(nil)

// WikipediaParams contains configuration for creating a Wikipedia source.
type WikipediaParams struct {
	// Client is the shared adapter HTTP client.
	Client *source.HTTPClient
	// Language selects the home edition, "en" by default.
	Language string
	// APIPattern overrides the per-language endpoint template, mainly for
	// tests. It must contain one %s verb for the language code.
	APIPattern string
}

// NewWikipedia creates the adapter.
func NewWikipedia(params WikipediaParams) *Wikipedia {
	language := params.Language
	if language == "" {
		language = "en"
	}
	pattern := params.APIPattern
	if pattern == "" {
		pattern = defaultAPIPattern
	}
	return &Wikipedia{
		http:       params.Client,
		apiURL:     fmt.Sprintf(pattern, language),
		apiPattern: pattern,
		language:   language,
	}
}

func (w *Wikipedia) Name() string {
	return "wikipedia"
}

type queryResponse struct {
	Query struct {
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
		Pages []struct {
			Title     string `json:"title"`
			Missing   bool   `json:"missing"`
			Extract   string `json:"extract"`
			FullURL   string `json:"fullurl"`
			LangLinks []struct {
				Lang  string `json:"lang"`
				Title string `json:"title"`
			} `json:"langlinks"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *Wikipedia) Lookup(ctx context.Context, key string) (*source.Page, error) {
	return w.lookupAt(ctx, w.apiURL, key)
}

func (w *Wikipedia) lookupAt(ctx context.Context, apiURL, key string) (*source.Page, error) {
	query := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"titles":        {key},
		"prop":          {"extracts|info"},
		"exintro":       {"1"},
		"inprop":        {"url"},
	}

	var res queryResponse
	if err := w.http.GetJSON(ctx, apiURL, query, &res); err != nil {
		return nil, err
	}
	if len(res.Query.Pages) == 0 || res.Query.Pages[0].Missing {
		return nil, source.ErrNotFound
	}

	page := res.Query.Pages[0]
	result := &source.Page{
		Title:   page.Title,
		URL:     page.FullURL,
		Extract: stripHTML(page.Extract),
	}
	for _, redirect := range res.Query.Redirects {
		if redirect.To == page.Title {
			result.RedirectedFrom = redirect.From
			break
		}
	}
	return result, nil
}

// LookupAlias is unsupported; Wikipedia models synonyms as redirects,
// which Lookup already follows.
func (w *Wikipedia) LookupAlias(_ context.Context, _ string) (*source.Page, error) {
	return nil, source.ErrUnsupported
}

func (w *Wikipedia) Search(ctx context.Context, searchQuery string, limit int) ([]source.Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	query := url.Values{
		"action": {"opensearch"},
		"format": {"json"},
		"search": {searchQuery},
		"limit":  {strconv.Itoa(limit)},
	}

	// Opensearch responds with a positional array:
	// [query, [titles], [descriptions], [urls]].
	var raw []json.RawMessage
	if err := w.http.GetJSON(ctx, w.apiURL, query, &raw); err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("wikipedia opensearch returned %d segments, want at least 2", len(raw))
	}

	var titles []string
	if err := json.Unmarshal(raw[1], &titles); err != nil {
		return nil, fmt.Errorf("failed to decode opensearch titles: %w", err)
	}
	var descriptions []string
	if len(raw) >= 3 {
		if err := json.Unmarshal(raw[2], &descriptions); err != nil {
			return nil, fmt.Errorf("failed to decode opensearch descriptions: %w", err)
		}
	}

	hits := make([]source.Hit, 0, len(titles))
	for i, title := range titles {
		hit := source.Hit{Title: title}
		if i < len(descriptions) {
			hit.Description = descriptions[i]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (w *Wikipedia) LookupViaLanguage(ctx context.Context, key, lang, pivot string) (*source.Page, error) {
	if lang == "" || lang == w.language {
		return nil, source.ErrUnsupported
	}
	if pivot == "" {
		pivot = w.language
	}

	query := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"redirects":     {"1"},
		"titles":        {key},
		"prop":          {"langlinks"},
		"lllang":        {pivot},
	}

	var res queryResponse
	if err := w.http.GetJSON(ctx, fmt.Sprintf(w.apiPattern, lang), query, &res); err != nil {
		return nil, err
	}
	if len(res.Query.Pages) == 0 || res.Query.Pages[0].Missing {
		return nil, source.ErrNotFound
	}

	var translated string
	for _, link := range res.Query.Pages[0].LangLinks {
		if link.Lang == pivot {
			translated = link.Title
			break
		}
	}
	if translated == "" {
		return nil, source.ErrNotFound
	}

	page, err := w.lookupAt(ctx, fmt.Sprintf(w.apiPattern, pivot), translated)
	if err != nil {
		return nil, err
	}
	if page.Fields == nil {
		page.Fields = make(map[string]any)
	}
	page.Fields["translated_title"] = translated
	return page, nil
}

// stripHTML flattens the exintro HTML fragment to plain text.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}
