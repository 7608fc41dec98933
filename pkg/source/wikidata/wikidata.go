// Package wikidata adapts the Wikidata entity API as a knowledge source.
// Entity lookup goes through wbsearchentities with an exact label match,
// aliases use the same endpoint's alias matches, and structured fields are
// enriched through the public SPARQL endpoint unless disabled.
package wikidata

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/entlink/entlink/pkg/source"
)

const (
	defaultAPIURL    = "https://www.wikidata.org/w/api.php"
	defaultSPARQLURL = "https://query.wikidata.org/sparql"
	maxSPARQLFields  = 25
)

// Wikidata is a Source backed by the Wikidata entity store.
type Wikidata struct {
	http       *source.HTTPClient
	apiURL     string
	sparqlURL  string
	language   string
	skipSPARQL bool
}

var _ source.Source = (*Wikidata)(nil)

// WikidataParams contains configuration for creating a Wikidata source.
type WikidataParams struct {
	// Client is the shared adapter HTTP client.
	Client *source.HTTPClient
	// APIURL overrides the entity API endpoint, mainly for tests.
	APIURL string
	// SPARQLURL overrides the SPARQL endpoint, mainly for tests.
	SPARQLURL string
	// Language is the label language used for matching, "en" by default.
	Language string
	// SkipSPARQL disables structured field enrichment.
	SkipSPARQL bool
}

// NewWikidata creates the adapter.
func NewWikidata(params WikidataParams) *Wikidata {
	apiURL := params.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	sparqlURL := params.SPARQLURL
	if sparqlURL == "" {
		sparqlURL = defaultSPARQLURL
	}
	language := params.Language
	if language == "" {
		language = "en"
	}
	return &Wikidata{
		http:       params.Client,
		apiURL:     apiURL,
		sparqlURL:  sparqlURL,
		language:   language,
		skipSPARQL: params.SkipSPARQL,
	}
}

func (w *Wikidata) Name() string {
	return "wikidata"
}

type searchResponse struct {
	Search []searchResult `json:"search"`
}

type searchResult struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	ConceptURI  string `json:"concepturi"`
	Match       struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"match"`
}

func (w *Wikidata) searchEntities(ctx context.Context, term, language string, limit int) ([]searchResult, error) {
	query := url.Values{
		"action":   {"wbsearchentities"},
		"format":   {"json"},
		"type":     {"item"},
		"search":   {term},
		"language": {language},
		"uselang":  {language},
		"limit":    {strconv.Itoa(limit)},
	}

	var res searchResponse
	if err := w.http.GetJSON(ctx, w.apiURL, query, &res); err != nil {
		return nil, err
	}
	return res.Search, nil
}

func (w *Wikidata) Lookup(ctx context.Context, key string) (*source.Page, error) {
	results, err := w.searchEntities(ctx, key, w.language, 5)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.Match.Type != "label" || !strings.EqualFold(result.Match.Text, key) {
			continue
		}
		return w.buildPage(ctx, result)
	}
	return nil, source.ErrNotFound
}

func (w *Wikidata) LookupAlias(ctx context.Context, alias string) (*source.Page, error) {
	results, err := w.searchEntities(ctx, alias, w.language, 5)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.Match.Type != "alias" || !strings.EqualFold(result.Match.Text, alias) {
			continue
		}
		page, err := w.buildPage(ctx, result)
		if err != nil {
			return nil, err
		}
		page.Fields["matched_alias"] = result.Match.Text
		return page, nil
	}
	return nil, source.ErrNotFound
}

func (w *Wikidata) Search(ctx context.Context, searchQuery string, limit int) ([]source.Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	results, err := w.searchEntities(ctx, searchQuery, w.language, limit)
	if err != nil {
		return nil, err
	}

	hits := make([]source.Hit, 0, len(results))
	for _, result := range results {
		hits = append(hits, source.Hit{Title: result.Label, Description: result.Description})
	}
	return hits, nil
}

type entitiesResponse struct {
	Entities map[string]struct {
		Labels map[string]struct {
			Value string `json:"value"`
		} `json:"labels"`
		Descriptions map[string]struct {
			Value string `json:"value"`
		} `json:"descriptions"`
	} `json:"entities"`
}

func (w *Wikidata) LookupViaLanguage(ctx context.Context, key, lang, pivot string) (*source.Page, error) {
	if lang == "" || lang == w.language {
		return nil, source.ErrUnsupported
	}
	if pivot == "" {
		pivot = w.language
	}

	results, err := w.searchEntities(ctx, key, lang, 5)
	if err != nil {
		return nil, err
	}

	var matched *searchResult
	for i, result := range results {
		if result.Match.Type == "label" && strings.EqualFold(result.Match.Text, key) {
			matched = &results[i]
			break
		}
	}
	if matched == nil {
		return nil, source.ErrNotFound
	}

	query := url.Values{
		"action":    {"wbgetentities"},
		"format":    {"json"},
		"ids":       {matched.ID},
		"props":     {"labels|descriptions"},
		"languages": {pivot},
	}
	var res entitiesResponse
	if err := w.http.GetJSON(ctx, w.apiURL, query, &res); err != nil {
		return nil, err
	}

	entity, ok := res.Entities[matched.ID]
	if !ok {
		return nil, source.ErrNotFound
	}
	label, ok := entity.Labels[pivot]
	if !ok || label.Value == "" {
		return nil, source.ErrNotFound
	}

	page := &source.Page{
		Title: label.Value,
		URL:   matched.ConceptURI,
		Fields: map[string]any{
			"wikidata_id":      matched.ID,
			"translated_title": label.Value,
		},
	}
	if description, ok := entity.Descriptions[pivot]; ok {
		page.Extract = description.Value
	}
	return page, nil
}

// buildPage converts a matched search result into a Page, enriched with
// structured claims when SPARQL is enabled.
func (w *Wikidata) buildPage(ctx context.Context, result searchResult) (*source.Page, error) {
	page := &source.Page{
		Title:   result.Label,
		URL:     result.ConceptURI,
		Extract: result.Description,
		Fields: map[string]any{
			"wikidata_id": result.ID,
		},
	}

	if !w.skipSPARQL {
		fields, err := w.fetchClaims(ctx, result.ID)
		if err != nil {
			return nil, err
		}
		for name, value := range fields {
			page.Fields[name] = value
		}
	}
	return page, nil
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

func (w *Wikidata) fetchClaims(ctx context.Context, entityID string) (map[string]any, error) {
	sparql := fmt.Sprintf(`SELECT ?propLabel ?valueLabel WHERE {
  wd:%s ?p ?value .
  ?prop wikibase:directClaim ?p .
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
} LIMIT %d`, entityID, w.language, maxSPARQLFields)

	query := url.Values{
		"query":  {sparql},
		"format": {"json"},
	}

	var res sparqlResponse
	if err := w.http.GetJSON(ctx, w.sparqlURL, query, &res); err != nil {
		return nil, fmt.Errorf("failed to fetch claims for %s: %w", entityID, err)
	}

	fields := make(map[string]any, len(res.Results.Bindings))
	for _, binding := range res.Results.Bindings {
		prop, ok := binding["propLabel"]
		if !ok || prop.Value == "" {
			continue
		}
		value, ok := binding["valueLabel"]
		if !ok {
			continue
		}
		fields[prop.Value] = value.Value
	}
	return fields, nil
}
