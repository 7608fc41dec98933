// Package dbpedia adapts DBpedia as a knowledge source. Canonical lookups
// and redirect-based aliases run against the public SPARQL endpoint;
// free-text search uses the DBpedia Lookup service. DBpedia carries no
// usable cross-language pivot here, so LookupViaLanguage is unsupported.
package dbpedia

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/entlink/entlink/pkg/source"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSPARQLURL  = "https://dbpedia.org/sparql"
	defaultLookupURL  = "https://lookup.dbpedia.org/api/search"
	maxOntologyFields = 25
)

// DBpedia is a Source backed by the DBpedia ontology.
type DBpedia struct {
	http      *source.HTTPClient
	sparqlURL string
	lookupURL string
	language  string
}

var _ source.Source = (*DBpedia)(nil)

// DBpediaParams contains configuration for creating a DBpedia source.
type DBpediaParams struct {
	// Client is the shared adapter HTTP client.
	Client *source.HTTPClient
	// SPARQLURL overrides the SPARQL endpoint, mainly for tests.
	SPARQLURL string
	// LookupURL overrides the Lookup search endpoint, mainly for tests.
	LookupURL string
	// Language is the label language used for matching, "en" by default.
	Language string
}

// NewDBpedia creates the adapter.
func NewDBpedia(params DBpediaParams) *DBpedia {
	sparqlURL := params.SPARQLURL
	if sparqlURL == "" {
		sparqlURL = defaultSPARQLURL
	}
	lookupURL := params.LookupURL
	if lookupURL == "" {
		lookupURL = defaultLookupURL
	}
	language := params.Language
	if language == "" {
		language = "en"
	}
	return &DBpedia{
		http:      params.Client,
		sparqlURL: sparqlURL,
		lookupURL: lookupURL,
		language:  language,
	}
}

func (d *DBpedia) Name() string {
	return "dbpedia"
}

type sparqlResponse struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

func (d *DBpedia) runSPARQL(ctx context.Context, sparql string) (*sparqlResponse, error) {
	query := url.Values{
		"query":  {sparql},
		"format": {"application/sparql-results+json"},
	}
	var res sparqlResponse
	if err := d.http.GetJSON(ctx, d.sparqlURL, query, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (d *DBpedia) Lookup(ctx context.Context, key string) (*source.Page, error) {
	sparql := fmt.Sprintf(`SELECT ?entity ?label ?abstract WHERE {
  { ?entity rdfs:label "%[1]s"@%[2]s . FILTER NOT EXISTS { ?entity dbo:wikiPageRedirects ?t } }
  UNION
  { ?redirect rdfs:label "%[1]s"@%[2]s ; dbo:wikiPageRedirects ?entity . }
  ?entity rdfs:label ?label . FILTER(lang(?label) = "%[2]s")
  OPTIONAL { ?entity dbo:abstract ?abstract . FILTER(lang(?abstract) = "%[2]s") }
} LIMIT 1`, escapeLiteral(key), d.language)

	res, err := d.runSPARQL(ctx, sparql)
	if err != nil {
		return nil, err
	}
	if len(res.Results.Bindings) == 0 {
		return nil, source.ErrNotFound
	}

	binding := res.Results.Bindings[0]
	entityURI := binding["entity"].Value
	label := binding["label"].Value
	if entityURI == "" || label == "" {
		return nil, source.ErrNotFound
	}

	page := &source.Page{
		Title:   label,
		URL:     entityURI,
		Extract: binding["abstract"].Value,
	}
	if !strings.EqualFold(label, key) {
		page.RedirectedFrom = key
	}

	fields, err := d.fetchFields(ctx, entityURI)
	if err != nil {
		return nil, err
	}
	page.Fields = fields
	return page, nil
}

func (d *DBpedia) LookupAlias(ctx context.Context, alias string) (*source.Page, error) {
	sparql := fmt.Sprintf(`SELECT ?alias WHERE {
  ?redirect rdfs:label "%s"@%s ; dbo:wikiPageRedirects ?entity .
  ?redirect rdfs:label ?alias .
} LIMIT 1`, escapeLiteral(alias), d.language)

	res, err := d.runSPARQL(ctx, sparql)
	if err != nil {
		return nil, err
	}
	if len(res.Results.Bindings) == 0 {
		return nil, source.ErrNotFound
	}

	page, err := d.Lookup(ctx, alias)
	if err != nil {
		return nil, err
	}
	if page.Fields == nil {
		page.Fields = make(map[string]any)
	}
	page.Fields["matched_alias"] = res.Results.Bindings[0]["alias"].Value
	page.RedirectedFrom = ""
	return page, nil
}

type lookupResponse struct {
	Docs []struct {
		Label   []string `json:"label"`
		Comment []string `json:"comment"`
	} `json:"docs"`
}

func (d *DBpedia) Search(ctx context.Context, searchQuery string, limit int) ([]source.Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	query := url.Values{
		"query":      {searchQuery},
		"maxResults": {strconv.Itoa(limit)},
		"format":     {"json"},
	}

	var res lookupResponse
	if err := d.http.GetJSON(ctx, d.lookupURL, query, &res); err != nil {
		return nil, err
	}

	hits := make([]source.Hit, 0, len(res.Docs))
	for _, doc := range res.Docs {
		if len(doc.Label) == 0 {
			continue
		}
		hit := source.Hit{Title: stripMarkup(doc.Label[0])}
		if len(doc.Comment) > 0 {
			hit.Description = stripMarkup(doc.Comment[0])
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// LookupViaLanguage is unsupported; DBpedia labels are already
// multilingual on the same resource and offer no pivot chain.
func (d *DBpedia) LookupViaLanguage(_ context.Context, _, _, _ string) (*source.Page, error) {
	return nil, source.ErrUnsupported
}

// fetchFields collects the entity's literal ontology properties, keyed by
// the predicate's local name.
func (d *DBpedia) fetchFields(ctx context.Context, entityURI string) (map[string]any, error) {
	sparql := fmt.Sprintf(`SELECT ?p ?o WHERE {
  <%s> ?p ?o .
  FILTER(STRSTARTS(STR(?p), "http://dbpedia.org/ontology/"))
  FILTER(isLiteral(?o) && lang(?o) IN ("", "%s"))
} LIMIT %d`, entityURI, d.language, maxOntologyFields)

	res, err := d.runSPARQL(ctx, sparql)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fields for %s: %w", entityURI, err)
	}

	fields := make(map[string]any, len(res.Results.Bindings))
	for _, binding := range res.Results.Bindings {
		predicate := binding["p"].Value
		if predicate == "" {
			continue
		}
		name := predicate[strings.LastIndexByte(predicate, '/')+1:]
		if name == "abstract" || name == "wikiPageRedirects" {
			continue
		}
		fields[name] = binding["o"].Value
	}
	return fields, nil
}

// escapeLiteral makes a string safe for inlining into a SPARQL literal.
func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// stripMarkup removes the <B> highlighting the Lookup service embeds in
// labels and comments.
func stripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
