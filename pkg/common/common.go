package common

import (
	"maps"
	"slices"
)

// Status indicates the outcome of resolving one mention against one source.
type Status string

const (
	// StatusFound marks a record whose mention was resolved to a canonical entity.
	StatusFound Status = "found"
	// StatusError marks a record whose resolution exhausted every strategy.
	StatusError Status = "error"
)

// Strategy identifies one step of the fallback sequence a resolver walks
// through for a single (mention, source) pair. The canonical order is
// exact, redirect, synonym, opensearch, language.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyRedirect   Strategy = "redirect"
	StrategySynonym    Strategy = "synonym"
	StrategyOpensearch Strategy = "opensearch"
	StrategyLanguage   Strategy = "language"
)

// Strategies lists every fallback strategy in canonical order.
var Strategies = []Strategy{
	StrategyExact,
	StrategyRedirect,
	StrategySynonym,
	StrategyOpensearch,
	StrategyLanguage,
}

// Outcome of a single trace step.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// TraceStep records one attempted fallback strategy. Every strategy the
// resolver reaches produces a step, in canonical order, regardless of
// outcome. A completed record always carries at least one step.
type TraceStep struct {
	Strategy Strategy `json:"strategy"`
	Outcome  string   `json:"outcome"`
	Detail   string   `json:"detail,omitempty"`
}

// ResolutionRecord is the result of resolving one mention against one
// source. Exactly one of StatusFound/StatusError holds; ErrorDetail is set
// iff the status is error. The four fallback annotations are mutually
// optional, and the resolver sets at most one of them since it stops at the
// first successful strategy.
type ResolutionRecord struct {
	Source         string         `json:"source"`
	Status         Status         `json:"status"`
	CanonicalTitle string         `json:"canonical_title,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	Extract        string         `json:"extract,omitempty"`
	Fields         map[string]any `json:"structured_fields,omitempty"`

	RedirectFrom       string `json:"redirect_from,omitempty"`
	SynonymMatch       string `json:"synonym_match,omitempty"`
	OpensearchMatch    string `json:"opensearch_match,omitempty"`
	EnglishTranslation string `json:"english_translation,omitempty"`

	FallbackTrace []TraceStep `json:"fallback_trace"`
	ErrorDetail   string      `json:"error_detail,omitempty"`
}

// MergedRecord is the union of one mention's resolution records across all
// requested sources, keyed by source name. It is immutable once returned
// from a batch call.
type MergedRecord struct {
	Mention string                       `json:"mention"`
	Records map[string]*ResolutionRecord `json:"records"`
}

// Found reports whether at least one source resolved the mention.
func (m *MergedRecord) Found() bool {
	for _, rec := range m.Records {
		if rec.Status == StatusFound {
			return true
		}
	}
	return false
}

// DisplayName returns the preferred display name for the mention: the first
// canonical title found across sources in the given source order, falling
// back to the raw mention string.
func (m *MergedRecord) DisplayName(sourceOrder []string) string {
	for _, src := range sourceOrder {
		if rec, ok := m.Records[src]; ok && rec.Status == StatusFound && rec.CanonicalTitle != "" {
			return rec.CanonicalTitle
		}
	}
	// Sources outside the given order fall back in sorted name order so the
	// chosen title is stable across calls.
	for _, src := range slices.Sorted(maps.Keys(m.Records)) {
		if rec := m.Records[src]; rec.Status == StatusFound && rec.CanonicalTitle != "" {
			return rec.CanonicalTitle
		}
	}
	return m.Mention
}

// Triple is a subject-predicate-object relationship statement produced by
// the text-understanding collaborator. All three parts are opaque strings;
// endpoint resolution happens during graph assembly.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Node is one vertex of an assembled graph. IDs are assigned at creation
// and stable for the lifetime of one assembly call; they are never reused
// across calls.
type Node struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Edge is one directed edge of an assembled graph. Both endpoints always
// reference nodes present in the same graph.
type Edge struct {
	SubjectID  string         `json:"subject_id"`
	Predicate  string         `json:"predicate"`
	ObjectID   string         `json:"object_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Graph is the assembled node/edge set handed to rendering or export
// collaborators.
type Graph struct {
	ID    string  `json:"id"`
	Nodes []*Node `json:"nodes"`
	Edges []Edge  `json:"edges"`
}

// UnresolvedTriple reports a relationship whose subject or object could not
// be matched to any node above the similarity threshold. Unresolved triples
// are returned alongside the graph, never dropped silently.
type UnresolvedTriple struct {
	Triple Triple `json:"triple"`
	Reason string `json:"reason"`
}
