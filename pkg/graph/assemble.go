// Package graph assembles resolved entities and relationship triples into a
// deduplicated node/edge set. Assembly is single-threaded per call: node
// merging and edge resolution have sequential tie-break dependencies on
// insertion order.
package graph

import (
	"fmt"

	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/match"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AssembleParams contains the inputs of one assembly call.
type AssembleParams struct {
	// Entities are the merged resolution results, in mention order.
	Entities []*common.MergedRecord
	// Triples are the relationship statements to resolve into edges.
	Triples []common.Triple
	// Matcher decides node identity and edge endpoint resolution. Nil
	// selects a matcher with the default threshold.
	Matcher *match.Matcher
	// SourceOrder ranks sources when picking a node's display name.
	SourceOrder []string
}

// Assemble builds the graph. Entities whose display names the matcher
// judges identical share one node; triples whose endpoints cannot be
// matched to any node are returned as unresolved, never dropped silently.
// Node IDs are assigned at creation and never reused across calls.
func Assemble(params AssembleParams) (*common.Graph, []common.UnresolvedTriple, error) {
	matcher := params.Matcher
	if matcher == nil {
		matcher = match.NewMatcher(0)
	}

	graphID, err := gonanoid.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate graph id: %w", err)
	}
	graph := &common.Graph{ID: graphID, Nodes: []*common.Node{}, Edges: []common.Edge{}}

	var names []string
	for _, entity := range params.Entities {
		if entity == nil {
			continue
		}
		name := entity.DisplayName(params.SourceOrder)

		if idx, _, ok := matcher.BestMatch(name, names); ok {
			mergeAttributes(graph.Nodes[idx], entity)
			continue
		}

		nodeID, err := gonanoid.New()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate node id: %w", err)
		}
		node := &common.Node{ID: nodeID, DisplayName: name, Attributes: make(map[string]any)}
		mergeAttributes(node, entity)
		graph.Nodes = append(graph.Nodes, node)
		names = append(names, name)
	}

	type edgeKey struct {
		subject, predicate, object string
	}

	var unresolved []common.UnresolvedTriple
	seenEdges := make(map[edgeKey]struct{})
	for _, triple := range params.Triples {
		subject, ok := endpoint(matcher, triple.Subject, names, graph.Nodes)
		if !ok {
			unresolved = append(unresolved, common.UnresolvedTriple{
				Triple: triple,
				Reason: fmt.Sprintf("subject %q matched no node", triple.Subject),
			})
			continue
		}
		object, ok := endpoint(matcher, triple.Object, names, graph.Nodes)
		if !ok {
			unresolved = append(unresolved, common.UnresolvedTriple{
				Triple: triple,
				Reason: fmt.Sprintf("object %q matched no node", triple.Object),
			})
			continue
		}

		key := edgeKey{subject: subject.ID, predicate: triple.Predicate, object: object.ID}
		if _, dup := seenEdges[key]; dup {
			continue
		}
		seenEdges[key] = struct{}{}
		graph.Edges = append(graph.Edges, common.Edge{
			SubjectID: subject.ID,
			Predicate: triple.Predicate,
			ObjectID:  object.ID,
		})
	}

	return graph, unresolved, nil
}

func endpoint(matcher *match.Matcher, name string, names []string, nodes []*common.Node) (*common.Node, bool) {
	idx, _, ok := matcher.BestMatch(name, names)
	if !ok {
		return nil, false
	}
	return nodes[idx], true
}

// mergeAttributes folds one entity's per-source records into the node,
// namespaced by source name so differing schemas never collide.
func mergeAttributes(node *common.Node, entity *common.MergedRecord) {
	for sourceName, record := range entity.Records {
		if record == nil || record.Status != common.StatusFound {
			continue
		}
		if record.SourceURL != "" {
			node.Attributes[sourceName+".url"] = record.SourceURL
		}
		if record.CanonicalTitle != "" {
			node.Attributes[sourceName+".canonical_title"] = record.CanonicalTitle
		}
		for field, value := range record.Fields {
			node.Attributes[sourceName+"."+field] = value
		}
	}
}
