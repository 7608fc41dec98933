// Package neo4j mirrors assembled graphs into a Neo4j database for
// downstream exploration. Nodes and edges are MERGEd by their assembly IDs,
// so re-exporting the same graph is idempotent.
package neo4j

import (
	"context"
	"fmt"

	"github.com/entlink/entlink/pkg/common"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Writer exports graphs over a Neo4j driver connection.
type Writer struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewWriterParams contains configuration for creating a Writer.
type NewWriterParams struct {
	// URI is the connection URI, e.g. "neo4j://localhost:7687".
	URI string
	// Username and Password authenticate against the server.
	Username string
	Password string
	// Database is the target database name, "neo4j" by default.
	Database string
}

// NewWriter connects to the server and verifies connectivity.
func NewWriter(ctx context.Context, params NewWriterParams) (*Writer, error) {
	driver, err := neo4j.NewDriverWithContext(params.URI, neo4j.BasicAuth(params.Username, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach neo4j: %w", err)
	}

	dbName := params.Database
	if dbName == "" {
		dbName = "neo4j"
	}
	return &Writer{driver: driver, dbName: dbName}, nil
}

// WriteGraph mirrors every node and edge of the graph. Edge predicates are
// stored as a relationship property rather than a dynamic type, which keeps
// the export to a single parameterized query per element.
func (w *Writer) WriteGraph(ctx context.Context, graph *common.Graph) error {
	for _, node := range graph.Nodes {
		_, err := neo4j.ExecuteQuery(ctx, w.driver,
			`MERGE (n:Entity {id: $id})
			 SET n.display_name = $display_name, n.graph_id = $graph_id, n += $attributes`,
			map[string]any{
				"id":           node.ID,
				"display_name": node.DisplayName,
				"graph_id":     graph.ID,
				"attributes":   flattenAttributes(node.Attributes),
			},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(w.dbName),
		)
		if err != nil {
			return fmt.Errorf("failed to write node %s: %w", node.ID, err)
		}
	}

	for _, edge := range graph.Edges {
		_, err := neo4j.ExecuteQuery(ctx, w.driver,
			`MATCH (s:Entity {id: $subject_id}), (o:Entity {id: $object_id})
			 MERGE (s)-[r:RELATES_TO {predicate: $predicate}]->(o)
			 SET r.graph_id = $graph_id`,
			map[string]any{
				"subject_id": edge.SubjectID,
				"object_id":  edge.ObjectID,
				"predicate":  edge.Predicate,
				"graph_id":   graph.ID,
			},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(w.dbName),
		)
		if err != nil {
			return fmt.Errorf("failed to write edge %s-[%s]->%s: %w", edge.SubjectID, edge.Predicate, edge.ObjectID, err)
		}
	}

	return nil
}

// Close releases the underlying driver.
func (w *Writer) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

// flattenAttributes keeps only property values Neo4j can store directly;
// nested structures are rendered as strings.
func flattenAttributes(attributes map[string]any) map[string]any {
	flat := make(map[string]any, len(attributes))
	for key, value := range attributes {
		switch value.(type) {
		case string, bool, int, int64, float64:
			flat[key] = value
		default:
			flat[key] = fmt.Sprintf("%v", value)
		}
	}
	return flat
}
