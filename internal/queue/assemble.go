package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entlink/entlink/internal/storage"
	"github.com/entlink/entlink/pkg/common"
	neo4jexport "github.com/entlink/entlink/pkg/export/neo4j"
	"github.com/entlink/entlink/pkg/graph"
	"github.com/entlink/entlink/pkg/logger"
	"github.com/entlink/entlink/pkg/match"
	"github.com/entlink/entlink/pkg/resolve"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// QueueAssembleMsg is the payload of an assembly job. Mentions are resolved
// against the source roster, triples are attached to the resulting nodes and
// the finished graph is uploaded under the job ID.
type QueueAssembleMsg struct {
	Message  string          `json:"message"`
	JobID    string          `json:"job_id"`
	Mentions []string        `json:"mentions"`
	Triples  []common.Triple `json:"triples"`
	// Sources restricts the roster for this job; empty means all sources.
	Sources []string `json:"sources,omitempty"`
}

// ProcessAssembleMessage runs one assembly job end to end: batch resolution,
// graph assembly, artifact upload and the optional Neo4j mirror. The
// exporter may be nil when no Neo4j target is configured.
func ProcessAssembleMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	exporter *neo4jexport.Writer,
	client *resolve.Client,
	matcher *match.Matcher,
	msg string,
) error {
	data := new(QueueAssembleMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to unmarshal assemble message: %w", err)
	}
	if len(data.Mentions) == 0 {
		logger.Warn("[Queue] Assemble job without mentions, skipping", "job_id", data.JobID)
		return nil
	}

	merged, err := client.ResolveBatch(ctx, data.Mentions, resolve.BatchOptions{Sources: data.Sources})
	if err != nil {
		return fmt.Errorf("failed to resolve mentions for job %s: %w", data.JobID, err)
	}

	// Preserve mention order; the assembler's node merging tie-breaks on it.
	entities := make([]*common.MergedRecord, 0, len(data.Mentions))
	seen := make(map[string]struct{}, len(data.Mentions))
	for _, mention := range data.Mentions {
		if _, dup := seen[mention]; dup {
			continue
		}
		seen[mention] = struct{}{}
		if record, ok := merged[mention]; ok {
			entities = append(entities, record)
		}
	}

	assembled, unresolved, err := graph.Assemble(graph.AssembleParams{
		Entities:    entities,
		Triples:     data.Triples,
		Matcher:     matcher,
		SourceOrder: client.SourceNames(),
	})
	if err != nil {
		return fmt.Errorf("failed to assemble graph for job %s: %w", data.JobID, err)
	}

	// Key the artifact by the job ID so callers can fetch it later.
	if data.JobID != "" {
		assembled.ID = data.JobID
	}

	key, err := storage.PutGraph(ctx, s3Client, assembled, unresolved)
	if err != nil {
		return fmt.Errorf("failed to store graph for job %s: %w", data.JobID, err)
	}

	if exporter != nil {
		if err := exporter.WriteGraph(ctx, assembled); err != nil {
			return fmt.Errorf("failed to mirror graph %s to neo4j: %w", assembled.ID, err)
		}
	}

	logger.Info("[Queue] Assembled graph",
		"job_id", data.JobID,
		"graph_id", assembled.ID,
		"nodes", len(assembled.Nodes),
		"edges", len(assembled.Edges),
		"unresolved", len(unresolved),
		"key", key,
	)
	return nil
}
