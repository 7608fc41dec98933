// Package extract defines the client contract for the external
// text-understanding collaborator that turns free text into entity mentions
// and relationship triples. The NLP itself lives behind the model API; this
// package only transports prompts and parses structured responses.
package extract

import (
	"context"

	"github.com/entlink/entlink/pkg/common"
)

// Extraction is the structured output of one extraction call.
type Extraction struct {
	// Mentions are the entity names found in the text, in appearance order.
	Mentions []string `json:"mentions" jsonschema_description:"Entity names found in the text"`
	// Triples are subject-predicate-object statements between mentions.
	Triples []common.Triple `json:"triples" jsonschema_description:"Relationships between the mentioned entities"`
}

// Extractor is implemented by each model backend.
type Extractor interface {
	// Extract runs the model over text and returns mentions and triples.
	Extract(ctx context.Context, text string) (*Extraction, error)
}

// Prompt is the instruction sent ahead of the caller's text. The response
// schema is enforced separately per backend.
const Prompt = `Extract every named entity and every relationship between them from the text below.
Return entity names exactly as they appear. For relationships, use short verb phrases as predicates
and make sure subject and object both appear in the mentions list.

Text:
`
