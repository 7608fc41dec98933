package resolve

import (
	"time"

	"github.com/entlink/entlink/pkg/match"
	"github.com/entlink/entlink/pkg/source"
)

const defaultParallel = 8

// Client is the batch resolution entry point. It owns the source roster
// and the per-source strategy configuration; coalescing state is scoped to
// each batch.
type Client struct {
	resolver *Resolver
	sources  []source.Source
	configs  map[string]SourceConfig
	parallel int
	timeout  time.Duration
}

// NewClientParams contains configuration for creating a Client.
type NewClientParams struct {
	// Sources is the roster of (usually cache-wrapped) adapters, in the
	// order their results should be preferred.
	Sources []source.Source
	// Configs maps source names to their strategy configuration. Missing
	// entries get defaults.
	Configs map[string]SourceConfig
	// Parallel bounds concurrent (mention, source) tasks, 8 by default.
	Parallel int
	// Timeout is the default batch deadline. Zero means no deadline.
	Timeout time.Duration
	// Matcher scores approximate search candidates. Nil selects a matcher
	// with the default threshold.
	Matcher *match.Matcher
}

// NewClient creates a batch resolution client.
func NewClient(params NewClientParams) *Client {
	matcher := params.Matcher
	if matcher == nil {
		matcher = match.NewMatcher(0)
	}
	parallel := params.Parallel
	if parallel <= 0 {
		parallel = defaultParallel
	}
	configs := params.Configs
	if configs == nil {
		configs = make(map[string]SourceConfig)
	}
	return &Client{
		resolver: NewResolver(matcher),
		sources:  params.Sources,
		configs:  configs,
		parallel: parallel,
		timeout:  params.Timeout,
	}
}

// SourceNames returns the roster in preference order.
func (c *Client) SourceNames() []string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return names
}
