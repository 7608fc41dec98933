package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/source"

	"golang.org/x/sync/errgroup"
)

// ErrNoSources is the only fatal batch failure: nothing to resolve against.
var ErrNoSources = errors.New("resolve: no sources requested")

// BatchOptions tunes one ResolveBatch call.
type BatchOptions struct {
	// Sources restricts the batch to the named sources. Empty selects the
	// whole roster.
	Sources []string `json:"sources,omitempty"`
	// Timeout overrides the client's default batch deadline.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ResolveBatch resolves every mention against every selected source and
// returns a complete mention-to-merged-record mapping. Per-source failures
// are recorded, never fatal; the only error is an empty or unknown source
// selection. The mapping is immutable once returned.
func (c *Client) ResolveBatch(ctx context.Context, mentions []string, opts BatchOptions) (map[string]*common.MergedRecord, error) {
	sources, err := c.selectSources(opts.Sources)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Dedupe by exact string equality; fuzzy merging is the assembler's
	// decision, not the orchestrator's. Mentions that normalize identically
	// share one fetch slot per source, so each normalized key is resolved
	// exactly once per batch and the record fans out to every spelling.
	merged := make(map[string]*common.MergedRecord, len(mentions))
	keys := make([]string, 0, len(mentions))
	spellings := make(map[string][]string, len(mentions))
	for _, mention := range mentions {
		if _, ok := merged[mention]; ok {
			continue
		}
		merged[mention] = &common.MergedRecord{
			Mention: mention,
			Records: make(map[string]*common.ResolutionRecord, len(sources)),
		}
		key := normalizeMention(mention)
		if _, ok := spellings[key]; !ok {
			keys = append(keys, key)
		}
		spellings[key] = append(spellings[key], mention)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.parallel)
	var mu sync.Mutex

	for _, key := range keys {
		for _, src := range sources {
			slots := spellings[key]
			group.Go(func() error {
				// The first spelling seen for the key is the one fetched.
				record := c.resolver.Resolve(groupCtx, src, slots[0], c.configs[src.Name()])
				mu.Lock()
				for _, mention := range slots {
					merged[mention].Records[src.Name()] = record
				}
				mu.Unlock()
				return nil
			})
		}
	}

	// Tasks never fail the group; the mapping is complete once every task
	// has finished or been cancelled.
	_ = group.Wait()
	return merged, nil
}

func (c *Client) selectSources(names []string) ([]source.Source, error) {
	if len(names) == 0 {
		if len(c.sources) == 0 {
			return nil, ErrNoSources
		}
		return c.sources, nil
	}

	byName := make(map[string]source.Source, len(c.sources))
	for _, src := range c.sources {
		byName[src.Name()] = src
	}

	selected := make([]source.Source, 0, len(names))
	for _, name := range names {
		src, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("resolve: unknown source %q", name)
		}
		selected = append(selected, src)
	}
	return selected, nil
}

// normalizeMention collapses whitespace so trivially different spellings of
// the same key share one fetch slot.
func normalizeMention(mention string) string {
	return strings.Join(strings.Fields(mention), " ")
}
