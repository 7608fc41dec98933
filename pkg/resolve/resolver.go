// Package resolve implements the per-source fallback resolution state
// machine and the batch orchestrator on top of it. Each (mention, source)
// pair walks a fixed strategy sequence until one strategy yields a usable
// record; the full walk is recorded in the record's fallback trace.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/entlink/entlink/internal/util"
	"github.com/entlink/entlink/pkg/common"
	"github.com/entlink/entlink/pkg/logger"
	"github.com/entlink/entlink/pkg/match"
	"github.com/entlink/entlink/pkg/source"
)

const (
	defaultSearchFloor = 0.60
	defaultSearchLimit = 5
	defaultMaxAttempts = 3
)

// SourceConfig carries the per-source strategy flags. Flags are validated
// once per batch, never re-read mid-flight.
type SourceConfig struct {
	// DisableSynonyms skips the alias strategy even when the source
	// supports it.
	DisableSynonyms bool `yaml:"disable_synonyms"`
	// DisableSearch skips the approximate search strategy.
	DisableSearch bool `yaml:"disable_search"`
	// FallbackLanguages lists language editions tried by the
	// cross-language strategy, in order. Empty skips the strategy.
	FallbackLanguages []string `yaml:"fallback_languages"`
	// PivotLanguage is the language resolved entries are linked back to,
	// "en" by default.
	PivotLanguage string `yaml:"pivot_language"`
	// SearchFloor is the minimum similarity for accepting a search hit,
	// 0.60 by default.
	SearchFloor float64 `yaml:"search_floor"`
	// SearchLimit caps search candidates per query, 5 by default.
	SearchLimit int `yaml:"search_limit"`
	// MaxAttempts bounds transient retries per strategy, 3 by default.
	MaxAttempts int `yaml:"max_attempts"`
}

func (c SourceConfig) withDefaults() SourceConfig {
	if c.PivotLanguage == "" {
		c.PivotLanguage = "en"
	}
	if c.SearchFloor <= 0 {
		c.SearchFloor = defaultSearchFloor
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = defaultSearchLimit
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}

// Resolver runs the fallback state machine. It holds no per-call state and
// is safe for concurrent use across batch tasks.
type Resolver struct {
	matcher *match.Matcher
}

// NewResolver creates a Resolver using the given matcher for search
// candidate scoring.
func NewResolver(matcher *match.Matcher) *Resolver {
	return &Resolver{matcher: matcher}
}

// Resolve walks the strategy sequence for mention against src and always
// returns a record; failures surface as status=error with the last failure
// reason, never as a Go error.
func (r *Resolver) Resolve(ctx context.Context, src source.Source, mention string, cfg SourceConfig) *common.ResolutionRecord {
	w := &walk{
		matcher: r.matcher,
		src:     src,
		mention: mention,
		cfg:     cfg.withDefaults(),
	}
	record := &common.ResolutionRecord{Source: src.Name()}
	var lastErr error

	for _, strategy := range common.Strategies {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			record.FallbackTrace = append(record.FallbackTrace, common.TraceStep{
				Strategy: strategy,
				Outcome:  common.OutcomeError,
				Detail:   "cancelled before attempt",
			})
			continue
		}

		page, step, err := w.run(ctx, strategy)
		record.FallbackTrace = append(record.FallbackTrace, step)

		if err != nil {
			lastErr = err
			continue
		}
		if page == nil {
			continue
		}

		record.Status = common.StatusFound
		record.CanonicalTitle = page.Title
		record.SourceURL = page.URL
		record.Extract = page.Extract
		record.Fields = page.Fields
		annotate(record, mention, strategy, page)
		return record
	}

	record.Status = common.StatusError
	if lastErr != nil {
		record.ErrorDetail = lastErr.Error()
	} else {
		record.ErrorDetail = fmt.Sprintf("%q not found in %s", mention, src.Name())
	}
	logger.Debug("resolution exhausted", "source", src.Name(), "mention", mention, "detail", record.ErrorDetail)
	return record
}

// walk is the per-call state of one strategy sequence. pending carries a
// page that resolved through a source-side redirect from the exact state to
// the redirect state, so it is claimed without a second fetch.
type walk struct {
	matcher *match.Matcher
	src     source.Source
	mention string
	cfg     SourceConfig
	pending *source.Page
}

// run executes one strategy. It returns the resolved page on a hit, a nil
// page with a nil error on a clean miss or skip, and an error for failures
// worth surfacing as the record's error detail.
func (w *walk) run(ctx context.Context, strategy common.Strategy) (*source.Page, common.TraceStep, error) {
	step := common.TraceStep{Strategy: strategy}

	switch strategy {
	case common.StrategyExact:
		page, err := fetchPage(ctx, w.cfg, func(ctx context.Context) (*source.Page, error) {
			return w.src.Lookup(ctx, w.mention)
		})
		switch {
		case err != nil:
			return nil, classify(step, err), strategyErr(err)
		case page.RedirectedFrom != "":
			step.Outcome = common.OutcomeMiss
			step.Detail = fmt.Sprintf("redirected to %q", page.Title)
			w.pending = page
			return nil, step, nil
		default:
			step.Outcome = common.OutcomeHit
			return page, step, nil
		}

	case common.StrategyRedirect:
		if w.pending != nil {
			page := w.pending
			w.pending = nil
			step.Outcome = common.OutcomeHit
			step.Detail = fmt.Sprintf("followed redirect from %q", page.RedirectedFrom)
			return page, step, nil
		}
		step.Outcome = common.OutcomeMiss
		step.Detail = "no redirect reported"
		return nil, step, nil

	case common.StrategySynonym:
		if w.cfg.DisableSynonyms {
			step.Outcome = common.OutcomeSkipped
			step.Detail = "disabled by configuration"
			return nil, step, nil
		}
		page, err := fetchPage(ctx, w.cfg, func(ctx context.Context) (*source.Page, error) {
			return w.src.LookupAlias(ctx, w.mention)
		})
		if err != nil {
			return nil, classify(step, err), strategyErr(err)
		}
		step.Outcome = common.OutcomeHit
		return page, step, nil

	case common.StrategyOpensearch:
		if w.cfg.DisableSearch {
			step.Outcome = common.OutcomeSkipped
			step.Detail = "disabled by configuration"
			return nil, step, nil
		}
		return w.runSearch(ctx, step)

	case common.StrategyLanguage:
		if len(w.cfg.FallbackLanguages) == 0 {
			step.Outcome = common.OutcomeSkipped
			step.Detail = "no fallback languages configured"
			return nil, step, nil
		}
		return w.runLanguages(ctx, step)
	}

	step.Outcome = common.OutcomeSkipped
	return nil, step, nil
}

// runSearch issues the approximate search and promotes the best candidate
// above the similarity floor to a full lookup.
func (w *walk) runSearch(ctx context.Context, step common.TraceStep) (*source.Page, common.TraceStep, error) {
	hits, err := util.RetryWhileWithContext(ctx, w.cfg.MaxAttempts, source.IsTransient, func(ctx context.Context) ([]source.Hit, error) {
		return w.src.Search(ctx, w.mention, w.cfg.SearchLimit)
	})
	if err != nil {
		return nil, classify(step, err), strategyErr(err)
	}

	bestIdx, bestScore := -1, 0.0
	for i, hit := range hits {
		score := w.matcher.Score(w.mention, hit.Title)
		if score < w.cfg.SearchFloor {
			continue
		}
		if bestIdx < 0 || score > bestScore || (score == bestScore && len(hit.Title) < len(hits[bestIdx].Title)) {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx < 0 {
		step.Outcome = common.OutcomeMiss
		step.Detail = fmt.Sprintf("no candidate above floor %.2f among %d hits", w.cfg.SearchFloor, len(hits))
		return nil, step, nil
	}

	matched := hits[bestIdx].Title
	page, err := fetchPage(ctx, w.cfg, func(ctx context.Context) (*source.Page, error) {
		return w.src.Lookup(ctx, matched)
	})
	if err != nil {
		step.Detail = fmt.Sprintf("candidate %q did not resolve", matched)
		return nil, classify(step, err), strategyErr(err)
	}

	step.Outcome = common.OutcomeHit
	step.Detail = fmt.Sprintf("matched %q with score %.2f", matched, bestScore)
	page.Fields = ensureFields(page.Fields)
	page.Fields["search_match"] = matched
	return page, step, nil
}

// runLanguages tries the configured language editions in order.
func (w *walk) runLanguages(ctx context.Context, step common.TraceStep) (*source.Page, common.TraceStep, error) {
	var lastErr error
	for _, lang := range w.cfg.FallbackLanguages {
		page, err := fetchPage(ctx, w.cfg, func(ctx context.Context) (*source.Page, error) {
			return w.src.LookupViaLanguage(ctx, w.mention, lang, w.cfg.PivotLanguage)
		})
		if err != nil {
			if errors.Is(err, source.ErrUnsupported) {
				step.Outcome = common.OutcomeSkipped
				step.Detail = "source has no language editions"
				return nil, step, nil
			}
			if !errors.Is(err, source.ErrNotFound) {
				lastErr = err
			}
			continue
		}
		step.Outcome = common.OutcomeHit
		step.Detail = fmt.Sprintf("resolved via %q edition", lang)
		return page, step, nil
	}

	if lastErr != nil {
		return nil, classify(step, lastErr), lastErr
	}
	step.Outcome = common.OutcomeMiss
	step.Detail = "not found in any configured language"
	return nil, step, nil
}

// annotate sets the single fallback annotation the winning strategy earns.
func annotate(record *common.ResolutionRecord, mention string, strategy common.Strategy, page *source.Page) {
	switch strategy {
	case common.StrategyRedirect:
		record.RedirectFrom = page.RedirectedFrom
	case common.StrategySynonym:
		record.SynonymMatch = mention
		if alias, ok := page.Fields["matched_alias"].(string); ok && alias != "" {
			record.SynonymMatch = alias
		}
	case common.StrategyOpensearch:
		record.OpensearchMatch = page.Title
		if matched, ok := page.Fields["search_match"].(string); ok && matched != "" {
			record.OpensearchMatch = matched
		}
	case common.StrategyLanguage:
		record.EnglishTranslation = page.Title
		if translated, ok := page.Fields["translated_title"].(string); ok && translated != "" {
			record.EnglishTranslation = translated
		}
	}
}

func fetchPage(ctx context.Context, cfg SourceConfig, fetch func(context.Context) (*source.Page, error)) (*source.Page, error) {
	return util.RetryWhileWithContext(ctx, cfg.MaxAttempts, source.IsTransient, fetch)
}

// classify fills the trace step outcome for a failed strategy call.
func classify(step common.TraceStep, err error) common.TraceStep {
	switch {
	case errors.Is(err, source.ErrUnsupported):
		step.Outcome = common.OutcomeSkipped
		step.Detail = "not supported by source"
	case errors.Is(err, source.ErrNotFound):
		step.Outcome = common.OutcomeMiss
	default:
		step.Outcome = common.OutcomeError
		step.Detail = err.Error()
	}
	return step
}

// strategyErr keeps only failures that should become the record's error
// detail; definitive misses and unsupported strategies fall through clean.
func strategyErr(err error) error {
	if errors.Is(err, source.ErrNotFound) || errors.Is(err, source.ErrUnsupported) {
		return nil
	}
	return err
}

func ensureFields(fields map[string]any) map[string]any {
	if fields == nil {
		return make(map[string]any)
	}
	return fields
}
