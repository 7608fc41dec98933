package config

import (
	"context"
	"fmt"

	"github.com/entlink/entlink/pkg/cache"
	cachepgx "github.com/entlink/entlink/pkg/cache/pgx"
	cachesqlite "github.com/entlink/entlink/pkg/cache/sqlite"
	"github.com/entlink/entlink/pkg/extract"
	extractollama "github.com/entlink/entlink/pkg/extract/ollama"
	extractopenai "github.com/entlink/entlink/pkg/extract/openai"
	"github.com/entlink/entlink/pkg/match"
	"github.com/entlink/entlink/pkg/resolve"
	"github.com/entlink/entlink/pkg/source"
	"github.com/entlink/entlink/pkg/source/dbpedia"
	"github.com/entlink/entlink/pkg/source/wikidata"
	"github.com/entlink/entlink/pkg/source/wikipedia"
)

// OpenCache creates the configured cache backend.
func OpenCache(ctx context.Context, cfg CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "sqlite":
		return cachesqlite.NewSQLiteStore(cfg.Path)
	case "postgres":
		return cachepgx.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("config: unknown cache backend %q", cfg.Backend)
	}
}

// BuildSources constructs the configured adapters, each wrapped with the
// cache store, plus the per-source strategy configurations keyed by name.
func BuildSources(cfg Config, store cache.Store) ([]source.Source, map[string]resolve.SourceConfig, error) {
	httpClient := source.NewHTTPClient(source.HTTPClientParams{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.HTTP.UserAgent,
	})

	sources := make([]source.Source, 0, len(cfg.Sources))
	configs := make(map[string]resolve.SourceConfig, len(cfg.Sources))
	for _, entry := range cfg.Sources {
		var adapter source.Source
		switch entry.Name {
		case "wikipedia":
			adapter = wikipedia.NewWikipedia(wikipedia.WikipediaParams{
				Client:   httpClient,
				Language: entry.Language,
			})
		case "wikidata":
			adapter = wikidata.NewWikidata(wikidata.WikidataParams{
				Client:     httpClient,
				Language:   entry.Language,
				SkipSPARQL: entry.SkipSlowQueries,
			})
		case "dbpedia":
			adapter = dbpedia.NewDBpedia(dbpedia.DBpediaParams{
				Client:   httpClient,
				Language: entry.Language,
			})
		default:
			return nil, nil, fmt.Errorf("config: unknown source %q", entry.Name)
		}

		sources = append(sources, source.NewCachedSource(source.CachedSourceParams{
			Inner:      adapter,
			Store:      store,
			MaxAge:     entry.MaxAge,
			AllowStale: entry.AllowStale,
		}))
		configs[entry.Name] = entry.Resolve
	}
	return sources, configs, nil
}

// BuildClient opens the cache, builds the source roster and assembles the
// batch client. The returned store must be closed by the caller on shutdown.
func BuildClient(ctx context.Context, cfg Config) (*resolve.Client, cache.Store, error) {
	store, err := OpenCache(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	sources, configs, err := BuildSources(cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	client := resolve.NewClient(resolve.NewClientParams{
		Sources:  sources,
		Configs:  configs,
		Parallel: cfg.Batch.Parallel,
		Timeout:  cfg.Batch.Timeout,
		Matcher:  match.NewMatcher(cfg.Batch.MatchThreshold),
	})
	return client, store, nil
}

// BuildExtractor constructs the configured text-understanding client.
func BuildExtractor(cfg ExtractConfig) (extract.Extractor, error) {
	switch cfg.Adapter {
	case "openai", "":
		return extractopenai.NewClient(extractopenai.NewClientParams{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		}), nil
	case "ollama":
		return extractollama.NewClient(extractollama.NewClientParams{
			Model:                 cfg.Model,
			BaseURL:               cfg.BaseURL,
			APIKey:                cfg.APIKey,
			MaxConcurrentRequests: cfg.MaxParallel,
		})
	default:
		return nil, fmt.Errorf("config: unknown extractor adapter %q", cfg.Adapter)
	}
}
