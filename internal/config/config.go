// Package config loads the service configuration from a YAML file with
// environment overrides, and wires the configured cache, sources and batch
// client together.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/entlink/entlink/internal/util"
	"github.com/entlink/entlink/pkg/logger"
	"github.com/entlink/entlink/pkg/resolve"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "ENTLINK_CONFIG"

// Config holds every setting the server and worker share.
type Config struct {
	Cache     CacheConfig   `yaml:"cache"`
	HTTP      HTTPConfig    `yaml:"http"`
	Batch     BatchConfig   `yaml:"batch"`
	Sources   []SourceEntry `yaml:"sources"`
	Extractor ExtractConfig `yaml:"extractor"`
	Export    ExportConfig  `yaml:"export"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is one of "memory", "sqlite" or "postgres".
	Backend string `yaml:"backend"`
	// Path is the SQLite database file for the sqlite backend.
	Path string `yaml:"path"`
	// DatabaseURL is the connection string for the postgres backend.
	DatabaseURL string `yaml:"database_url"`
}

// HTTPConfig tunes the outbound adapter HTTP client.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// BatchConfig tunes the batch orchestrator.
type BatchConfig struct {
	Parallel       int           `yaml:"parallel"`
	Timeout        time.Duration `yaml:"timeout"`
	MatchThreshold float64       `yaml:"match_threshold"`
}

// SourceEntry configures one knowledge source in the roster.
type SourceEntry struct {
	// Name is one of "wikipedia", "wikidata" or "dbpedia".
	Name string `yaml:"name"`
	// Language is the home label language, "en" by default.
	Language string `yaml:"language"`
	// SkipSlowQueries disables the slow authoritative structured query
	// where the source offers a fast indexed path as well.
	SkipSlowQueries bool `yaml:"skip_slow_queries"`
	// MaxAge bounds cache entry freshness for this source; zero means
	// entries never expire.
	MaxAge time.Duration `yaml:"max_age"`
	// AllowStale serves an expired cache entry when the live fetch fails.
	AllowStale bool `yaml:"allow_stale"`
	// Resolve carries the fallback strategy flags.
	Resolve resolve.SourceConfig `yaml:"resolve"`
}

// ExtractConfig configures the text-understanding collaborator.
type ExtractConfig struct {
	// Adapter is "openai" (default) or "ollama".
	Adapter     string `yaml:"adapter"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	MaxParallel int64  `yaml:"max_parallel"`
}

// ExportConfig configures optional graph export targets.
type ExportConfig struct {
	Neo4j Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig configures the Neo4j mirror. Export is skipped unless
// Enabled is set.
type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

func defaultConfig() Config {
	return Config{
		Cache: CacheConfig{Backend: "sqlite", Path: "entlink_cache.db"},
		HTTP:  HTTPConfig{Timeout: 15 * time.Second},
		Batch: BatchConfig{Parallel: 8, Timeout: 60 * time.Second},
		Sources: []SourceEntry{
			{Name: "wikipedia", Resolve: resolve.SourceConfig{FallbackLanguages: []string{"de", "fr", "es"}}},
			{Name: "wikidata"},
			{Name: "dbpedia"},
		},
		Extractor: ExtractConfig{Adapter: "openai"},
	}
}

// Load reads the YAML file named by ENTLINK_CONFIG (when present), applies
// environment overrides and validates the result.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg = merge(cfg, fileCfg)
		logger.Debug("loaded config file", "path", path)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(base, override Config) Config {
	if override.Cache.Backend != "" {
		base.Cache = override.Cache
	}
	if override.HTTP.Timeout > 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}
	if override.Batch.Parallel > 0 {
		base.Batch.Parallel = override.Batch.Parallel
	}
	if override.Batch.Timeout > 0 {
		base.Batch.Timeout = override.Batch.Timeout
	}
	if override.Batch.MatchThreshold > 0 {
		base.Batch.MatchThreshold = override.Batch.MatchThreshold
	}
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}
	if override.Extractor.Adapter != "" || override.Extractor.Model != "" {
		base.Extractor = override.Extractor
	}
	if override.Export.Neo4j.Enabled {
		base.Export = override.Export
	}
	return base
}

func (c *Config) applyEnvOverrides() {
	if v := util.GetEnv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := util.GetEnv("CACHE_PATH"); v != "" {
		c.Cache.Path = v
	}
	if v := util.GetEnv("DATABASE_URL"); v != "" {
		c.Cache.DatabaseURL = v
	}
	if v := util.GetEnv("AI_ADAPTER"); v != "" {
		c.Extractor.Adapter = v
	}
	if v := util.GetEnv("AI_CHAT_EXTRACT_MODEL"); v != "" {
		c.Extractor.Model = v
	}
	if v := util.GetEnv("AI_CHAT_URL"); v != "" {
		c.Extractor.BaseURL = v
	}
	if v := util.GetEnv("AI_CHAT_KEY"); v != "" {
		c.Extractor.APIKey = v
	}
	if v := util.GetEnv("NEO4J_URI"); v != "" {
		c.Export.Neo4j.Enabled = true
		c.Export.Neo4j.URI = v
		c.Export.Neo4j.Username = util.GetEnv("NEO4J_USER")
		c.Export.Neo4j.Password = util.GetEnv("NEO4J_PASSWORD")
	}
}

// Validate checks the parts that would otherwise fail deep inside a batch.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source must be configured")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, entry := range c.Sources {
		switch entry.Name {
		case "wikipedia", "wikidata", "dbpedia":
		default:
			return fmt.Errorf("config: unknown source %q", entry.Name)
		}
		if _, dup := seen[entry.Name]; dup {
			return fmt.Errorf("config: source %q configured twice", entry.Name)
		}
		seen[entry.Name] = struct{}{}
	}

	switch c.Cache.Backend {
	case "memory", "sqlite":
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("config: postgres cache backend requires database_url")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}

	if c.Batch.MatchThreshold < 0 || c.Batch.MatchThreshold > 1 {
		return fmt.Errorf("config: match_threshold must be within [0, 1]")
	}
	return nil
}
