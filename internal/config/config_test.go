package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cache.Backend != "sqlite" {
		t.Errorf("Cache.Backend = %q, want sqlite", cfg.Cache.Backend)
	}
	if cfg.Batch.Parallel != 8 {
		t.Errorf("Batch.Parallel = %d, want 8", cfg.Batch.Parallel)
	}
	if len(cfg.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(cfg.Sources))
	}
	if cfg.Sources[0].Name != "wikipedia" {
		t.Errorf("Sources[0].Name = %q, want wikipedia", cfg.Sources[0].Name)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cache:
  backend: memory
batch:
  parallel: 2
  timeout: 5s
sources:
  - name: wikipedia
    language: de
    resolve:
      disable_search: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Batch.Parallel != 2 {
		t.Errorf("Batch.Parallel = %d, want 2", cfg.Batch.Parallel)
	}
	if cfg.Batch.Timeout != 5*time.Second {
		t.Errorf("Batch.Timeout = %v, want 5s", cfg.Batch.Timeout)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Language != "de" {
		t.Fatalf("Sources = %+v, want single de wikipedia entry", cfg.Sources)
	}
	if !cfg.Sources[0].Resolve.DisableSearch {
		t.Error("Sources[0].Resolve.DisableSearch = false, want true")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("Load() error = nil, want read failure")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("AI_ADAPTER", "ollama")
	t.Setenv("AI_CHAT_EXTRACT_MODEL", "llama3.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", cfg.Cache.Backend)
	}
	if cfg.Extractor.Adapter != "ollama" || cfg.Extractor.Model != "llama3.2" {
		t.Errorf("Extractor = %+v, want ollama/llama3.2", cfg.Extractor)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no sources",
			mutate:  func(c *Config) { c.Sources = nil },
			wantErr: "at least one source",
		},
		{
			name: "unknown source",
			mutate: func(c *Config) {
				c.Sources = []SourceEntry{{Name: "freebase"}}
			},
			wantErr: `unknown source "freebase"`,
		},
		{
			name: "duplicate source",
			mutate: func(c *Config) {
				c.Sources = []SourceEntry{{Name: "wikidata"}, {Name: "wikidata"}}
			},
			wantErr: "configured twice",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Cache = CacheConfig{Backend: "postgres"}
			},
			wantErr: "requires database_url",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Cache.Backend = "redis" },
			wantErr: `unknown cache backend "redis"`,
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Batch.MatchThreshold = 1.5 },
			wantErr: "match_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
