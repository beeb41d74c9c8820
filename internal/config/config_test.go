package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Type != "sqlite" {
		t.Errorf("expected sqlite default store, got %q", cfg.Store.Type)
	}
	if cfg.Embedder.OpenAI == nil || cfg.Embedder.OpenAI.Dimension != 1536 {
		t.Errorf("expected default embedder dimension 1536, got %+v", cfg.Embedder.OpenAI)
	}
	if cfg.Search.TopK != 10 {
		t.Errorf("expected default top_k 10, got %d", cfg.Search.TopK)
	}
	if cfg.Ingest.Concurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", cfg.Ingest.Concurrency)
	}
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
    collection: news
embedder:
  type: openai
  openai:
    dimension: 768
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Type != "qdrant" || cfg.Store.Qdrant.Collection != "news" {
		t.Errorf("store not parsed: %+v", cfg.Store)
	}
	if cfg.Embedder.OpenAI.Dimension != 768 {
		t.Errorf("dimension not parsed: %d", cfg.Embedder.OpenAI.Dimension)
	}
	if cfg.Embedder.OpenAI.Model != "text-embedding-3-small" {
		t.Errorf("model default missing: %q", cfg.Embedder.OpenAI.Model)
	}
	if cfg.GenAI.Model != "gpt-4o-mini" {
		t.Errorf("genai default missing: %q", cfg.GenAI.Model)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Search.MinScore = 0.25
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Search.MinScore != 0.25 {
		t.Errorf("min_score lost in round trip: %f", got.Search.MinScore)
	}
}
