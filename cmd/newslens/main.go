package main

import (
	"context"
	"flag"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"newslens/internal/config"
	"newslens/internal/domain"
	"newslens/internal/embedding"
	"newslens/internal/genai"
	"newslens/internal/search"
	"newslens/internal/tui"
	"newslens/internal/vectorstore"
	"newslens/internal/vectorstore/memory"
	"newslens/internal/vectorstore/qdrant"
	"newslens/internal/vectorstore/sqlite"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/newslens/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	st, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()
	if err := st.Init(context.Background(), emb.Dimension()); err != nil {
		log.Fatalf("store init failed: %v", err)
	}

	gateway, err := genai.NewClient(genai.Config{
		BaseURL:       cfg.GenAI.BaseURL,
		APIKeyEnv:     cfg.GenAI.APIKeyEnv,
		Model:         cfg.GenAI.Model,
		Style:         cfg.GenAI.Style,
		Timeout:       time.Duration(cfg.GenAI.TimeoutSecs) * time.Second,
		MaxInputChars: cfg.GenAI.MaxInputChars,
	})
	if err != nil {
		log.Fatalf("genai gateway init failed: %v", err)
	}

	var expander domain.QueryExpander
	var suggest tui.SuggestPort
	if cfg.Search.Expand {
		expander = gateway
		suggest = gateway
	}
	searcher := search.New(expander, emb, st, cfg.Search.MinScore)

	m := tui.New(searcher, st, suggest, cfg.Search.TopK)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai", "":
		o := cfg.Embedder.OpenAI
		return embedding.NewClient(embedding.Config{
			BaseURL:   o.BaseURL,
			APIKeyEnv: o.APIKeyEnv,
			Model:     o.Model,
			Dimension: o.Dimension,
			Timeout:   time.Duration(o.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
		return nil, nil
	}
}

func buildStore(cfg *config.AppConfig) (vectorstore.Storage, error) {
	switch cfg.Store.Type {
	case "memory":
		return memory.NewStore(), nil
	case "sqlite", "":
		path := cfg.Store.SQLite.Path
		if path == "" {
			var err error
			path, err = config.DefaultStorePath()
			if err != nil {
				return nil, err
			}
		}
		return sqlite.Open(path)
	case "qdrant":
		if cfg.Store.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		return qdrant.NewStore(qdrant.Config{
			URL:        cfg.Store.Qdrant.URL,
			APIKey:     cfg.Store.Qdrant.APIKey,
			Collection: cfg.Store.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Store.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		log.Fatalf("unknown store: %s", cfg.Store.Type)
		return nil, nil
	}
}
