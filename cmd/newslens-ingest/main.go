package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"newslens/internal/config"
	"newslens/internal/domain"
	"newslens/internal/embedding"
	"newslens/internal/genai"
	"newslens/internal/ingest"
	"newslens/internal/vectorstore"
	"newslens/internal/vectorstore/memory"
	"newslens/internal/vectorstore/qdrant"
	"newslens/internal/vectorstore/sqlite"
)

// Article files are pre-extracted text with a two-line header:
//
//	line 1: source URL
//	line 2: headline
//	rest:   article body
func main() {
	_ = godotenv.Load()

	var cfgPath string
	var jobs int
	var reset bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.IntVar(&jobs, "j", 0, "Max concurrent ingestions (default from config)")
	flag.BoolVar(&reset, "reset", false, "Clear all stored articles before ingesting")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: newslens-ingest [--config=config.yaml] [-j N] article1.txt [article2.txt ...]")
		os.Exit(1)
	}

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
	if jobs <= 0 {
		jobs = cfg.Ingest.Concurrency
	}

	items, err := readItems(inputs)
	if err != nil {
		log.Fatalf("reading articles: %v", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := st.Init(ctx, emb.Dimension()); err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	if reset {
		if err := st.Clear(ctx); err != nil {
			log.Fatalf("store reset failed: %v", err)
		}
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

	svc := ingest.New(gateway, emb, st)
	outcomes := svc.IngestAll(ctx, items, jobs)

	ok := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if domain.IsTransient(o.Err) {
				fail.Printf("✗ %s: %v (transient, rerun to retry)\n", o.Item.URL, o.Err)
			} else {
				fail.Printf("✗ %s: %v\n", o.Item.URL, o.Err)
			}
			continue
		}
		ok.Printf("✓ %s\n", o.Item.URL)
		fmt.Printf("  %s  [%s]\n", o.Record.Headline, strings.Join(o.Record.Topics, ", "))
	}
	fmt.Printf("\n%d ingested, %d failed\n", len(outcomes)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func readItems(paths []string) ([]ingest.Item, error) {
	var items []ingest.Item
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			item, err := parseArticleFile(string(data))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", m, err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func parseArticleFile(content string) (ingest.Item, error) {
	lines := strings.SplitN(content, "\n", 3)
	if len(lines) < 3 {
		return ingest.Item{}, fmt.Errorf("expected URL line, headline line and body")
	}
	return ingest.Item{
		URL:      strings.TrimSpace(lines[0]),
		Headline: strings.TrimSpace(lines[1]),
		RawText:  strings.TrimSpace(lines[2]),
	}, nil
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
