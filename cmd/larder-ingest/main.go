package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/larderhq/larder/internal/embedding"
	"github.com/larderhq/larder/internal/llm"
	"github.com/larderhq/larder/internal/nutritiondb"
	"github.com/larderhq/larder/pkg/larder"
	"github.com/larderhq/larder/pkg/larder/config"
	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/store/sqlite"
)

func main() {
	var (
		dbPath     = flag.String("db", "", "Database path (required)")
		configPath = flag.String("config", "", "Config YAML (optional, defaults apply)")
		session    = flag.String("session", "cli", "Session owning any pending confirmations")
		inputPath  = flag.String("input", "", "File of mentions, one per line (default stdin)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
	}

	var in io.Reader = os.Stdin
	if *inputPath != "" {
		f, err := os.Open(*inputPath)
		if err != nil {
			log.Fatal("Failed to open input:", err)
		}
		defer f.Close()
		in = f
	}

	var raws []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			raws = append(raws, line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal("Failed to read input:", err)
	}
	if len(raws) == 0 {
		log.Fatal("No mentions to ingest")
	}

	ctx := context.Background()

	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer st.Close()

	embedder, err := embed.NewCached(&embedding.Client{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dim,
	}, cfg.Limits.EmbeddingCacheSize)
	if err != nil {
		log.Fatal("Failed to create embedding cache:", err)
	}

	chat := &llm.Client{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}

	engine := larder.New(larder.Options{
		Store:    st,
		Embedder: embedder,
		NutritionDB: &nutritiondb.Client{
			BaseURL: cfg.NutritionDB.BaseURL,
			APIKey:  cfg.NutritionDB.APIKey,
		},
		Disambiguator:     chat,
		Generator:         chat,
		Thresholds:        cfg.Thresholds,
		MaxCandidates:     cfg.Limits.MaxCandidates,
		Parallelism:       cfg.Limits.Parallelism,
		EnrichmentTimeout: time.Duration(cfg.Limits.EnrichmentTimeout),
		RecipeRetries:     cfg.Limits.RecipeRetries,
	})

	log.Printf("Ingesting %d mentions...", len(raws))
	results := engine.Ingest(ctx, *session, raws)

	counts := map[string]int{}
	for _, r := range results {
		counts[string(r.Status)]++
		switch {
		case r.Reason != "":
			fmt.Printf("%-22s %s (%s)\n", r.Status, r.Mention.OriginalText, r.Reason)
		case len(r.Candidates) > 0:
			fmt.Printf("%-22s %s -> %d candidates, review with larder-review (id %s)\n",
				r.Status, r.Mention.OriginalText, len(r.Candidates), r.ID)
		default:
			fmt.Printf("%-22s %s -> item %s (%.2f via %s)\n",
				r.Status, r.Mention.OriginalText, r.ItemID, r.Confidence, r.Tier)
		}
	}

	log.Printf("Done: %d auto-accepted, %d seeded, %d need confirmation, %d rejected",
		counts["auto_accepted"], counts["seeded"], counts["needs_confirmation"], counts["rejected"])
}
