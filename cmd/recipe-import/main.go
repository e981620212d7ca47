package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/larderhq/larder/internal/embedding"
	"github.com/larderhq/larder/internal/llm"
	"github.com/larderhq/larder/internal/nutritiondb"
	"github.com/larderhq/larder/internal/recipepage"
	"github.com/larderhq/larder/pkg/larder"
	"github.com/larderhq/larder/pkg/larder/config"
	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/store/sqlite"
)

// recipe-import fetches a recipe page, extracts its ingredient lines,
// and runs them through the standard resolution pipeline.
func main() {
	var (
		dbPath     = flag.String("db", "", "Database path (required)")
		pageURL    = flag.String("url", "", "Recipe page URL (required)")
		configPath = flag.String("config", "", "Config YAML (optional, defaults apply)")
		session    = flag.String("session", "cli", "Session owning any pending confirmations")
		dryRun     = flag.Bool("dry-run", false, "Extract and print ingredient lines without ingesting")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *pageURL == "" {
		log.Fatal("--url required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(*pageURL)
	if err != nil {
		log.Fatal("Failed to fetch page:", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Failed to fetch page: HTTP %d", resp.StatusCode)
	}

	page, err := recipepage.Extract(resp.Body)
	if err != nil {
		log.Fatal("Failed to extract ingredients:", err)
	}
	log.Printf("Extracted %d ingredient lines from %q", len(page.Ingredients), page.Title)

	if *dryRun {
		for _, line := range page.Ingredients {
			fmt.Println(line)
		}
		return
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

	results := engine.Ingest(ctx, *session, page.Ingredients)

	counts := map[string]int{}
	for _, r := range results {
		counts[string(r.Status)]++
		if r.Reason != "" {
			fmt.Printf("%-22s %s (%s)\n", r.Status, r.Mention.OriginalText, r.Reason)
			continue
		}
		fmt.Printf("%-22s %s\n", r.Status, r.Mention.OriginalText)
	}

	log.Printf("✓ %q: %d auto-accepted, %d seeded, %d need confirmation, %d rejected",
		page.Title, counts["auto_accepted"], counts["seeded"],
		counts["needs_confirmation"], counts["rejected"])
}
