package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/larderhq/larder/internal/embedding"
	"github.com/larderhq/larder/pkg/larder/config"
	"github.com/larderhq/larder/pkg/larder/ids"
	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/store"
	"github.com/larderhq/larder/pkg/larder/store/sqlite"
)

// larder-bootstrap loads a curated seed catalog into a fresh or existing
// database. Re-running is safe: items whose canonical name already
// exists are merged by alias rather than duplicated.
func main() {
	var (
		dbPath     = flag.String("db", "", "Database path (required)")
		seedPath   = flag.String("seed", "", "Seed catalog YAML (required)")
		configPath = flag.String("config", "", "Config YAML (optional, defaults apply)")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *seedPath == "" {
		log.Fatal("--seed required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
	}

	seed, err := config.LoadSeed(*seedPath)
	if err != nil {
		log.Fatal("Failed to load seed file:", err)
	}
	log.Printf("Loaded %d seed items from %s", len(seed.Items), *seedPath)

	ctx := context.Background()

	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer st.Close()

	embedder := &embedding.Client{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dim,
	}

	created, merged := 0, 0
	for _, si := range seed.Items {
		text := si.CanonicalName
		if len(si.Aliases) > 0 {
			text += " " + strings.Join(si.Aliases, " ")
		}
		vec, err := embedder.Embed(ctx, text)
		if err != nil {
			log.Fatal("Failed to embed seed item:", err)
		}

		item := store.CatalogItem{
			ID:            ids.New(),
			CanonicalName: si.CanonicalName,
			Aliases:       si.Aliases,
			Category:      si.Category,
			Nutrition:     si.Nutrition,
			Embedding:     vec,
			Source:        store.SourceManual,
			CreatedAt:     time.Now(),
		}

		err = st.CreateItem(ctx, item)
		switch {
		case errors.Is(err, internalerr.ErrDuplicate):
			existing, found, lookupErr := st.ItemByCanonicalName(ctx, si.CanonicalName)
			if lookupErr != nil || !found {
				log.Fatal("Failed to look up existing item:", lookupErr)
			}
			if err := st.MergeAliases(ctx, existing.ID, si.Aliases); err != nil {
				log.Fatal("Failed to merge aliases:", err)
			}
			merged++
		case err != nil:
			log.Fatal("Failed to create item:", err)
		default:
			created++
		}
	}

	log.Printf("✓ Bootstrap complete: %d created, %d merged", created, merged)
}
