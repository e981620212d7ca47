package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/larderhq/larder/pkg/larder"
	"github.com/larderhq/larder/pkg/larder/config"
	"github.com/larderhq/larder/pkg/larder/store/sqlite"
)

// larder-review lists and settles pending confirmations. A confirmation
// is consumed exactly once, by either --confirm or --skip.
func main() {
	var (
		dbPath     = flag.String("db", "", "Database path (required)")
		configPath = flag.String("config", "", "Config YAML (optional, defaults apply)")
		session    = flag.String("session", "cli", "Session whose confirmations to review")
		confirmID  = flag.String("confirm", "", "Pending confirmation ID to confirm")
		itemID     = flag.String("item", "", "Chosen candidate item ID (with --confirm)")
		skipID     = flag.String("skip", "", "Pending confirmation ID to discard")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *confirmID != "" && *itemID == "" {
		log.Fatal("--confirm requires --item")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config:", err)
		}
	}

	ctx := context.Background()

	st, err := sqlite.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer st.Close()

	// Review never resolves new mentions, so the engine runs without its
	// external collaborators.
	engine := larder.New(larder.Options{
		Store:         st,
		Thresholds:    cfg.Thresholds,
		MaxCandidates: cfg.Limits.MaxCandidates,
	})

	switch {
	case *confirmID != "":
		if err := engine.Confirm(ctx, *confirmID, *itemID); err != nil {
			log.Fatal("Failed to confirm:", err)
		}
		log.Printf("Confirmed %s -> item %s", *confirmID, *itemID)

	case *skipID != "":
		if err := engine.Skip(ctx, *skipID); err != nil {
			log.Fatal("Failed to skip:", err)
		}
		log.Printf("Skipped %s", *skipID)

	default:
		pending, err := engine.Pending(ctx, *session)
		if err != nil {
			log.Fatal("Failed to list pending confirmations:", err)
		}
		if len(pending) == 0 {
			log.Printf("No pending confirmations for session %q", *session)
			return
		}
		for _, p := range pending {
			fmt.Printf("%s  %q (%.0fg)\n", p.ID, p.OriginalText, p.QuantityGrams)
			for _, c := range p.Candidates {
				fmt.Printf("    %s  %-30s %.2f (%s)\n", c.ItemID, c.Name, c.Score, c.Tier)
			}
		}
	}
}
