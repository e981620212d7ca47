// Package enrich assembles new catalog entries for mentions the matcher
// could not resolve. It queries an external nutrition database, asks an
// LLM to disambiguate, and produces a draft CatalogItem with an enrichment
// confidence. All external calls run under one deadline; on expiry the
// mention is rejected with reason "enrichment_timeout", never retried.
package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/ids"
	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/mention"
	"github.com/larderhq/larder/pkg/larder/store"
)

// maxRecords bounds how many external records the LLM is asked to choose from.
const maxRecords = 3

// Record is one candidate entry from the external nutrition database.
type Record struct {
	Description string
	Nutrition   store.Nutrition
}

// NutritionDB is the external nutrition database collaborator.
type NutritionDB interface {
	Search(ctx context.Context, query string) ([]Record, error)
}

// Selection is the schema-validated output of the disambiguation step.
// RecordIndex points into the record list the LLM was shown.
type Selection struct {
	RecordIndex   int
	CanonicalName string
	Aliases       []string
	Category      string
	Confidence    float64
}

// Disambiguator asks an LLM to pick the best record and name the item.
// Implementations must fail closed: a response with no parseable
// confidence carries Confidence 0.
type Disambiguator interface {
	Disambiguate(ctx context.Context, mentionContext string, records []Record) (Selection, error)
}

// Draft is a catalog entry ready to seed, plus the enrichment confidence
// the gate uses to decide whether it actually gets committed.
type Draft struct {
	Item       store.CatalogItem
	Confidence float64
}

// Resolver builds drafts for unmatched mentions.
type Resolver struct {
	db       NutritionDB
	llm      Disambiguator
	embedder embed.Provider
	timeout  time.Duration
}

// NewResolver creates a Resolver. timeout bounds one whole enrichment
// (database search + disambiguation + embedding).
func NewResolver(db NutritionDB, llm Disambiguator, embedder embed.Provider, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{db: db, llm: llm, embedder: embedder, timeout: timeout}
}

// Enrich produces a draft catalog item for a mention that missed every
// matching tier. Errors are always *internalerr.EnrichmentFailure carrying
// a machine-readable reason.
func (r *Resolver) Enrich(ctx context.Context, men mention.Mention) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := strings.ReplaceAll(men.FoodName, "_", " ")
	records, err := r.db.Search(ctx, query)
	if err != nil {
		return Draft{}, failure("external database", err)
	}
	if len(records) == 0 {
		return Draft{}, &internalerr.EnrichmentFailure{Reason: internalerr.ReasonNoExternalMatch}
	}
	if len(records) > maxRecords {
		records = records[:maxRecords]
	}

	sel, err := r.llm.Disambiguate(ctx, men.Context(), records)
	if err != nil {
		return Draft{}, failure("disambiguation", err)
	}
	if sel.RecordIndex < 0 || sel.RecordIndex >= len(records) {
		return Draft{}, &internalerr.EnrichmentFailure{Reason: internalerr.ReasonLLMMalformed}
	}

	canonical := canonicalToken(sel.CanonicalName)
	if canonical == "" {
		canonical = men.FoodName
	}
	aliases := cleanAliases(sel.Aliases, canonical)
	if men.FoodName != canonical {
		// The raw mention token becomes an alias so the next occurrence
		// hits the alias tier instead of re-enriching.
		aliases = appendUnique(aliases, men.FoodName)
	}

	vec, err := r.embedder.Embed(ctx, embeddingText(canonical, aliases))
	if err != nil {
		return Draft{}, failure("embedding", err)
	}

	item := store.CatalogItem{
		ID:            ids.New(),
		CanonicalName: canonical,
		Aliases:       aliases,
		Category:      sel.Category,
		Nutrition:     records[sel.RecordIndex].Nutrition,
		Embedding:     vec,
		Source:        store.SourceExternalDB,
		CreatedAt:     time.Now(),
	}
	return Draft{Item: item, Confidence: sel.Confidence}, nil
}

// failure wraps an external error, distinguishing deadline expiry from
// other failures.
func failure(stage string, err error) error {
	var ef *internalerr.EnrichmentFailure
	if errors.As(err, &ef) {
		return err
	}
	reason := internalerr.ReasonEnrichmentFailed
	if errors.Is(err, context.DeadlineExceeded) {
		reason = internalerr.ReasonEnrichmentTimeout
	}
	return &internalerr.EnrichmentFailure{Reason: reason, Err: err}
}

// canonicalToken reduces an LLM-supplied name to token form.
func canonicalToken(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

func cleanAliases(aliases []string, canonical string) []string {
	var out []string
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || a == canonical || strings.ReplaceAll(a, " ", "_") == canonical {
			continue
		}
		out = appendUnique(out, a)
	}
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// embeddingText is the text an item's embedding is computed from: the
// canonical name plus all aliases, at creation time.
func embeddingText(canonical string, aliases []string) string {
	parts := append([]string{strings.ReplaceAll(canonical, "_", " ")}, aliases...)
	return strings.Join(parts, " ")
}
