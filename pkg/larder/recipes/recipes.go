// Package recipes applies the embedding-similarity mechanism to whole
// generated recipes before they are persisted, so the recipe book never
// silently accumulates near-identical entries.
package recipes

import (
	"context"
	"strings"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/store"
)

// GeneratedIngredient is one ingredient mention produced by the generator.
type GeneratedIngredient struct {
	Name          string
	QuantityGrams float64
}

// GeneratedRecipe is a recipe as produced by the LLM generator, before
// its ingredients are resolved against the catalog.
type GeneratedRecipe struct {
	Name         string
	Cuisine      string
	Instructions []string
	Ingredients  []GeneratedIngredient
}

// Request describes what the generator should produce.
type Request struct {
	Cuisine     string
	Constraints []string
}

// Generator produces candidate recipes. variance in [0,1] controls how
// adventurous the generation is; retries pass increasing variance to
// escape a duplicate neighborhood.
type Generator interface {
	Generate(ctx context.Context, req Request, variance float64) (GeneratedRecipe, error)
}

// Index is the read access to persisted recipes the deduplicator needs.
// store.Store satisfies it.
type Index interface {
	NearestRecipes(ctx context.Context, vec []float32, k int) ([]store.ScoredRecipe, error)
}

// Deduplicator checks candidate recipes against the persisted set.
type Deduplicator struct {
	index     Index
	embedder  embed.Provider
	threshold float64
	retries   int
}

// NewDeduplicator creates a Deduplicator. threshold is the cosine
// similarity at which a candidate counts as a duplicate; retries bounds
// how many regenerations GenerateUnique attempts before accepting one.
func NewDeduplicator(index Index, embedder embed.Provider, threshold float64, retries int) *Deduplicator {
	if retries < 0 {
		retries = 0
	}
	return &Deduplicator{index: index, embedder: embedder, threshold: threshold, retries: retries}
}

// EmbeddingText is the text a recipe embedding is computed from: name,
// cuisine, and the principal ingredient names. It is independent of the
// per-ingredient item embeddings.
func EmbeddingText(r GeneratedRecipe) string {
	parts := make([]string, 0, 2+len(r.Ingredients))
	parts = append(parts, r.Name)
	if r.Cuisine != "" {
		parts = append(parts, r.Cuisine)
	}
	for _, ing := range r.Ingredients {
		parts = append(parts, ing.Name)
	}
	return strings.Join(parts, " ")
}

// Embed computes a recipe's deduplication embedding.
func (d *Deduplicator) Embed(ctx context.Context, r GeneratedRecipe) ([]float32, error) {
	return d.embedder.Embed(ctx, EmbeddingText(r))
}

// Check reports whether vec duplicates a persisted recipe. A recipe
// compared against itself scores 1.0 and is a duplicate of itself.
func (d *Deduplicator) Check(ctx context.Context, vec []float32) (store.ScoredRecipe, bool, error) {
	nearest, err := d.index.NearestRecipes(ctx, vec, 1)
	if err != nil {
		return store.ScoredRecipe{}, false, err
	}
	if len(nearest) == 0 || nearest[0].Similarity < d.threshold {
		return store.ScoredRecipe{}, false, nil
	}
	return nearest[0], true, nil
}

// Result is the outcome of GenerateUnique.
type Result struct {
	Recipe    GeneratedRecipe
	Embedding []float32
	// Duplicate is true when the retry budget ran out and the recipe was
	// accepted despite duplicating DuplicateOf.
	Duplicate   bool
	DuplicateOf string
	Attempts    int
}

// GenerateUnique generates a recipe, regenerating with higher variance
// while the candidate duplicates a persisted recipe. Retries are
// sequential: each depends on the previous embedding check. After the
// budget is spent the duplicate is accepted rather than retried forever.
func (d *Deduplicator) GenerateUnique(ctx context.Context, gen Generator, req Request) (Result, error) {
	var res Result
	variance := 0.0
	for attempt := 0; ; attempt++ {
		recipe, err := gen.Generate(ctx, req, variance)
		if err != nil {
			return Result{}, err
		}
		vec, err := d.Embed(ctx, recipe)
		if err != nil {
			return Result{}, err
		}

		dup, isDup, err := d.Check(ctx, vec)
		if err != nil {
			return Result{}, err
		}

		res = Result{Recipe: recipe, Embedding: vec, Attempts: attempt + 1}
		if !isDup {
			return res, nil
		}
		res.Duplicate = true
		res.DuplicateOf = dup.Recipe.ID
		if attempt >= d.retries {
			return res, nil
		}
		variance = float64(attempt+1) / float64(d.retries+1)
	}
}
