// Package match resolves normalized mentions against the catalog through
// three tiers: exact canonical-name lookup, alias lookup, then embedding
// similarity. The first tier that yields any candidate wins.
package match

import (
	"context"
	"strings"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/mention"
	"github.com/larderhq/larder/pkg/larder/store"
)

// Matching tiers, in strict resolution order.
const (
	TierExact  = "exact"
	TierAlias  = "alias"
	TierVector = "vector"
)

// Index is the read interface over canonical items the matcher needs.
// store.Store satisfies it.
type Index interface {
	ItemByCanonicalName(ctx context.Context, name string) (store.CatalogItem, bool, error)
	ItemByAlias(ctx context.Context, alias string) (store.CatalogItem, bool, error)
	NearestItems(ctx context.Context, vec []float32, k int, floor float64) ([]store.ScoredItem, error)
}

// Candidate is a possible catalog item for a mention. Score is 1.0 for the
// exact and alias tiers and cosine similarity for the vector tier.
type Candidate struct {
	Item  store.CatalogItem
	Tier  string
	Score float64
}

// Matcher runs mentions through the matching tiers.
type Matcher struct {
	index    Index
	embedder embed.Provider
	k        int
	floor    float64
}

// NewMatcher creates a Matcher. k bounds the vector-tier candidate list and
// floor is the minimum cosine similarity a vector candidate must reach.
func NewMatcher(index Index, embedder embed.Provider, k int, floor float64) *Matcher {
	if k <= 0 {
		k = 5
	}
	return &Matcher{index: index, embedder: embedder, k: k, floor: floor}
}

// Resolve returns candidates for a mention, best first. An empty slice
// signals a miss and sends the orchestrator to the enrichment path.
func (m *Matcher) Resolve(ctx context.Context, men mention.Mention) ([]Candidate, error) {
	if item, found, err := m.index.ItemByCanonicalName(ctx, men.FoodName); err != nil {
		return nil, err
	} else if found {
		return []Candidate{{Item: item, Tier: TierExact, Score: 1.0}}, nil
	}

	for _, alias := range aliasForms(men.FoodName) {
		item, found, err := m.index.ItemByAlias(ctx, alias)
		if err != nil {
			return nil, err
		}
		if found {
			return []Candidate{{Item: item, Tier: TierAlias, Score: 1.0}}, nil
		}
	}

	vec, err := m.embedder.Embed(ctx, men.Context())
	if err != nil {
		return nil, err
	}
	scored, err := m.index.NearestItems(ctx, vec, m.k, m.floor)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		candidates = append(candidates, Candidate{Item: s.Item, Tier: TierVector, Score: s.Similarity})
	}
	return candidates, nil
}

// aliasForms returns the spellings under which a food name may be aliased:
// the token form and the space-separated form.
func aliasForms(foodName string) []string {
	spaced := strings.ReplaceAll(foodName, "_", " ")
	if spaced == foodName {
		return []string{foodName}
	}
	return []string{foodName, spaced}
}
