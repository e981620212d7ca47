package match

import (
	"context"
	"testing"

	"github.com/larderhq/larder/pkg/larder/mention"
	"github.com/larderhq/larder/pkg/larder/store"
	"github.com/larderhq/larder/pkg/larder/store/memstore"
)

// fixedEmbedder returns canned vectors per input text.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fixedEmbedder) Dim() int { return 3 }

func seedStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()

	items := []store.CatalogItem{
		{
			ID:            "01AAA",
			CanonicalName: "chicken_breast",
			Aliases:       []string{"chicken breast"},
			Embedding:     []float32{1, 0, 0},
		},
		{
			ID:            "01BBB",
			CanonicalName: "cucumber",
			Aliases:       []string{"cuke"},
			Embedding:     []float32{0, 1, 0},
		},
	}
	for _, it := range items {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return s
}

func TestResolveExactTier(t *testing.T) {
	s := seedStore(t)
	m := NewMatcher(s, &fixedEmbedder{}, 5, 0.75)

	got, err := m.Resolve(context.Background(), mention.Mention{FoodName: "cucumber"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Tier != TierExact || got[0].Score != 1.0 {
		t.Errorf("candidate = {%s %v}, want {exact 1.0}", got[0].Tier, got[0].Score)
	}
	if got[0].Item.ID != "01BBB" {
		t.Errorf("item = %q, want existing 01BBB", got[0].Item.ID)
	}
}

func TestResolveAliasTier(t *testing.T) {
	s := seedStore(t)
	m := NewMatcher(s, &fixedEmbedder{}, 5, 0.75)

	// "cuke" hits the alias table directly.
	got, err := m.Resolve(context.Background(), mention.Mention{FoodName: "cuke"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 || got[0].Tier != TierAlias || got[0].Score != 1.0 {
		t.Fatalf("candidates = %+v, want one alias hit at 1.0", got)
	}

	// "chicken_breast" is canonical; the spaced alias form must also hit
	// for mentions whose token form differs from the stored alias.
	got, err = m.Resolve(context.Background(), mention.Mention{FoodName: "chicken_breast"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got[0].Tier != TierExact {
		t.Errorf("canonical name resolved at tier %q, want exact", got[0].Tier)
	}
}

func TestResolveVectorTier(t *testing.T) {
	s := seedStore(t)
	emb := &fixedEmbedder{vectors: map[string][]float32{
		"chkn brst": {0.95, 0.05, 0},
	}}
	m := NewMatcher(s, emb, 5, 0.75)

	got, err := m.Resolve(context.Background(), mention.Mention{FoodName: "chkn_brst"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1", len(got))
	}
	if got[0].Tier != TierVector {
		t.Errorf("tier = %q, want vector", got[0].Tier)
	}
	if got[0].Item.CanonicalName != "chicken_breast" {
		t.Errorf("matched %q, want chicken_breast", got[0].Item.CanonicalName)
	}
	if got[0].Score < 0.75 || got[0].Score >= 1.0 {
		t.Errorf("score = %v, want within [0.75, 1.0)", got[0].Score)
	}
}

func TestResolveMiss(t *testing.T) {
	s := seedStore(t)
	m := NewMatcher(s, &fixedEmbedder{}, 5, 0.75)

	got, err := m.Resolve(context.Background(), mention.Mention{FoodName: "xyzfood123"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates for unknown food, want 0", len(got))
	}
}
