package recipes

import (
	"context"
	"testing"
	"time"

	"github.com/larderhq/larder/pkg/larder/store"
	"github.com/larderhq/larder/pkg/larder/store/memstore"
)

// cannedEmbedder returns a fixed vector per exact input text, so identical
// texts embed identically and distinct texts stay orthogonal.
type cannedEmbedder struct {
	vectors map[string][]float32
}

func (c *cannedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0, 1}, nil
}

func (c *cannedEmbedder) Dim() int { return 4 }

var (
	soup = GeneratedRecipe{Name: "Tomato Soup", Cuisine: "italian",
		Ingredients: []GeneratedIngredient{{Name: "tomato"}}}
	curry = GeneratedRecipe{Name: "Lentil Curry", Cuisine: "indian",
		Ingredients: []GeneratedIngredient{{Name: "lentils"}, {Name: "coconut milk"}}}
	salad = GeneratedRecipe{Name: "Cucumber Salad", Cuisine: "greek",
		Ingredients: []GeneratedIngredient{{Name: "cucumber"}, {Name: "feta"}, {Name: "olive oil"}}}
)

func testEmbedder() *cannedEmbedder {
	return &cannedEmbedder{vectors: map[string][]float32{
		EmbeddingText(soup):  {1, 0, 0, 0},
		EmbeddingText(curry): {0, 1, 0, 0},
		EmbeddingText(salad): {0, 0, 1, 0},
	}}
}

func TestEmbeddingText(t *testing.T) {
	got := EmbeddingText(salad)
	want := "Cucumber Salad greek cucumber feta olive oil"
	if got != want {
		t.Errorf("EmbeddingText = %q, want %q", got, want)
	}
}

func TestCheckSelfSimilarity(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	emb := testEmbedder()

	vec, err := emb.Embed(ctx, EmbeddingText(salad))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRecipe(ctx, store.Recipe{
		ID: "01R", Name: salad.Name, Cuisine: salad.Cuisine, Embedding: vec, CreatedAt: time.Now(),
	}, nil); err != nil {
		t.Fatal(err)
	}

	d := NewDeduplicator(s, emb, 0.90, 3)
	dup, isDup, err := d.Check(ctx, vec)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !isDup {
		t.Fatal("recipe compared against itself was not flagged as duplicate")
	}
	if dup.Similarity != 1.0 {
		t.Errorf("self similarity = %v, want 1.0", dup.Similarity)
	}
	if dup.Recipe.ID != "01R" {
		t.Errorf("duplicate of %q, want 01R", dup.Recipe.ID)
	}
}

func TestCheckEmptyIndex(t *testing.T) {
	d := NewDeduplicator(memstore.New(), testEmbedder(), 0.90, 3)
	_, isDup, err := d.Check(context.Background(), []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if isDup {
		t.Error("empty index reported a duplicate")
	}
}

// scriptedGenerator returns pre-baked recipes in order, repeating the last.
type scriptedGenerator struct {
	recipes   []GeneratedRecipe
	calls     int
	variances []float64
}

func (g *scriptedGenerator) Generate(ctx context.Context, req Request, variance float64) (GeneratedRecipe, error) {
	g.variances = append(g.variances, variance)
	idx := g.calls
	if idx >= len(g.recipes) {
		idx = len(g.recipes) - 1
	}
	g.calls++
	return g.recipes[idx], nil
}

func seedRecipe(t *testing.T, s *memstore.Store, emb *cannedEmbedder, r GeneratedRecipe, id string) {
	t.Helper()
	vec, err := emb.Embed(context.Background(), EmbeddingText(r))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CreateRecipe(context.Background(), store.Recipe{
		ID: id, Name: r.Name, Cuisine: r.Cuisine, Embedding: vec, CreatedAt: time.Now(),
	}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestGenerateUniqueRetriesThenSucceeds(t *testing.T) {
	s := memstore.New()
	emb := testEmbedder()
	seedRecipe(t, s, emb, soup, "01R")

	// First attempt duplicates the seeded soup, second diverges.
	gen := &scriptedGenerator{recipes: []GeneratedRecipe{soup, curry}}

	d := NewDeduplicator(s, emb, 0.90, 3)
	res, err := d.GenerateUnique(context.Background(), gen, Request{})
	if err != nil {
		t.Fatalf("GenerateUnique: %v", err)
	}
	if res.Duplicate {
		t.Error("result flagged duplicate after a successful regeneration")
	}
	if res.Recipe.Name != "Lentil Curry" {
		t.Errorf("accepted %q, want the regenerated recipe", res.Recipe.Name)
	}
	if res.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", res.Attempts)
	}
	if len(gen.variances) != 2 || gen.variances[1] <= gen.variances[0] {
		t.Errorf("variance did not increase across retries: %v", gen.variances)
	}
}

func TestGenerateUniqueAcceptsAfterBudget(t *testing.T) {
	s := memstore.New()
	emb := testEmbedder()
	seedRecipe(t, s, emb, soup, "01R")

	// Generator only ever produces the duplicate.
	gen := &scriptedGenerator{recipes: []GeneratedRecipe{soup}}

	d := NewDeduplicator(s, emb, 0.90, 2)
	res, err := d.GenerateUnique(context.Background(), gen, Request{})
	if err != nil {
		t.Fatalf("GenerateUnique: %v", err)
	}
	if !res.Duplicate {
		t.Error("exhausted budget should accept and flag the duplicate")
	}
	if res.DuplicateOf != "01R" {
		t.Errorf("DuplicateOf = %q, want 01R", res.DuplicateOf)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (1 + 2 retries)", res.Attempts)
	}
}
