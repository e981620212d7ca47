package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/mention"
	"github.com/larderhq/larder/pkg/larder/store"
)

type fakeDB struct {
	records []Record
	err     error
	delay   time.Duration
}

func (f *fakeDB) Search(ctx context.Context, query string) ([]Record, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.records, f.err
}

type fakeLLM struct {
	sel Selection
	err error
}

func (f *fakeLLM) Disambiguate(ctx context.Context, mentionContext string, records []Record) (Selection, error) {
	return f.sel, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (fakeEmbedder) Dim() int { return 2 }

func TestEnrichBuildsDraft(t *testing.T) {
	db := &fakeDB{records: []Record{
		{Description: "Cucumber, raw", Nutrition: store.Nutrition{Calories: 15, Carbs: 3.6}},
		{Description: "Cucumber, pickled", Nutrition: store.Nutrition{Calories: 11}},
	}}
	llm := &fakeLLM{sel: Selection{
		RecordIndex:   0,
		CanonicalName: "Cucumber",
		Aliases:       []string{"cuke", "Cucumber"},
		Category:      "vegetable",
		Confidence:    0.9,
	}}
	r := NewResolver(db, llm, fakeEmbedder{}, time.Second)

	draft, err := r.Enrich(context.Background(), mention.Mention{FoodName: "cucumber"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if draft.Item.CanonicalName != "cucumber" {
		t.Errorf("CanonicalName = %q, want cucumber", draft.Item.CanonicalName)
	}
	if draft.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", draft.Confidence)
	}
	if draft.Item.Nutrition.Calories != 15 {
		t.Errorf("Nutrition.Calories = %v, want 15 (selected record)", draft.Item.Nutrition.Calories)
	}
	if draft.Item.Source != store.SourceExternalDB {
		t.Errorf("Source = %q, want external_db", draft.Item.Source)
	}
	if len(draft.Item.Aliases) != 1 || draft.Item.Aliases[0] != "cuke" {
		t.Errorf("Aliases = %v, want [cuke]", draft.Item.Aliases)
	}
	if len(draft.Item.Embedding) == 0 {
		t.Error("draft has no embedding")
	}
	if draft.Item.ID == "" {
		t.Error("draft has no ID")
	}
}

func TestEnrichKeepsMentionTokenAsAlias(t *testing.T) {
	db := &fakeDB{records: []Record{{Description: "Chicken breast"}}}
	llm := &fakeLLM{sel: Selection{CanonicalName: "chicken breast", Confidence: 0.8}}
	r := NewResolver(db, llm, fakeEmbedder{}, time.Second)

	draft, err := r.Enrich(context.Background(), mention.Mention{FoodName: "chkn_brst"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if draft.Item.CanonicalName != "chicken_breast" {
		t.Errorf("CanonicalName = %q", draft.Item.CanonicalName)
	}
	found := false
	for _, a := range draft.Item.Aliases {
		if a == "chkn_brst" {
			found = true
		}
	}
	if !found {
		t.Errorf("mention token missing from aliases: %v", draft.Item.Aliases)
	}
}

func TestEnrichNoExternalMatch(t *testing.T) {
	r := NewResolver(&fakeDB{}, &fakeLLM{}, fakeEmbedder{}, time.Second)

	_, err := r.Enrich(context.Background(), mention.Mention{FoodName: "xyzfood123"})
	var ef *internalerr.EnrichmentFailure
	if !errors.As(err, &ef) {
		t.Fatalf("error = %v, want EnrichmentFailure", err)
	}
	if ef.Reason != internalerr.ReasonNoExternalMatch {
		t.Errorf("Reason = %q, want no_external_match", ef.Reason)
	}
}

func TestEnrichTimeout(t *testing.T) {
	db := &fakeDB{delay: 200 * time.Millisecond, records: []Record{{Description: "slow"}}}
	r := NewResolver(db, &fakeLLM{}, fakeEmbedder{}, 10*time.Millisecond)

	_, err := r.Enrich(context.Background(), mention.Mention{FoodName: "anything"})
	var ef *internalerr.EnrichmentFailure
	if !errors.As(err, &ef) {
		t.Fatalf("error = %v, want EnrichmentFailure", err)
	}
	if ef.Reason != internalerr.ReasonEnrichmentTimeout {
		t.Errorf("Reason = %q, want enrichment_timeout", ef.Reason)
	}
}

func TestEnrichMalformedSelection(t *testing.T) {
	db := &fakeDB{records: []Record{{Description: "only one"}}}
	llm := &fakeLLM{sel: Selection{RecordIndex: 7, CanonicalName: "x", Confidence: 0.9}}
	r := NewResolver(db, llm, fakeEmbedder{}, time.Second)

	_, err := r.Enrich(context.Background(), mention.Mention{FoodName: "anything"})
	var ef *internalerr.EnrichmentFailure
	if !errors.As(err, &ef) {
		t.Fatalf("error = %v, want EnrichmentFailure", err)
	}
	if ef.Reason != internalerr.ReasonLLMMalformed {
		t.Errorf("Reason = %q, want llm_malformed_response", ef.Reason)
	}
}

// A confidence the LLM failed to supply stays 0.0 and is left for the
// gate to reject; enrichment itself still succeeds.
func TestEnrichMissingConfidenceFailsClosed(t *testing.T) {
	db := &fakeDB{records: []Record{{Description: "Mystery food"}}}
	llm := &fakeLLM{sel: Selection{CanonicalName: "mystery food"}}
	r := NewResolver(db, llm, fakeEmbedder{}, time.Second)

	draft, err := r.Enrich(context.Background(), mention.Mention{FoodName: "mystery"})
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if draft.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", draft.Confidence)
	}
}
