// Package larder is the item resolution and confidence-gated ingestion
// engine. The Engine is the entry point every feature calls: manual add,
// receipt confirm, and recipe generation all funnel raw food mentions
// through Normalize → TieredMatcher → ExternalEnrichmentResolver →
// ConfidenceGate → persistence.
package larder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/enrich"
	"github.com/larderhq/larder/pkg/larder/gate"
	"github.com/larderhq/larder/pkg/larder/ids"
	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/match"
	"github.com/larderhq/larder/pkg/larder/mention"
	"github.com/larderhq/larder/pkg/larder/recipes"
	"github.com/larderhq/larder/pkg/larder/store"
)

// ResolutionResult is the outcome of resolving one mention. Status is
// always the gate's deterministic classification of (tier, confidence).
type ResolutionResult struct {
	ID         string
	Mention    mention.Mention
	ItemID     string
	Confidence float64
	Tier       string
	Status     gate.Status
	Reason     string
	Candidates []store.RankedCandidate
}

// Options configures an Engine.
type Options struct {
	Store         store.Store
	Embedder      embed.Provider
	NutritionDB   enrich.NutritionDB
	Disambiguator enrich.Disambiguator
	Generator     recipes.Generator
	Thresholds    gate.Thresholds
	// MaxCandidates bounds the ranked candidate list attached to a
	// pending confirmation. Defaults to 5.
	MaxCandidates int
	// Parallelism bounds concurrent mention resolution within one
	// request. Defaults to 4.
	Parallelism int
	// EnrichmentTimeout bounds one external enrichment. Defaults to 10s.
	EnrichmentTimeout time.Duration
	// RecipeRetries bounds regeneration attempts on duplicate recipes.
	RecipeRetries int
}

// Engine sequences the resolution pipeline and owns the transaction
// boundary, which is per-mention: a failure resolving one mention never
// rolls back its committed siblings.
type Engine struct {
	store         store.Store
	normalizer    *mention.Normalizer
	matcher       *match.Matcher
	resolver      *enrich.Resolver
	gate          *gate.Gate
	dedup         *recipes.Deduplicator
	generator     recipes.Generator
	maxCandidates int
	parallelism   int
}

// New creates an Engine from its collaborators.
func New(opts Options) *Engine {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 5
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	t := opts.Thresholds
	if t == (gate.Thresholds{}) {
		t = gate.DefaultThresholds()
	}
	return &Engine{
		store:         opts.Store,
		normalizer:    mention.NewNormalizer(),
		matcher:       match.NewMatcher(opts.Store, opts.Embedder, opts.MaxCandidates, t.ConfirmFloor),
		resolver:      enrich.NewResolver(opts.NutritionDB, opts.Disambiguator, opts.Embedder, opts.EnrichmentTimeout),
		gate:          gate.New(t),
		dedup:         recipes.NewDeduplicator(opts.Store, opts.Embedder, t.RecipeDuplicate, opts.RecipeRetries),
		generator:     opts.Generator,
		maxCandidates: opts.MaxCandidates,
		parallelism:   opts.Parallelism,
	}
}

// linkMode says what consuming link a resolved mention gets.
type linkMode int

const (
	linkInventory linkMode = iota
	linkNone
)

// Ingest resolves a batch of raw mentions for one session. Mentions run in
// parallel up to the configured bound; results come back in input order.
// Failures are local: a rejected or unparseable mention never aborts its
// siblings.
func (e *Engine) Ingest(ctx context.Context, session string, raws []string) []ResolutionResult {
	results := make([]ResolutionResult, len(raws))
	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.resolveOne(ctx, session, raw, linkInventory)
		}(i, raw)
	}
	wg.Wait()
	return results
}

// resolveOne runs the full pipeline for a single mention.
func (e *Engine) resolveOne(ctx context.Context, session, raw string, link linkMode) ResolutionResult {
	res := ResolutionResult{ID: ids.New()}

	m, err := e.normalizer.Normalize(raw)
	if err != nil {
		res.Mention = mention.Mention{OriginalText: raw}
		res.Status = gate.StatusRejected
		res.Reason = internalerr.ReasonParseError
		return res
	}
	res.Mention = m

	candidates, err := e.matcher.Resolve(ctx, m)
	if err != nil {
		res.Status = gate.StatusRejected
		res.Reason = internalerr.ReasonEnrichmentFailed
		return res
	}

	if len(candidates) > 0 {
		top := candidates[0]
		switch e.gate.ClassifyMatch(top.Tier, top.Score) {
		case gate.DecisionAccept:
			return e.accept(ctx, res, m, top, link)
		case gate.DecisionConfirm:
			return e.requestConfirmation(ctx, res, session, m, candidates)
		}
		// A vector match below the confirm floor is treated as a miss.
	}

	return e.seed(ctx, res, m, link)
}

// accept links the chosen item and reports a silent success.
func (e *Engine) accept(ctx context.Context, res ResolutionResult, m mention.Mention, c match.Candidate, link linkMode) ResolutionResult {
	if link == linkInventory {
		row := store.InventoryRow{
			ID:            ids.New(),
			ItemID:        c.Item.ID,
			QuantityGrams: mention.Grams(m),
			AddedAt:       time.Now(),
		}
		if err := e.store.AddInventory(ctx, row); err != nil {
			res.Status = gate.StatusRejected
			res.Reason = internalerr.ReasonEnrichmentFailed
			return res
		}
	}
	res.ItemID = c.Item.ID
	res.Confidence = c.Score
	res.Tier = c.Tier
	res.Status = gate.StatusAutoAccepted
	return res
}

// requestConfirmation persists a PendingConfirmation holding the ranked
// candidates and surfaces it to the caller.
func (e *Engine) requestConfirmation(ctx context.Context, res ResolutionResult, session string, m mention.Mention, candidates []match.Candidate) ResolutionResult {
	if len(candidates) > e.maxCandidates {
		candidates = candidates[:e.maxCandidates]
	}
	ranked := make([]store.RankedCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = store.RankedCandidate{
			ItemID: c.Item.ID,
			Name:   c.Item.CanonicalName,
			Tier:   c.Tier,
			Score:  c.Score,
		}
	}

	p := store.PendingConfirmation{
		ID:            res.ID,
		Session:       session,
		OriginalText:  m.OriginalText,
		FoodName:      m.FoodName,
		QuantityGrams: mention.Grams(m),
		Candidates:    ranked,
		CreatedAt:     time.Now(),
	}
	if err := e.store.PutPending(ctx, p); err != nil {
		res.Status = gate.StatusRejected
		res.Reason = internalerr.ReasonEnrichmentFailed
		return res
	}

	res.Confidence = candidates[0].Score
	res.Tier = candidates[0].Tier
	res.Status = gate.StatusNeedsConfirmation
	res.Candidates = ranked
	return res
}

// seed runs the enrichment path for a matcher miss and commits the draft
// when the gate allows it.
func (e *Engine) seed(ctx context.Context, res ResolutionResult, m mention.Mention, link linkMode) ResolutionResult {
	draft, err := e.resolver.Enrich(ctx, m)
	if err != nil {
		res.Status = gate.StatusRejected
		res.Reason = failureReason(err)
		return res
	}

	if e.gate.ClassifyEnrichment(draft.Confidence) == gate.DecisionReject {
		res.Confidence = draft.Confidence
		res.Status = gate.StatusRejected
		res.Reason = internalerr.ReasonLowConfidence
		return res
	}

	err = e.commitSeed(ctx, m, draft.Item, link)
	if errors.Is(err, internalerr.ErrDuplicate) {
		// Another request seeded this canonical name first. Re-run the
		// exact-match step and adopt the committed row.
		item, found, lookupErr := e.store.ItemByCanonicalName(ctx, draft.Item.CanonicalName)
		if lookupErr != nil || !found {
			res.Status = gate.StatusRejected
			res.Reason = internalerr.ReasonEnrichmentFailed
			return res
		}
		return e.accept(ctx, res, m, match.Candidate{Item: item, Tier: match.TierExact, Score: 1.0}, link)
	}
	if err != nil {
		res.Status = gate.StatusRejected
		res.Reason = internalerr.ReasonEnrichmentFailed
		return res
	}

	res.ItemID = draft.Item.ID
	res.Confidence = draft.Confidence
	res.Status = gate.StatusSeeded
	return res
}

// commitSeed writes the new item and, for the inventory path, its
// consuming link in one transaction.
func (e *Engine) commitSeed(ctx context.Context, m mention.Mention, item store.CatalogItem, link linkMode) error {
	if link != linkInventory {
		return e.store.CreateItem(ctx, item)
	}
	row := store.InventoryRow{
		ID:            ids.New(),
		ItemID:        item.ID,
		QuantityGrams: mention.Grams(m),
		AddedAt:       time.Now(),
	}
	return e.store.SeedItemWithInventory(ctx, item, row)
}

func failureReason(err error) string {
	var ef *internalerr.EnrichmentFailure
	if errors.As(err, &ef) {
		return ef.Reason
	}
	return internalerr.ReasonEnrichmentFailed
}

// Confirm resolves a pending confirmation by linking the chosen item.
// It is one of only two legal ways to consume a pending confirmation.
func (e *Engine) Confirm(ctx context.Context, resultID, chosenItemID string) error {
	p, found, err := e.store.GetPending(ctx, resultID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("pending confirmation %s: %w", resultID, internalerr.ErrNotFound)
	}

	valid := false
	for _, c := range p.Candidates {
		if c.ItemID == chosenItemID {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("item %s is not a candidate of %s: %w", chosenItemID, resultID, internalerr.ErrInvalidInput)
	}

	row := store.InventoryRow{
		ID:            ids.New(),
		ItemID:        chosenItemID,
		QuantityGrams: p.QuantityGrams,
		AddedAt:       time.Now(),
	}
	if err := e.store.AddInventory(ctx, row); err != nil {
		return err
	}
	return e.store.DeletePending(ctx, resultID)
}

// Skip discards a pending confirmation without linking anything.
func (e *Engine) Skip(ctx context.Context, resultID string) error {
	_, found, err := e.store.GetPending(ctx, resultID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("pending confirmation %s: %w", resultID, internalerr.ErrNotFound)
	}
	return e.store.DeletePending(ctx, resultID)
}

// Pending lists the open confirmations owned by a session.
func (e *Engine) Pending(ctx context.Context, session string) ([]store.PendingConfirmation, error) {
	return e.store.ListPending(ctx, session)
}

// RecipeReport is the outcome of one AddRecipe call.
type RecipeReport struct {
	Recipe store.Recipe
	// Ingredients carries the per-ingredient resolution results,
	// including any that ended needs_confirmation or rejected and were
	// left out of the persisted recipe.
	Ingredients []ResolutionResult
	// Duplicate is set when the retry budget was exhausted and the
	// recipe was accepted even though it duplicates DuplicateOf.
	Duplicate   bool
	DuplicateOf string
	Attempts    int
}

// AddRecipe generates a recipe, deduplicates it against the persisted
// set with bounded regeneration, resolves its ingredients through the
// standard pipeline, and persists recipe plus ingredient links
// atomically.
func (e *Engine) AddRecipe(ctx context.Context, session string, req recipes.Request) (RecipeReport, error) {
	if e.generator == nil {
		return RecipeReport{}, fmt.Errorf("recipe generator: %w", internalerr.ErrInvalidInput)
	}

	gen, err := e.dedup.GenerateUnique(ctx, e.generator, req)
	if err != nil {
		return RecipeReport{}, err
	}

	report := RecipeReport{
		Duplicate:   gen.Duplicate,
		DuplicateOf: gen.DuplicateOf,
		Attempts:    gen.Attempts,
	}

	// Ingredients are resolved sequentially; recipe persistence depends on
	// every resolution having settled.
	var links []store.RecipeIngredient
	recipeID := ids.New()
	for _, ing := range gen.Recipe.Ingredients {
		res := e.resolveOne(ctx, session, ing.Name, linkNone)
		report.Ingredients = append(report.Ingredients, res)
		if res.ItemID == "" {
			continue
		}
		grams := ing.QuantityGrams
		if grams <= 0 {
			grams = mention.Grams(res.Mention)
		}
		links = append(links, store.RecipeIngredient{
			RecipeID:      recipeID,
			ItemID:        res.ItemID,
			QuantityGrams: grams,
		})
	}

	rec := store.Recipe{
		ID:           recipeID,
		Name:         gen.Recipe.Name,
		Cuisine:      gen.Recipe.Cuisine,
		Instructions: gen.Recipe.Instructions,
		Embedding:    gen.Embedding,
		CreatedAt:    time.Now(),
	}
	if err := e.store.CreateRecipe(ctx, rec, links); err != nil {
		return RecipeReport{}, err
	}
	report.Recipe = rec
	return report, nil
}
