package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/store"
)

// Store is an in-memory implementation of store.Store. It is safe for
// concurrent use and backs the concurrency tests for seeding.
type Store struct {
	mu         sync.Mutex
	items      map[string]store.CatalogItem // by ID
	byName     map[string]string            // canonical_name -> ID
	byAlias    map[string]string            // alias -> ID
	inventory  []store.InventoryRow
	pending    map[string]store.PendingConfirmation
	recipes    map[string]store.Recipe
	recipeIngs map[string][]store.RecipeIngredient
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		items:      make(map[string]store.CatalogItem),
		byName:     make(map[string]string),
		byAlias:    make(map[string]string),
		pending:    make(map[string]store.PendingConfirmation),
		recipes:    make(map[string]store.Recipe),
		recipeIngs: make(map[string][]store.RecipeIngredient),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateItem inserts a new catalog item, enforcing canonical_name uniqueness.
func (s *Store) CreateItem(ctx context.Context, item store.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(item)
}

func (s *Store) createLocked(item store.CatalogItem) error {
	if item.CanonicalName == "" {
		return internalerr.ErrInvalidInput
	}
	if _, exists := s.byName[item.CanonicalName]; exists {
		return fmt.Errorf("catalog item %q: %w", item.CanonicalName, internalerr.ErrDuplicate)
	}
	s.items[item.ID] = copyItem(item)
	s.byName[item.CanonicalName] = item.ID
	for _, a := range item.Aliases {
		if a == "" || a == item.CanonicalName {
			continue
		}
		if _, taken := s.byAlias[a]; !taken {
			s.byAlias[a] = item.ID
		}
	}
	return nil
}

// GetItem returns a catalog item by ID.
func (s *Store) GetItem(ctx context.Context, id string) (store.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[id]; ok {
		return copyItem(item), nil
	}
	return store.CatalogItem{}, fmt.Errorf("catalog item %s: %w", id, internalerr.ErrNotFound)
}

// ItemByCanonicalName returns the item with the given canonical name.
func (s *Store) ItemByCanonicalName(ctx context.Context, name string) (store.CatalogItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[name]; ok {
		return copyItem(s.items[id]), true, nil
	}
	return store.CatalogItem{}, false, nil
}

// ItemByAlias returns the item owning the given alias.
func (s *Store) ItemByAlias(ctx context.Context, alias string) (store.CatalogItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byAlias[alias]; ok {
		return copyItem(s.items[id]), true, nil
	}
	return store.CatalogItem{}, false, nil
}

// NearestItems returns the k items most similar to vec at or above floor.
func (s *Store) NearestItems(ctx context.Context, vec []float32, k int, floor float64) ([]store.ScoredItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scored []store.ScoredItem
	for _, item := range s.items {
		sim := embed.Cosine(vec, item.Embedding)
		if sim >= floor {
			scored = append(scored, store.ScoredItem{Item: copyItem(item), Similarity: sim})
		}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].Item.ID > scored[j].Item.ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// MergeAliases folds additional aliases into an existing item.
func (s *Store) MergeAliases(ctx context.Context, id string, aliases []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("catalog item %s: %w", id, internalerr.ErrNotFound)
	}
	existing := make(map[string]struct{}, len(item.Aliases))
	for _, a := range item.Aliases {
		existing[a] = struct{}{}
	}
	for _, a := range aliases {
		if a == "" || a == item.CanonicalName {
			continue
		}
		if _, ok := existing[a]; ok {
			continue
		}
		item.Aliases = append(item.Aliases, a)
		if _, taken := s.byAlias[a]; !taken {
			s.byAlias[a] = id
		}
	}
	s.items[id] = item
	return nil
}

// AddInventory records a resolved item in the inventory.
func (s *Store) AddInventory(ctx context.Context, row store.InventoryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory = append(s.inventory, row)
	return nil
}

// SeedItemWithInventory creates the item and its inventory row atomically.
func (s *Store) SeedItemWithInventory(ctx context.Context, item store.CatalogItem, row store.InventoryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.createLocked(item); err != nil {
		return err
	}
	s.inventory = append(s.inventory, row)
	return nil
}

// PutPending stores a pending confirmation.
func (s *Store) PutPending(ctx context.Context, p store.PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.ID] = p
	return nil
}

// GetPending returns a pending confirmation by result ID.
func (s *Store) GetPending(ctx context.Context, id string) (store.PendingConfirmation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[id]
	return p, ok, nil
}

// DeletePending consumes a pending confirmation.
func (s *Store) DeletePending(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}

// ListPending returns the pending confirmations owned by a session.
func (s *Store) ListPending(ctx context.Context, session string) ([]store.PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.PendingConfirmation
	for _, p := range s.pending {
		if p.Session == session {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateRecipe persists a recipe and its ingredient links atomically.
func (s *Store) CreateRecipe(ctx context.Context, r store.Recipe, ingredients []store.RecipeIngredient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.recipes[r.ID]; exists {
		return fmt.Errorf("recipe %q: %w", r.Name, internalerr.ErrDuplicate)
	}
	s.recipes[r.ID] = r
	s.recipeIngs[r.ID] = append([]store.RecipeIngredient(nil), ingredients...)
	return nil
}

// NearestRecipes returns the k recipes most similar to vec, best first.
func (s *Store) NearestRecipes(ctx context.Context, vec []float32, k int) ([]store.ScoredRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var scored []store.ScoredRecipe
	for _, r := range s.recipes {
		scored = append(scored, store.ScoredRecipe{Recipe: r, Similarity: embed.Cosine(vec, r.Embedding)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Inventory returns a snapshot of all inventory rows, for tests and tools.
func (s *Store) Inventory() []store.InventoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.InventoryRow(nil), s.inventory...)
}

// ItemCount returns the number of catalog items, for tests and tools.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func copyItem(item store.CatalogItem) store.CatalogItem {
	out := item
	out.Aliases = append([]string(nil), item.Aliases...)
	out.Embedding = append([]float32(nil), item.Embedding...)
	return out
}
