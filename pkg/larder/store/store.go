package store

import (
	"context"
	"time"
)

// Item sources.
const (
	SourceManual     = "manual"
	SourceExternalDB = "external_db"
	SourceLLMSeeded  = "llm_seeded"
)

// Store is the persistence boundary for the catalog, inventory, pending
// confirmations, and recipes. The uniqueness invariant on canonical_name
// is enforced here, not in application logic: CreateItem returns
// internalerr.ErrDuplicate when the name already exists.
type Store interface {
	Close() error

	// Catalog
	CreateItem(ctx context.Context, item CatalogItem) error
	GetItem(ctx context.Context, id string) (CatalogItem, error)
	ItemByCanonicalName(ctx context.Context, name string) (CatalogItem, bool, error)
	ItemByAlias(ctx context.Context, alias string) (CatalogItem, bool, error)
	NearestItems(ctx context.Context, vec []float32, k int, floor float64) ([]ScoredItem, error)
	MergeAliases(ctx context.Context, id string, aliases []string) error

	// Inventory
	AddInventory(ctx context.Context, row InventoryRow) error
	// SeedItemWithInventory creates a catalog item and its consuming
	// inventory row in one transaction.
	SeedItemWithInventory(ctx context.Context, item CatalogItem, row InventoryRow) error

	// Pending confirmations
	PutPending(ctx context.Context, p PendingConfirmation) error
	GetPending(ctx context.Context, id string) (PendingConfirmation, bool, error)
	DeletePending(ctx context.Context, id string) error
	ListPending(ctx context.Context, session string) ([]PendingConfirmation, error)

	// Recipes
	CreateRecipe(ctx context.Context, r Recipe, ingredients []RecipeIngredient) error
	NearestRecipes(ctx context.Context, vec []float32, k int) ([]ScoredRecipe, error)
}

// CatalogItem is the single authoritative catalog record for a food.
// Items are never deleted, only superseded by merging aliases.
type CatalogItem struct {
	ID            string
	CanonicalName string // unique across the catalog
	Aliases       []string
	Category      string
	Nutrition     Nutrition
	Embedding     []float32 // computed from canonical name + aliases at creation
	Source        string
	CreatedAt     time.Time
}

// Nutrition holds macro/micro values per 100 g.
type Nutrition struct {
	Calories float64
	Protein  float64
	Carbs    float64
	Fat      float64
	Fiber    float64
	Sugar    float64
	Sodium   float64
}

// ScoredItem is a catalog item with its cosine similarity to a query vector.
type ScoredItem struct {
	Item       CatalogItem
	Similarity float64
}

// InventoryRow links a resolved catalog item into the user's inventory.
type InventoryRow struct {
	ID            string
	ItemID        string
	QuantityGrams float64
	AddedAt       time.Time
}

// RankedCandidate is one choice offered to the user on an ambiguous match.
type RankedCandidate struct {
	ItemID string
	Name   string
	Tier   string
	Score  float64
}

// PendingConfirmation holds an ambiguous resolution awaiting an explicit
// confirm or skip. It is owned by the session that created it and is
// deleted when consumed.
type PendingConfirmation struct {
	ID            string
	Session       string
	OriginalText  string
	FoodName      string
	QuantityGrams float64
	Candidates    []RankedCandidate
	CreatedAt     time.Time
}

// Recipe carries its own embedding, used solely for deduplication against
// other recipes.
type Recipe struct {
	ID           string
	Name         string
	Cuisine      string
	Instructions []string
	Embedding    []float32
	CreatedAt    time.Time
}

// RecipeIngredient ties one catalog item into a recipe.
type RecipeIngredient struct {
	RecipeID      string
	ItemID        string
	QuantityGrams float64
}

// ScoredRecipe is a recipe with its cosine similarity to a query vector.
type ScoredRecipe struct {
	Recipe     Recipe
	Similarity float64
}
