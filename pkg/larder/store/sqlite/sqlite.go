package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/larderhq/larder/pkg/larder/embed"
	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// Open opens a SQLite database with WAL mode enabled and initializes the
// schema. The UNIQUE constraint on canonical_name is the storage-level
// enforcement of the one-item-per-name invariant.
func Open(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS catalog_items (
	id TEXT PRIMARY KEY,
	canonical_name TEXT UNIQUE NOT NULL,
	aliases TEXT,
	category TEXT,
	nutrition TEXT,
	embedding TEXT,
	source TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_aliases (
	alias TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	FOREIGN KEY(item_id) REFERENCES catalog_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS inventory (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	quantity_grams REAL NOT NULL,
	added_at TEXT NOT NULL,
	FOREIGN KEY(item_id) REFERENCES catalog_items(id)
);

CREATE TABLE IF NOT EXISTS pending_confirmations (
	id TEXT PRIMARY KEY,
	session TEXT NOT NULL,
	original_text TEXT,
	food_name TEXT,
	quantity_grams REAL,
	candidates TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pending_session ON pending_confirmations(session);

CREATE TABLE IF NOT EXISTS recipes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	cuisine TEXT,
	instructions TEXT,
	embedding TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS recipe_ingredients (
	recipe_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	quantity_grams REAL NOT NULL,
	PRIMARY KEY(recipe_id, item_id),
	FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
	FOREIGN KEY(item_id) REFERENCES catalog_items(id)
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateItem inserts a new catalog item. A canonical_name collision maps
// to internalerr.ErrDuplicate so callers can recover via re-match.
func (s *sqliteStore) CreateItem(ctx context.Context, item store.CatalogItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertItem(ctx, tx, item); err != nil {
		return err
	}
	return tx.Commit()
}

func insertItem(ctx context.Context, tx *sql.Tx, item store.CatalogItem) error {
	aliases, err := json.Marshal(item.Aliases)
	if err != nil {
		return err
	}
	nutrition, err := json.Marshal(item.Nutrition)
	if err != nil {
		return err
	}
	embedding, err := json.Marshal(item.Embedding)
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO catalog_items (id, canonical_name, aliases, category, nutrition, embedding, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
	_, err = tx.ExecContext(ctx, stmt,
		item.ID,
		item.CanonicalName,
		string(aliases),
		item.Category,
		string(nutrition),
		string(embedding),
		item.Source,
		item.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("catalog item %q: %w", item.CanonicalName, internalerr.ErrDuplicate)
		}
		return err
	}

	for _, alias := range item.Aliases {
		if alias == "" || alias == item.CanonicalName {
			continue
		}
		// An alias already claimed by another item stays with that item.
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO catalog_aliases (alias, item_id) VALUES (?, ?)`,
			alias, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err comes from a UNIQUE constraint.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetItem returns a catalog item by ID.
func (s *sqliteStore) GetItem(ctx context.Context, id string) (store.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx, itemSelect+` WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return store.CatalogItem{}, fmt.Errorf("catalog item %s: %w", id, internalerr.ErrNotFound)
	}
	return item, err
}

// ItemByCanonicalName returns the item whose canonical_name equals name.
func (s *sqliteStore) ItemByCanonicalName(ctx context.Context, name string) (store.CatalogItem, bool, error) {
	row := s.db.QueryRowContext(ctx, itemSelect+` WHERE canonical_name = ?`, name)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return store.CatalogItem{}, false, nil
	}
	if err != nil {
		return store.CatalogItem{}, false, err
	}
	return item, true, nil
}

// ItemByAlias returns the item owning the given alias.
func (s *sqliteStore) ItemByAlias(ctx context.Context, alias string) (store.CatalogItem, bool, error) {
	row := s.db.QueryRowContext(ctx,
		itemSelect+` WHERE id = (SELECT item_id FROM catalog_aliases WHERE alias = ?)`, alias)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return store.CatalogItem{}, false, nil
	}
	if err != nil {
		return store.CatalogItem{}, false, err
	}
	return item, true, nil
}

// NearestItems scans all item embeddings and returns the k most similar
// at or above floor, best first. The catalog is small enough that a full
// scan beats maintaining an index.
func (s *sqliteStore) NearestItems(ctx context.Context, vec []float32, k int, floor float64) ([]store.ScoredItem, error) {
	rows, err := s.db.QueryContext(ctx, itemSelect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []store.ScoredItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		sim := embed.Cosine(vec, item.Embedding)
		if sim >= floor {
			scored = append(scored, store.ScoredItem{Item: item, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		// ULIDs sort by creation time; newer item wins a tie.
		return scored[i].Item.ID > scored[j].Item.ID
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// MergeAliases adds aliases to an existing item. Items are never deleted;
// duplicates are superseded by folding their names in here.
func (s *sqliteStore) MergeAliases(ctx context.Context, id string, aliases []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return err
	}

	existing := make(map[string]struct{}, len(item.Aliases))
	for _, a := range item.Aliases {
		existing[a] = struct{}{}
	}
	merged := item.Aliases
	for _, a := range aliases {
		if a == "" || a == item.CanonicalName {
			continue
		}
		if _, ok := existing[a]; ok {
			continue
		}
		merged = append(merged, a)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO catalog_aliases (alias, item_id) VALUES (?, ?)`, a, id); err != nil {
			return err
		}
	}

	blob, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE catalog_items SET aliases = ? WHERE id = ?`, string(blob), id); err != nil {
		return err
	}
	return tx.Commit()
}

// AddInventory records a resolved item in the inventory.
func (s *sqliteStore) AddInventory(ctx context.Context, row store.InventoryRow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inventory (id, item_id, quantity_grams, added_at) VALUES (?, ?, ?, ?)`,
		row.ID, row.ItemID, row.QuantityGrams, row.AddedAt.UTC().Format(time.RFC3339))
	return err
}

// SeedItemWithInventory creates the item and its consuming inventory row
// atomically. The whole transaction rolls back on conflict so the caller
// can re-match and adopt the concurrently inserted item.
func (s *sqliteStore) SeedItemWithInventory(ctx context.Context, item store.CatalogItem, row store.InventoryRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertItem(ctx, tx, item); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inventory (id, item_id, quantity_grams, added_at) VALUES (?, ?, ?, ?)`,
		row.ID, row.ItemID, row.QuantityGrams, row.AddedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

// PutPending stores a pending confirmation.
func (s *sqliteStore) PutPending(ctx context.Context, p store.PendingConfirmation) error {
	candidates, err := json.Marshal(p.Candidates)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO pending_confirmations (id, session, original_text, food_name, quantity_grams, candidates, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET candidates=excluded.candidates
`,
		p.ID, p.Session, p.OriginalText, p.FoodName, p.QuantityGrams,
		string(candidates), p.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// GetPending returns a pending confirmation by result ID.
func (s *sqliteStore) GetPending(ctx context.Context, id string) (store.PendingConfirmation, bool, error) {
	row := s.db.QueryRowContext(ctx, pendingSelect+` WHERE id = ?`, id)
	p, err := scanPending(row)
	if err == sql.ErrNoRows {
		return store.PendingConfirmation{}, false, nil
	}
	if err != nil {
		return store.PendingConfirmation{}, false, err
	}
	return p, true, nil
}

// DeletePending consumes a pending confirmation.
func (s *sqliteStore) DeletePending(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_confirmations WHERE id = ?`, id)
	return err
}

// ListPending returns the pending confirmations owned by a session, oldest first.
func (s *sqliteStore) ListPending(ctx context.Context, session string) ([]store.PendingConfirmation, error) {
	rows, err := s.db.QueryContext(ctx, pendingSelect+` WHERE session = ? ORDER BY created_at`, session)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PendingConfirmation
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateRecipe persists a recipe and its ingredient links atomically.
func (s *sqliteStore) CreateRecipe(ctx context.Context, r store.Recipe, ingredients []store.RecipeIngredient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instructions, err := json.Marshal(r.Instructions)
	if err != nil {
		return err
	}
	embedding, err := json.Marshal(r.Embedding)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recipes (id, name, cuisine, instructions, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Cuisine, string(instructions), string(embedding),
		r.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("recipe %q: %w", r.Name, internalerr.ErrDuplicate)
		}
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recipe_ingredients (recipe_id, item_id, quantity_grams) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ing := range ingredients {
		if _, err := stmt.ExecContext(ctx, r.ID, ing.ItemID, ing.QuantityGrams); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// NearestRecipes returns the k recipes most similar to vec, best first.
func (s *sqliteStore) NearestRecipes(ctx context.Context, vec []float32, k int) ([]store.ScoredRecipe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, cuisine, instructions, embedding, created_at FROM recipes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scored []store.ScoredRecipe
	for rows.Next() {
		var r store.Recipe
		var instructions, embedding, createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.Cuisine, &instructions, &embedding, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(instructions), &r.Instructions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(embedding), &r.Embedding); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		scored = append(scored, store.ScoredRecipe{Recipe: r, Similarity: embed.Cosine(vec, r.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

const itemSelect = `SELECT id, canonical_name, aliases, category, nutrition, embedding, source, created_at FROM catalog_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (store.CatalogItem, error) {
	var item store.CatalogItem
	var aliases, nutrition, embedding, createdAt string
	err := row.Scan(&item.ID, &item.CanonicalName, &aliases, &item.Category,
		&nutrition, &embedding, &item.Source, &createdAt)
	if err != nil {
		return store.CatalogItem{}, err
	}
	if err := json.Unmarshal([]byte(aliases), &item.Aliases); err != nil {
		return store.CatalogItem{}, err
	}
	if err := json.Unmarshal([]byte(nutrition), &item.Nutrition); err != nil {
		return store.CatalogItem{}, err
	}
	if err := json.Unmarshal([]byte(embedding), &item.Embedding); err != nil {
		return store.CatalogItem{}, err
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return item, nil
}

const pendingSelect = `SELECT id, session, original_text, food_name, quantity_grams, candidates, created_at FROM pending_confirmations`

func scanPending(row rowScanner) (store.PendingConfirmation, error) {
	var p store.PendingConfirmation
	var candidates, createdAt string
	err := row.Scan(&p.ID, &p.Session, &p.OriginalText, &p.FoodName,
		&p.QuantityGrams, &candidates, &createdAt)
	if err != nil {
		return store.PendingConfirmation{}, err
	}
	if err := json.Unmarshal([]byte(candidates), &p.Candidates); err != nil {
		return store.PendingConfirmation{}, err
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}
