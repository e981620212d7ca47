package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/larderhq/larder/pkg/larder/internalerr"
	"github.com/larderhq/larder/pkg/larder/store"
)

func TestCreateAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := store.CatalogItem{
		ID:            "01ITEM",
		CanonicalName: "chicken_breast",
		Aliases:       []string{"chicken breast", "chkn brst"},
		Category:      "protein",
		Embedding:     []float32{1, 0, 0},
		Source:        store.SourceManual,
		CreatedAt:     time.Now(),
	}
	if err := s.CreateItem(ctx, item); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, found, err := s.ItemByCanonicalName(ctx, "chicken_breast")
	if err != nil || !found {
		t.Fatalf("ItemByCanonicalName: found=%v err=%v", found, err)
	}
	if got.ID != "01ITEM" {
		t.Errorf("ID = %q, want 01ITEM", got.ID)
	}

	got, found, err = s.ItemByAlias(ctx, "chkn brst")
	if err != nil || !found {
		t.Fatalf("ItemByAlias: found=%v err=%v", found, err)
	}
	if got.CanonicalName != "chicken_breast" {
		t.Errorf("alias lookup returned %q", got.CanonicalName)
	}

	if _, found, _ := s.ItemByCanonicalName(ctx, "tofu"); found {
		t.Error("lookup of absent name reported found")
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := store.CatalogItem{ID: "01A", CanonicalName: "cucumber"}
	b := store.CatalogItem{ID: "01B", CanonicalName: "cucumber"}
	if err := s.CreateItem(ctx, a); err != nil {
		t.Fatalf("first CreateItem: %v", err)
	}
	err := s.CreateItem(ctx, b)
	if !errors.Is(err, internalerr.ErrDuplicate) {
		t.Fatalf("second CreateItem error = %v, want ErrDuplicate", err)
	}
	if s.ItemCount() != 1 {
		t.Errorf("ItemCount = %d, want 1", s.ItemCount())
	}
}

func TestConcurrentSeedingCreatesOneItem(t *testing.T) {
	s := New()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	dups := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.CreateItem(ctx, store.CatalogItem{
				ID:            time.Now().Format("150405.000000000") + string(rune('a'+i)),
				CanonicalName: "dragonfruit",
			})
			if err != nil {
				dups <- err
			}
		}(i)
	}
	wg.Wait()
	close(dups)

	if s.ItemCount() != 1 {
		t.Fatalf("ItemCount = %d, want exactly 1 after concurrent seeding", s.ItemCount())
	}
	for err := range dups {
		if !errors.Is(err, internalerr.ErrDuplicate) {
			t.Errorf("unexpected error kind: %v", err)
		}
	}
}

func TestNearestItems(t *testing.T) {
	s := New()
	ctx := context.Background()

	items := []store.CatalogItem{
		{ID: "01A", CanonicalName: "cucumber", Embedding: []float32{1, 0}},
		{ID: "01B", CanonicalName: "zucchini", Embedding: []float32{0.9, 0.1}},
		{ID: "01C", CanonicalName: "butter", Embedding: []float32{0, 1}},
	}
	for _, it := range items {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	got, err := s.NearestItems(ctx, []float32{1, 0}, 2, 0.75)
	if err != nil {
		t.Fatalf("NearestItems: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d items, want 2", len(got))
	}
	if got[0].Item.CanonicalName != "cucumber" {
		t.Errorf("best match = %q, want cucumber", got[0].Item.CanonicalName)
	}
	if got[0].Similarity != 1.0 {
		t.Errorf("best similarity = %v, want 1.0", got[0].Similarity)
	}
	if got[1].Item.CanonicalName != "zucchini" {
		t.Errorf("second match = %q, want zucchini", got[1].Item.CanonicalName)
	}
}

func TestNearestItemsTieBreaksNewer(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Identical embeddings; the lexically larger (newer) ULID must win.
	old := store.CatalogItem{ID: "01AAAA", CanonicalName: "spinach", Embedding: []float32{1, 0}}
	newer := store.CatalogItem{ID: "01BBBB", CanonicalName: "baby_spinach", Embedding: []float32{1, 0}}
	if err := s.CreateItem(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateItem(ctx, newer); err != nil {
		t.Fatal(err)
	}

	got, err := s.NearestItems(ctx, []float32{1, 0}, 2, 0.5)
	if err != nil {
		t.Fatalf("NearestItems: %v", err)
	}
	if got[0].Item.ID != "01BBBB" {
		t.Errorf("tie broke to %q, want newer 01BBBB", got[0].Item.ID)
	}
}

func TestPendingLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	p := store.PendingConfirmation{
		ID:        "01P",
		Session:   "sess-1",
		FoodName:  "chkn_brst",
		CreatedAt: time.Now(),
	}
	if err := s.PutPending(ctx, p); err != nil {
		t.Fatalf("PutPending: %v", err)
	}

	got, found, err := s.GetPending(ctx, "01P")
	if err != nil || !found {
		t.Fatalf("GetPending: found=%v err=%v", found, err)
	}
	if got.FoodName != "chkn_brst" {
		t.Errorf("FoodName = %q", got.FoodName)
	}

	list, err := s.ListPending(ctx, "sess-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListPending: %v items, err=%v", len(list), err)
	}
	if other, _ := s.ListPending(ctx, "sess-2"); len(other) != 0 {
		t.Error("pending leaked across sessions")
	}

	if err := s.DeletePending(ctx, "01P"); err != nil {
		t.Fatalf("DeletePending: %v", err)
	}
	if _, found, _ := s.GetPending(ctx, "01P"); found {
		t.Error("pending still present after delete")
	}
}

func TestMergeAliases(t *testing.T) {
	s := New()
	ctx := context.Background()

	item := store.CatalogItem{ID: "01A", CanonicalName: "scallion", Aliases: []string{"green onion"}}
	if err := s.CreateItem(ctx, item); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeAliases(ctx, "01A", []string{"spring onion", "green onion", "scallion"}); err != nil {
		t.Fatalf("MergeAliases: %v", err)
	}

	got, found, err := s.ItemByAlias(ctx, "spring onion")
	if err != nil || !found {
		t.Fatalf("merged alias not found: %v", err)
	}
	if len(got.Aliases) != 2 {
		t.Errorf("Aliases = %v, want 2 entries", got.Aliases)
	}
}
