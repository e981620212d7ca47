package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/larderhq/larder/pkg/larder/internalerr"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Thresholds.AutoAccept != 0.85 {
		t.Errorf("AutoAccept = %v, want 0.85", cfg.Thresholds.AutoAccept)
	}
	if cfg.Thresholds.SeedFloor != 0.60 {
		t.Errorf("SeedFloor = %v, want 0.60", cfg.Thresholds.SeedFloor)
	}
	if cfg.Thresholds.RecipeDuplicate != 0.90 {
		t.Errorf("RecipeDuplicate = %v, want 0.90", cfg.Thresholds.RecipeDuplicate)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "larder.yaml")
	content := `
thresholds:
  auto_accept: 0.9
  confirm_floor: 0.55
  seed_floor: 0.65
  recipe_duplicate: 0.92
limits:
  max_candidates: 3
  recipe_retries: 2
  enrichment_timeout: 5s
  parallelism: 8
  embedding_cache_size: 64
embedding:
  base_url: http://localhost:8080/v1/embeddings
  model: all-minilm
  dim: 384
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Thresholds.AutoAccept != 0.9 {
		t.Errorf("AutoAccept = %v, want 0.9", cfg.Thresholds.AutoAccept)
	}
	if time.Duration(cfg.Limits.EnrichmentTimeout) != 5*time.Second {
		t.Errorf("EnrichmentTimeout = %v, want 5s", cfg.Limits.EnrichmentTimeout)
	}
	if cfg.Limits.Parallelism != 8 {
		t.Errorf("Parallelism = %d, want 8", cfg.Limits.Parallelism)
	}
	if cfg.Embedding.Dim != 384 {
		t.Errorf("Embedding.Dim = %d, want 384", cfg.Embedding.Dim)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.AutoAccept = 1.5
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Validate = %v, want ErrInvalidConfig", err)
	}

	cfg = Default()
	cfg.Thresholds.ConfirmFloor = 0.95 // above auto_accept
	if err := cfg.Validate(); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Validate = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	content := `
items:
  - canonical_name: chicken_breast
    aliases: [chicken breast, chkn brst]
    category: protein
    nutrition:
      calories: 165
      protein: 31
  - canonical_name: cucumber
    category: vegetable
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sf, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if len(sf.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(sf.Items))
	}
	if sf.Items[0].CanonicalName != "chicken_breast" || sf.Items[0].Nutrition.Protein != 31 {
		t.Errorf("first item = %+v", sf.Items[0])
	}
}
