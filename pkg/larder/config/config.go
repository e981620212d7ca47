package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/larderhq/larder/pkg/larder/gate"
	"github.com/larderhq/larder/pkg/larder/internalerr"
)

// Config is the engine configuration. Thresholds are kept in a single
// table here rather than scattered as literals.
type Config struct {
	Thresholds  gate.Thresholds `yaml:"thresholds"`
	Limits      Limits          `yaml:"limits"`
	Embedding   Client          `yaml:"embedding"`
	LLM         Client          `yaml:"llm"`
	NutritionDB Client          `yaml:"nutrition_db"`
}

// Limits bounds resource use during ingestion.
type Limits struct {
	MaxCandidates      int      `yaml:"max_candidates"`     // ranked candidates kept per pending confirmation
	RecipeRetries      int      `yaml:"recipe_retries"`     // regeneration budget on duplicate recipes
	EnrichmentTimeout  Duration `yaml:"enrichment_timeout"` // bound on one external enrichment
	Parallelism        int      `yaml:"parallelism"`        // concurrent mentions per request
	EmbeddingCacheSize int      `yaml:"embedding_cache_size"`
}

// Duration wraps time.Duration so YAML files can say "10s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration %q: %w", value.Value, internalerr.ErrInvalidConfig)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Client configures one external HTTP collaborator.
type Client struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Dim     int    `yaml:"dim"`
}

// Default returns the fixed policy constants and sane limits.
func Default() Config {
	return Config{
		Thresholds: gate.DefaultThresholds(),
		Limits: Limits{
			MaxCandidates:      5,
			RecipeRetries:      3,
			EnrichmentTimeout:  Duration(10 * time.Second),
			Parallelism:        4,
			EmbeddingCacheSize: 1024,
		},
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks threshold ordering and limit sanity.
func (c Config) Validate() error {
	t := c.Thresholds
	for name, v := range map[string]float64{
		"auto_accept":      t.AutoAccept,
		"confirm_floor":    t.ConfirmFloor,
		"seed_floor":       t.SeedFloor,
		"recipe_duplicate": t.RecipeDuplicate,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("threshold %s=%v out of (0,1]: %w", name, v, internalerr.ErrInvalidConfig)
		}
	}
	if t.ConfirmFloor > t.AutoAccept {
		return fmt.Errorf("confirm_floor above auto_accept: %w", internalerr.ErrInvalidConfig)
	}
	if c.Limits.Parallelism < 1 {
		return fmt.Errorf("parallelism must be >= 1: %w", internalerr.ErrInvalidConfig)
	}
	if c.Limits.EnrichmentTimeout <= 0 {
		return fmt.Errorf("enrichment_timeout must be positive: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}
