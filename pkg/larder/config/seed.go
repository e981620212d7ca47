package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/larderhq/larder/pkg/larder/store"
)

// SeedItem is one catalog entry in a YAML seed file, used by the
// administrative bootstrap path.
type SeedItem struct {
	CanonicalName string          `yaml:"canonical_name"`
	Aliases       []string        `yaml:"aliases"`
	Category      string          `yaml:"category"`
	Nutrition     store.Nutrition `yaml:"nutrition"`
}

// SeedFile is a manually curated starting catalog.
type SeedFile struct {
	Items []SeedItem `yaml:"items"`
}

// LoadSeed loads a catalog seed file.
func LoadSeed(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return &sf, nil
}
