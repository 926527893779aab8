package inventory

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

type catalogFile struct {
	Inventories []Profile `yaml:"inventories"`
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Inventories)
}

// LoadCatalog reads the catalog at path, or the built-in five-inventory
// catalog when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Default returns the built-in catalog:
// interests, skills, values, traits, learning-style.
func Default() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}
