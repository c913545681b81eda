package catalog

import (
	"fmt"

	"github.com/DreamCats/equipid/internal/config"
)

// Open builds the catalog selected by cfg.Backend.
func Open(cfg *config.CatalogConfig) (Catalog, error) {
	switch cfg.Backend {
	case config.BackendQdrant, "":
		if cfg.URL == "" {
			return nil, fmt.Errorf("catalog url is required for the qdrant backend")
		}
		return NewQdrantCatalog(cfg.URL, cfg.APIKey, cfg.Timeout), nil
	case config.BackendLocal:
		return OpenLocal(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported catalog backend: %s", cfg.Backend)
	}
}

// SpecFromConfig returns the collection spec for the configured collection
// with vectors of the given size.
func SpecFromConfig(cfg *config.CatalogConfig, vectorSize int) (CollectionSpec, error) {
	distance, err := ParseDistance(cfg.Distance)
	if err != nil {
		return CollectionSpec{}, err
	}
	return CollectionSpec{
		Name:       cfg.Collection,
		VectorSize: vectorSize,
		Distance:   distance,
	}, nil
}
