package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Catalog is the seed document for the in-memory backend: brands and plans
// loaded at daemon start so local deployments have something to produce
// against.
type Catalog struct {
	Brands    []Brand    `json:"brands"`
	PostPlans []PostPlan `json:"postPlans"`
}

// LoadCatalog seeds the store from a JSON catalog file. A missing file is
// not an error; an unreadable or malformed one is.
func (s *MemoryStore) LoadCatalog(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return 0, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for _, brand := range catalog.Brands {
		if brand.ID == "" {
			return 0, fmt.Errorf("catalog %s: brand without id", path)
		}
		s.SeedBrand(brand)
	}
	for _, plan := range catalog.PostPlans {
		if plan.ID == "" {
			return 0, fmt.Errorf("catalog %s: post plan without id", path)
		}
		s.SeedPostPlan(plan)
	}
	return len(catalog.Brands) + len(catalog.PostPlans), nil
}
