package testsupport

import (
	"testing"

	"postforge/internal/config"
	"postforge/internal/docstore"
	"postforge/internal/logging"
	"postforge/internal/runstate"
)

// MustOpenRunStore opens the run state store for tests and registers cleanup.
func MustOpenRunStore(t testing.TB, cfg *config.Config) runstate.Store {
	t.Helper()

	store, err := runstate.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("runstate.New: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeededDocs returns an in-memory document store with one brand and two
// plans, one of them text-only.
func SeededDocs(t testing.TB) *docstore.MemoryStore {
	t.Helper()

	docs := docstore.NewMemory()
	docs.SeedBrand(docstore.Brand{ID: "acme", Name: "Acme Co", Voice: "dry"})
	docs.SeedPostPlan(docstore.PostPlan{ID: "summer", BrandID: "acme", Title: "Summer sale", Topic: "beach gear"})
	docs.SeedPostPlan(docstore.PostPlan{ID: "memo", BrandID: "acme", Title: "Text memo", TextOnly: true})
	return docs
}
