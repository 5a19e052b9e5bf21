package docstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It backs local development
// and tests, and is the daemon's fallback when no Cosmos connection is
// configured.
type MemoryStore struct {
	mu     sync.RWMutex
	brands map[string]Brand
	plans  map[string]PostPlan
	posts  map[string]Post
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		brands: make(map[string]Brand),
		plans:  make(map[string]PostPlan),
		posts:  make(map[string]Post),
	}
}

// SeedBrand registers a brand document.
func (s *MemoryStore) SeedBrand(brand Brand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands[brand.ID] = brand
}

// SeedPostPlan registers a post plan document.
func (s *MemoryStore) SeedPostPlan(plan PostPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
}

func (s *MemoryStore) GetBrand(_ context.Context, brandID string) (*Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	brand, ok := s.brands[brandID]
	if !ok {
		return nil, nil
	}
	return &brand, nil
}

func (s *MemoryStore) GetPostPlan(_ context.Context, postPlanID string) (*PostPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan, ok := s.plans[postPlanID]
	if !ok {
		return nil, nil
	}
	return &plan, nil
}

func (s *MemoryStore) UpsertDraft(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *post
	stored.Status = PostStatusDraft
	s.posts[stored.ID] = stored
	return nil
}

func (s *MemoryStore) UpsertPublishedPost(_ context.Context, post *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *post
	stored.Status = PostStatusPublished
	if stored.PublishedAtUtc.IsZero() {
		stored.PublishedAtUtc = time.Now().UTC()
	}
	s.posts[stored.ID] = stored
	return nil
}

func (s *MemoryStore) GetPost(_ context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return &post, nil
}

func (s *MemoryStore) Close() error { return nil }
