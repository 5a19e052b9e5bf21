package docstore

import (
	"context"
	"testing"
)

func TestMemoryLookupsReturnNilForMissing(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	brand, err := store.GetBrand(ctx, "nope")
	if err != nil || brand != nil {
		t.Fatalf("GetBrand = (%v, %v), want (nil, nil)", brand, err)
	}
	plan, err := store.GetPostPlan(ctx, "nope")
	if err != nil || plan != nil {
		t.Fatalf("GetPostPlan = (%v, %v), want (nil, nil)", plan, err)
	}
	post, err := store.GetPost(ctx, "nope")
	if err != nil || post != nil {
		t.Fatalf("GetPost = (%v, %v), want (nil, nil)", post, err)
	}
}

func TestMemorySeedAndLookup(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	store.SeedBrand(Brand{ID: "acme", Name: "Acme", Voice: "dry"})
	store.SeedPostPlan(PostPlan{ID: "summer", BrandID: "acme", Title: "Summer sale", TextOnly: true})

	brand, err := store.GetBrand(ctx, "acme")
	if err != nil {
		t.Fatalf("GetBrand: %v", err)
	}
	if brand.Name != "Acme" {
		t.Fatalf("brand = %+v", brand)
	}

	plan, err := store.GetPostPlan(ctx, "summer")
	if err != nil {
		t.Fatalf("GetPostPlan: %v", err)
	}
	if !plan.TextOnly || plan.BrandID != "acme" {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestMemoryDraftThenPublish(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	post := &Post{ID: "post-1", RunTraceID: "run-1", BrandID: "acme", PostPlanID: "summer", Caption: "hello"}
	if err := store.UpsertDraft(ctx, post); err != nil {
		t.Fatalf("UpsertDraft: %v", err)
	}

	got, err := store.GetPost(ctx, "post-1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Status != PostStatusDraft {
		t.Fatalf("status = %q, want draft", got.Status)
	}
	if !got.PublishedAtUtc.IsZero() {
		t.Fatal("draft should not carry a publish time")
	}

	// Publishing the same doc twice must converge on one published record.
	for i := 0; i < 2; i++ {
		if err := store.UpsertPublishedPost(ctx, post); err != nil {
			t.Fatalf("UpsertPublishedPost #%d: %v", i+1, err)
		}
	}
	got, err = store.GetPost(ctx, "post-1")
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if got.Status != PostStatusPublished {
		t.Fatalf("status = %q, want published", got.Status)
	}
	if got.PublishedAtUtc.IsZero() {
		t.Fatal("published post missing publish time")
	}
}
