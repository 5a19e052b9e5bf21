package agents

import (
	"context"

	"postforge/internal/docstore"
)

// Draft is the copywriter phase output.
type Draft struct {
	ContentRef string
	Caption    string
	Hashtags   []string
}

// DraftRequest carries everything a copywriter needs for one run.
type DraftRequest struct {
	RunTraceID string
	Brand      *docstore.Brand
	Plan       *docstore.PostPlan
}

// Copywriter produces draft copy for a post plan.
type Copywriter interface {
	Draft(ctx context.Context, req DraftRequest) (*Draft, error)
}

// Image is generated media ready for the media store.
type Image struct {
	Data        []byte
	ContentType string
	Provider    string
}

// ImageRequest carries the prompt context for media generation.
type ImageRequest struct {
	RunTraceID string
	Plan       *docstore.PostPlan
	Caption    string
}

// ImageGenerator produces media for a drafted post.
type ImageGenerator interface {
	Generate(ctx context.Context, req ImageRequest) (*Image, error)
}

// ToolSource answers the lookups remote agents request mid-run. The document
// store satisfies it.
type ToolSource interface {
	GetBrand(ctx context.Context, brandID string) (*docstore.Brand, error)
	GetPostPlan(ctx context.Context, postPlanID string) (*docstore.PostPlan, error)
}
