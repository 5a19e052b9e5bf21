package docstore

import (
	"context"
	"time"
)

// Brand is the voice and audience profile drafts are written against.
type Brand struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Voice       string `json:"voice,omitempty"`
	Audience    string `json:"audience,omitempty"`
	Description string `json:"description,omitempty"`
}

// PostPlan describes one planned piece of content for a brand.
type PostPlan struct {
	ID       string   `json:"id"`
	BrandID  string   `json:"brandId"`
	Title    string   `json:"title"`
	Topic    string   `json:"topic,omitempty"`
	TextOnly bool     `json:"textOnly,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// Post statuses.
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post is the produced artifact: a draft while the pipeline runs, published
// once the publish phase lands it.
type Post struct {
	ID             string    `json:"id"`
	RunTraceID     string    `json:"runTraceId"`
	BrandID        string    `json:"brandId"`
	PostPlanID     string    `json:"postPlanId"`
	Status         string    `json:"status"`
	Caption        string    `json:"caption,omitempty"`
	ContentRef     string    `json:"contentRef,omitempty"`
	Hashtags       []string  `json:"hashtags,omitempty"`
	MediaRef       string    `json:"mediaRef,omitempty"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	Channels       []string  `json:"channels,omitempty"`
	PublishedAtUtc time.Time `json:"publishedAtUtc"`
}

// Store holds the content-domain documents: brands, post plans, and produced
// posts. Lookups return (nil, nil) when the document does not exist.
type Store interface {
	GetBrand(ctx context.Context, brandID string) (*Brand, error)
	GetPostPlan(ctx context.Context, postPlanID string) (*PostPlan, error)
	// UpsertDraft writes the post with draft status; called by the
	// copywriter phase so partial runs leave an inspectable artifact.
	UpsertDraft(ctx context.Context, post *Post) error
	// UpsertPublishedPost marks the post published and stamps the publish
	// time. Idempotent: a redelivered publish message rewrites the same doc.
	UpsertPublishedPost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	Close() error
}
