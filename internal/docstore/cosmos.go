package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"

	"postforge/internal/logging"
)

// Container names for the reference documents. Posts live in the container
// named by configuration; brands and plans have fixed homes.
const (
	brandsContainer = "brands"
	plansContainer  = "postPlans"
)

// CosmosStore reads brands and post plans and writes produced posts to
// Azure Cosmos DB.
type CosmosStore struct {
	brands *azcosmos.ContainerClient
	plans  *azcosmos.ContainerClient
	posts  *azcosmos.ContainerClient
	logger *slog.Logger
}

// CosmosOptions configures the remote document store.
type CosmosOptions struct {
	ConnectionString string
	Database         string
	PostsContainer   string
}

// OpenCosmos connects to the brands, post plans, and posts containers.
func OpenCosmos(opts CosmosOptions, logger *slog.Logger) (*CosmosStore, error) {
	if strings.TrimSpace(opts.ConnectionString) == "" {
		return nil, errors.New("cosmos doc store: connection string required")
	}
	client, err := azcosmos.NewClientFromConnectionString(opts.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("cosmos doc store: new client: %w", err)
	}

	store := &CosmosStore{logger: logging.NewComponentLogger(logger, "docstore-cosmos")}
	for _, binding := range []struct {
		name   string
		target **azcosmos.ContainerClient
	}{
		{brandsContainer, &store.brands},
		{plansContainer, &store.plans},
		{opts.PostsContainer, &store.posts},
	} {
		container, err := client.NewContainer(opts.Database, binding.name)
		if err != nil {
			return nil, fmt.Errorf("cosmos doc store: container %q: %w", binding.name, err)
		}
		*binding.target = container
	}
	return store, nil
}

func (s *CosmosStore) Close() error { return nil }

func (s *CosmosStore) GetBrand(ctx context.Context, brandID string) (*Brand, error) {
	var brand Brand
	found, err := readByID(ctx, s.brands, brandID, &brand)
	if err != nil || !found {
		return nil, err
	}
	return &brand, nil
}

func (s *CosmosStore) GetPostPlan(ctx context.Context, postPlanID string) (*PostPlan, error) {
	var plan PostPlan
	found, err := readByID(ctx, s.plans, postPlanID, &plan)
	if err != nil || !found {
		return nil, err
	}
	return &plan, nil
}

func (s *CosmosStore) UpsertDraft(ctx context.Context, post *Post) error {
	doc := *post
	doc.Status = PostStatusDraft
	return s.upsertPost(ctx, &doc)
}

func (s *CosmosStore) UpsertPublishedPost(ctx context.Context, post *Post) error {
	doc := *post
	doc.Status = PostStatusPublished
	if doc.PublishedAtUtc.IsZero() {
		doc.PublishedAtUtc = time.Now().UTC()
	}
	return s.upsertPost(ctx, &doc)
}

func (s *CosmosStore) GetPost(ctx context.Context, id string) (*Post, error) {
	var post Post
	found, err := readByID(ctx, s.posts, id, &post)
	if err != nil || !found {
		return nil, err
	}
	return &post, nil
}

func (s *CosmosStore) upsertPost(ctx context.Context, post *Post) error {
	encoded, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("cosmos doc store: encode post: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(post.BrandID)
	if _, err := s.posts.UpsertItem(ctx, pk, encoded, nil); err != nil {
		return fmt.Errorf("cosmos doc store: upsert post %s: %w", post.ID, err)
	}
	return nil
}

// readByID point-reads assuming id-valued partition keys, then falls back to
// a cross-partition query so containers partitioned on another path still
// resolve.
func readByID(ctx context.Context, container *azcosmos.ContainerClient, id string, out any) (bool, error) {
	resp, err := container.ReadItem(ctx, azcosmos.NewPartitionKeyString(id), id, nil)
	if err == nil {
		if err := json.Unmarshal(resp.Value, out); err != nil {
			return false, fmt.Errorf("cosmos doc store: decode item %s: %w", id, err)
		}
		return true, nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode != http.StatusNotFound && respErr.StatusCode != http.StatusBadRequest {
		return false, fmt.Errorf("cosmos doc store: read %s: %w", id, err)
	}

	pager := container.NewQueryItemsPager(
		"SELECT * FROM c WHERE c.id = @id",
		azcosmos.PartitionKey{},
		&azcosmos.QueryOptions{QueryParameters: []azcosmos.QueryParameter{{Name: "@id", Value: id}}},
	)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("cosmos doc store: query %s: %w", id, err)
		}
		for _, raw := range page.Items {
			if err := json.Unmarshal(raw, out); err != nil {
				return false, fmt.Errorf("cosmos doc store: decode query item %s: %w", id, err)
			}
			return true, nil
		}
	}
	return false, nil
}
