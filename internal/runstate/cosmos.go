package runstate

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
	"postforge/internal/retry"
	"postforge/internal/run"
)

// CosmosStore persists run state in an Azure Cosmos DB container.
//
// Point lookups try a direct keyed read first and fall back to a
// cross-partition query by id, so the store works regardless of how the
// container's partition key is configured.
type CosmosStore struct {
	container *azcosmos.ContainerClient
	logger    *slog.Logger
	pkPath    string
}

// CosmosOptions configures the remote backend.
type CosmosOptions struct {
	ConnectionString string
	Database         string
	Container        string
}

type cosmosRunDoc struct {
	ID           string         `json:"id"`
	PartitionKey string         `json:"partitionKey"`
	RunTraceID   string         `json:"runTraceId"`
	CurrentPhase run.Phase      `json:"currentPhase"`
	Status       run.Status     `json:"status"`
	IsComplete   bool           `json:"isComplete"`
	BrandID      string         `json:"brandId,omitempty"`
	PostPlanID   string         `json:"postPlanId,omitempty"`
	Summary      map[string]any `json:"summary,omitempty"`
	LastUpdate   string         `json:"lastUpdateUtc"`
	Events       []run.Event    `json:"events,omitempty"`
}

// OpenCosmos connects to the configured container and sniffs its
// partition-key path once.
func OpenCosmos(opts CosmosOptions, logger *slog.Logger) (*CosmosStore, error) {
	if strings.TrimSpace(opts.ConnectionString) == "" {
		return nil, errors.New("cosmos run state: connection string required")
	}
	client, err := azcosmos.NewClientFromConnectionString(opts.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("cosmos run state: new client: %w", err)
	}
	container, err := client.NewContainer(opts.Database, opts.Container)
	if err != nil {
		return nil, fmt.Errorf("cosmos run state: container %q: %w", opts.Container, err)
	}

	store := &CosmosStore{
		container: container,
		logger:    logging.NewComponentLogger(logger, "runstate-cosmos"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if resp, err := container.Read(ctx, nil); err == nil && resp.ContainerProperties != nil {
		paths := resp.ContainerProperties.PartitionKeyDefinition.Paths
		if len(paths) > 0 {
			store.pkPath = strings.ToLower(paths[0])
		}
	}
	store.logger.Info("cosmos run state store ready",
		logging.String("container", opts.Container),
		logging.String("pk_path", store.pkPath),
	)
	return store, nil
}

// Close is a no-op; the SDK client holds no resources needing release.
func (s *CosmosStore) Close() error { return nil }

func (s *CosmosStore) partitionValue(runTraceID, brandID, postPlanID string) string {
	switch s.pkPath {
	case "/brandid":
		if brandID != "" {
			return brandID
		}
	case "/postplanid":
		if postPlanID != "" {
			return postPlanID
		}
	}
	// /runtraceid, /partitionkey, /id, or unknown
	return runTraceID
}

// SetStatus reads, merges, and upserts the run document. The full
// read-modify-write cycle is retried so a transient Cosmos blip does not
// surface to phase logic.
func (s *CosmosStore) SetStatus(ctx context.Context, update Update) error {
	if update.RunTraceID == "" {
		return errors.New("set status: run trace id required")
	}
	return retry.Do(ctx, func() error {
		existing, err := s.readDoc(ctx, update.RunTraceID)
		if err != nil {
			return err
		}
		merged := mergeUpdate(docToState(existing), update)
		return s.upsertState(ctx, merged)
	}, retry.Options{})
}

// GetStatus fetches a run record; (nil, nil) when the run is unknown.
func (s *CosmosStore) GetStatus(ctx context.Context, runTraceID string) (*run.RunState, error) {
	doc, err := s.readDoc(ctx, runTraceID)
	if err != nil {
		return nil, err
	}
	return docToState(doc), nil
}

// AddEvent appends to the event log with the same read-then-append cycle as
// the file backend.
func (s *CosmosStore) AddEvent(ctx context.Context, runTraceID string, event run.Event) error {
	if runTraceID == "" {
		return errors.New("add event: run trace id required")
	}
	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}
	return retry.Do(ctx, func() error {
		doc, err := s.readDoc(ctx, runTraceID)
		if err != nil {
			return err
		}
		state := docToState(doc)
		if state == nil {
			state = &run.RunState{
				RunTraceID:   runTraceID,
				CurrentPhase: event.Phase,
				Status:       run.StatusInProgress,
			}
		}
		state.Events = append(state.Events, event)
		state.LastUpdateUtc = time.Now().UTC()
		return s.upsertState(ctx, state)
	}, retry.Options{})
}

// List returns all runs ordered newest-first via a cross-partition query.
func (s *CosmosStore) List(ctx context.Context) ([]*run.RunState, error) {
	query := "SELECT * FROM c ORDER BY c.lastUpdateUtc DESC"
	pager := s.container.NewQueryItemsPager(query, azcosmos.PartitionKey{}, nil)

	var states []*run.RunState
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cosmos run state: list: %w", err)
		}
		for _, raw := range page.Items {
			var doc cosmosRunDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("cosmos run state: decode list item: %w", err)
			}
			states = append(states, docToState(&doc))
		}
	}
	return states, nil
}

// readDoc tries the direct keyed read, then the cross-partition query by id.
// (nil, nil) means the document does not exist.
func (s *CosmosStore) readDoc(ctx context.Context, runTraceID string) (*cosmosRunDoc, error) {
	pk := azcosmos.NewPartitionKeyString(runTraceID)
	resp, err := s.container.ReadItem(ctx, pk, runTraceID, nil)
	if err == nil {
		var doc cosmosRunDoc
		if err := json.Unmarshal(resp.Value, &doc); err != nil {
			return nil, fmt.Errorf("cosmos run state: decode item: %w", err)
		}
		return &doc, nil
	}
	if !isNotFound(err) {
		s.logger.Debug("point read failed, falling back to query", logging.Error(err))
	}

	query := "SELECT * FROM c WHERE c.id = @id OR c.runTraceId = @id"
	pager := s.container.NewQueryItemsPager(query, azcosmos.PartitionKey{}, &azcosmos.QueryOptions{
		QueryParameters: []azcosmos.QueryParameter{{Name: "@id", Value: runTraceID}},
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cosmos run state: query %s: %w", runTraceID, err)
		}
		for _, raw := range page.Items {
			var doc cosmosRunDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("cosmos run state: decode query item: %w", err)
			}
			return &doc, nil
		}
	}
	return nil, nil
}

func (s *CosmosStore) upsertState(ctx context.Context, state *run.RunState) error {
	doc := cosmosRunDoc{
		ID:           state.RunTraceID,
		PartitionKey: state.RunTraceID,
		RunTraceID:   state.RunTraceID,
		CurrentPhase: state.CurrentPhase,
		Status:       state.Status,
		IsComplete:   state.IsComplete,
		BrandID:      state.BrandID,
		PostPlanID:   state.PostPlanID,
		Summary:      state.Summary,
		LastUpdate:   state.LastUpdateUtc.Format(storedTimeFormat),
		Events:       state.Events,
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("cosmos run state: encode doc: %w", err)
	}
	pk := azcosmos.NewPartitionKeyString(s.partitionValue(state.RunTraceID, state.BrandID, state.PostPlanID))
	if _, err := s.container.UpsertItem(ctx, pk, encoded, nil); err != nil {
		return fmt.Errorf("cosmos run state: upsert %s: %w", state.RunTraceID, err)
	}
	return nil
}

func docToState(doc *cosmosRunDoc) *run.RunState {
	if doc == nil {
		return nil
	}
	state := &run.RunState{
		RunTraceID:   doc.RunTraceID,
		CurrentPhase: doc.CurrentPhase,
		Status:       doc.Status,
		IsComplete:   doc.IsComplete,
		BrandID:      doc.BrandID,
		PostPlanID:   doc.PostPlanID,
		Summary:      doc.Summary,
		Events:       doc.Events,
	}
	if state.RunTraceID == "" {
		state.RunTraceID = doc.ID
	}
	if updated, err := time.Parse(time.RFC3339Nano, doc.LastUpdate); err == nil {
		state.LastUpdateUtc = updated
	}
	return state
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
