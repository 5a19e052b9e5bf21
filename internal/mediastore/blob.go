package mediastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"postforge/internal/logging"
)

// BlobStore uploads media to an Azure Blob Storage container.
type BlobStore struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// BlobOptions configures the blob backend.
type BlobOptions struct {
	ConnectionString string
	Container        string
}

// OpenBlob connects to the storage account named by the connection string.
func OpenBlob(opts BlobOptions, logger *slog.Logger) (*BlobStore, error) {
	if strings.TrimSpace(opts.ConnectionString) == "" {
		return nil, errors.New("blob media store: connection string required")
	}
	client, err := azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("blob media store: new client: %w", err)
	}
	return &BlobStore{
		client:    client,
		container: opts.Container,
		logger:    logging.NewComponentLogger(logger, "mediastore-blob"),
	}, nil
}

func (s *BlobStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, opts); err != nil {
		return "", fmt.Errorf("blob media store: upload %s: %w", name, err)
	}
	url := strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + name
	s.logger.Debug("media uploaded", logging.String("blob", name), logging.Int("bytes", len(data)))
	return url, nil
}

func (s *BlobStore) Close() error { return nil }
