package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// AzureStore maps buckets to Azure Blob Storage containers.
type AzureStore struct {
	client *service.Client
}

// NewAzureStore connects using a storage account connection string.
func NewAzureStore(connectionString string) (*AzureStore, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("azure connection string required")
	}
	client, err := service.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

func (s *AzureStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	blobClient := s.client.NewContainerClient(bucket).NewBlobClient(key)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if isAzureNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("azure properties %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *AzureStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	blobClient := s.client.NewContainerClient(bucket).NewBlobClient(key)
	resp, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("azure download %s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

func (s *AzureStore) Close() error { return nil }

func isAzureNotFound(err error) bool {
	return bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound)
}
