package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/noah-isme/dataportal-api/pkg/config"
)

// ErrObjectNotFound is returned by Open when the bucket or key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore is the read-only view of object storage used by the catalog.
// Exists reports (false, nil) for an absent key and a non-nil error only when
// the backend could not be reached.
type BlobStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Close() error
}

// New builds the backend selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case config.StorageDriverGCS:
		return NewGCSStore(ctx, cfg.GCSCredentialsFile)
	case config.StorageDriverAzure:
		return NewAzureStore(cfg.AzureConnectionString)
	case config.StorageDriverLocal, "":
		return NewLocalStorage(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
