package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore reads objects from Google Cloud Storage buckets.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore connects with the given service account file, or with
// application default credentials when credentialsFile is empty.
func NewGCSStore(ctx context.Context, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if err != nil {
		if isGCSNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func (s *GCSStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("gcs read %s/%s: %w", bucket, key, err)
	}
	return reader, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

func isGCSNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist)
}
