package storage

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/caremarket/onboarding-api/internal/logging"
)

// BlobStore writes document blobs to object storage.
type BlobStore interface {
	Write(ctx context.Context, objectPath, contentType string, r io.Reader) (string, int64, error)
	Delete(ctx context.Context, objectPath string) error
}

// GCSStore is the Google Cloud Storage implementation of BlobStore.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *logging.SafeLogger
}

// NewGCSStore creates a GCS-backed blob store for the given bucket.
// Credentials come from the ambient service account.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		logger: logging.Logger.With(zap.String("bucket", bucket)),
	}, nil
}

// Write streams r into the object at objectPath and returns the gs:// URL
// and byte count. The object is overwritten if it already exists; callers
// build collision-free paths with a timestamp suffix.
func (s *GCSStore) Write(ctx context.Context, objectPath, contentType string, r io.Reader) (string, int64, error) {
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType

	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		s.logger.Error("failed to write blob",
			zap.String("object", objectPath),
			zap.Error(err))
		return "", 0, fmt.Errorf("failed to write blob %s: %w", objectPath, err)
	}

	if err := w.Close(); err != nil {
		s.logger.Error("failed to finalize blob write",
			zap.String("object", objectPath),
			zap.Error(err))
		return "", 0, fmt.Errorf("failed to finalize blob %s: %w", objectPath, err)
	}

	url := fmt.Sprintf("gs://%s/%s", s.bucket, objectPath)
	s.logger.Debug("blob written",
		zap.String("object", objectPath),
		zap.Int64("size", size))

	return url, size, nil
}

// Delete removes the object at objectPath. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, objectPath string) error {
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil {
		if err == storage.ErrObjectNotExist {
			return nil
		}
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			return nil
		}
		return fmt.Errorf("failed to delete blob %s: %w", objectPath, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
