package ports

import (
	"context"
	"time"
)

// BlobStorage stores signature images and rendered PDFs.
type BlobStorage interface {
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, path string) ([]byte, error)
	Delete(ctx context.Context, bucket, path string) error
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
}
