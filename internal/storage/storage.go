// Package storage defines the object storage capability used by uploads.
// Swap implementations by changing the driver selected at startup:
// the MinIO backend works with any S3-compatible provider, the S3 backend
// talks to AWS (or a custom endpoint) through the official SDK.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/everstar/backend/internal/config"
)

// Metadata is attached to every stored object.
type Metadata struct {
	ContentLength int64
	ContentType   string
}

// Backend is the interface for writing objects and resolving their URLs.
type Backend interface {
	// PutObject streams body into bucket under key, replacing any existing object.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, meta Metadata) error
	// URL returns the canonical, resolvable address of (bucket, key).
	URL(bucket, key string) string
}

// Open builds the backend selected by cfg.Driver. For MinIO the bucket is
// created and made publicly readable if needed.
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMinio:
		m, err := NewMinio(cfg)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx, cfg.Bucket); err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverS3:
		return NewS3(ctx, cfg)
	case config.DriverMemory:
		return NewMemory(cfg.PublicBase), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// escapeKey percent-encodes key for use in a URL path, keeping "/" separators.
func escapeKey(key string) string {
	return (&url.URL{Path: key}).EscapedPath()
}

// pathStyleURL joins base, bucket and key as "base/bucket/key".
func pathStyleURL(base, bucket, key string) string {
	return strings.TrimRight(base, "/") + "/" + bucket + "/" + escapeKey(key)
}
