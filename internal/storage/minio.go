package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"

	"github.com/everstar/backend/internal/config"
)

// Minio implements Backend using a MinIO (or any S3-compatible) server.
type Minio struct {
	client     *minio.Client
	publicBase string
}

// NewMinio creates a MinIO client. No request is made until the first call.
func NewMinio(cfg config.StorageConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	base := cfg.PublicBase
	if base == "" {
		base = client.EndpointURL().String()
	}

	return &Minio{client: client, publicBase: base}, nil
}

// EnsureBucket creates bucket if it does not exist and applies a public-read policy,
// so that URLs returned by URL resolve without credentials.
func (s *Minio) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %q: %w", bucket, err)
		}
		log.Info().Str("bucket", bucket).Msg("storage: created bucket")
	}

	if err := s.client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket)); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	return nil
}

// PutObject streams body to MinIO. meta.ContentLength is handed to the client as is;
// -1 means unknown and makes MinIO buffer the stream.
func (s *Minio) PutObject(ctx context.Context, bucket, key string, body io.Reader, meta Metadata) error {
	_, err := s.client.PutObject(ctx, bucket, key, body, meta.ContentLength, minio.PutObjectOptions{
		ContentType: meta.ContentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// URL returns the path-style address of the object.
// For local MinIO: "http://localhost:9000/everstar/avatar.png"
func (s *Minio) URL(bucket, key string) string {
	return pathStyleURL(s.publicBase, bucket, key)
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
