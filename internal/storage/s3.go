package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/everstar/backend/internal/config"
)

// S3 implements Backend on top of the AWS SDK. A custom endpoint turns it into a
// client for any S3-compatible service.
type S3 struct {
	client     *s3.Client
	region     string
	endpoint   *url.URL // nil means AWS itself
	pathStyle  bool
	publicBase string
}

// NewS3 loads the AWS configuration for cfg.Region. Static credentials are used when
// an access key is configured, otherwise the default credential chain applies.
func NewS3(ctx context.Context, cfg config.StorageConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var endpoint *url.URL
	if cfg.Endpoint != "" {
		endpoint, err = parseEndpoint(cfg.Endpoint, cfg.UseSSL)
		if err != nil {
			return nil, err
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != nil {
			o.BaseEndpoint = aws.String(endpoint.String())
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3{
		client:     client,
		region:     cfg.Region,
		endpoint:   endpoint,
		pathStyle:  cfg.PathStyle,
		publicBase: cfg.PublicBase,
	}, nil
}

// PutObject issues a single PutObject request. A negative ContentLength means
// unknown and is not sent; an empty ContentType is left to the service default.
func (s *S3) PutObject(ctx context.Context, bucket, key string, body io.Reader, meta Metadata) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if meta.ContentLength >= 0 {
		input.ContentLength = aws.Int64(meta.ContentLength)
	}
	if meta.ContentType != "" {
		input.ContentType = aws.String(meta.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// URL follows the addressing the SDK uses for the request itself:
// virtual-hosted by default, path-style when configured.
func (s *S3) URL(bucket, key string) string {
	if s.publicBase != "" {
		return pathStyleURL(s.publicBase, bucket, key)
	}

	if s.endpoint == nil {
		if s.pathStyle {
			return pathStyleURL(fmt.Sprintf("https://s3.%s.amazonaws.com", s.region), bucket, key)
		}
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, escapeKey(key))
	}

	if s.pathStyle {
		return pathStyleURL(s.endpoint.String(), bucket, key)
	}
	return fmt.Sprintf("%s://%s.%s/%s", s.endpoint.Scheme, bucket, s.endpoint.Host, escapeKey(key))
}

// parseEndpoint accepts either a full URL or a bare host[:port].
func parseEndpoint(raw string, useSSL bool) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		raw = scheme + "://" + raw
	}

	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse storage endpoint: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("storage endpoint %q has no host", raw)
	}
	return u, nil
}
