package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Region        string
	Bucket        string
	PublicBaseURL string
}

// S3 uploads to an S3-compatible bucket (AWS S3 or MinIO).
type S3 struct {
	client  *mclient.Client
	bucket  string
	baseURL string
}

// NewS3 normalises the endpoint, picks TLS from its scheme and fails fast
// when the bucket is missing.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	const op = "media/s3/New"

	endpoint := cfg.Endpoint
	secure := true
	if u, err := url.Parse(endpoint); err == nil && u.Scheme != "" && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := mclient.New(endpoint, &mclient.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return nil, fmt.Errorf("%s: bucket %q does not exist", op, cfg.Bucket)
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" || strings.HasPrefix(base, "/") {
		scheme := "https"
		if !secure {
			scheme = "http"
		}
		base = scheme + "://" + endpoint + "/" + cfg.Bucket
	}

	return &S3{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

func (s *S3) Upload(ctx context.Context, data []byte, contentType, key string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		mclient.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("media/s3/Upload: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, mclient.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("media/s3/Delete: %w", err)
	}
	return nil
}

var _ Uploader = (*S3)(nil)
