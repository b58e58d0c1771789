package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"leadmarket_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// PresignedURLTTL is the lifetime of download links handed to listings.
	PresignedURLTTL = 15 * time.Minute
)

// MinIOService presigns reads against an S3-compatible bucket.
type MinIOService struct {
	client *minio.Client
	ttl    time.Duration
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg config.MinIOConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client, ttl: PresignedURLTTL}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for fileKey.
func (s *MinIOService) PresignGet(ctx context.Context, bucket, fileKey string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, fileKey, s.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", fileKey, err)
	}
	return u.String(), nil
}
