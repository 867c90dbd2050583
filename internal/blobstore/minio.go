package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/LyngualLabs/SpeechAppBackendV2/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const publicReadPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"AWS": ["*"]},
    "Action": ["s3:GetObject"],
    "Resource": ["arn:aws:s3:::%s/*"]
  }]
}`

// MinioStore writes objects to an S3-compatible bucket through a single shared client.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	log     *zap.Logger
}

func NewMinioStore(cfg config.BlobConfig, log *zap.Logger) (*MinioStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("blob bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if baseURL == "" {
		scheme := "http://"
		if cfg.UseSSL {
			scheme = "https://"
		}
		baseURL = scheme + cfg.Endpoint + "/" + cfg.Bucket
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
		log:     log.Named("blobstore.minio"),
	}, nil
}

// EnsureBucket creates the bucket when missing and grants anonymous read on objects.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket exists: %v", ErrUnavailable, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: make bucket: %v", ErrUnavailable, err)
		}
		m.log.Info("bucket created", zap.String("bucket", m.bucket))
	}
	if err := m.client.SetBucketPolicy(ctx, m.bucket, fmt.Sprintf(publicReadPolicy, m.bucket)); err != nil {
		return fmt.Errorf("%w: set bucket policy: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// MakePublic confirms the object exists and returns its URL. Objects are readable
// through the bucket policy set in EnsureBucket.
func (m *MinioStore) MakePublic(ctx context.Context, key string) (string, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: stat %s: %v", ErrUnavailable, key, err)
	}
	return m.PublicURL(key), nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (m *MinioStore) PublicURL(key string) string {
	return m.baseURL + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
