package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/0SalvadOr0/Intus-sub001/internal/config"
	"github.com/0SalvadOr0/Intus-sub001/internal/model"
)

// minioMirror keeps an off-site copy of uploaded documents in an
// S3-compatible bucket (MinIO, AWS S3, etc.). It is safe for concurrent use.
type minioMirror struct {
	client *minio.Client
	bucket string
}

// NewMinIOMirror creates the backup mirror client. It validates connectivity
// and ensures the bucket exists (creates it if missing).
func NewMinIOMirror(cfg config.MirrorConfig) (Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("mirror endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("mirror credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create mirror client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check mirror bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create mirror bucket: %w", err)
		}
	}

	return &minioMirror{client: cli, bucket: cfg.Bucket}, nil
}

// Put copies a stored document into the bucket under <category>/<name>.
func (m *minioMirror) Put(ctx context.Context, category model.Category, name string, r io.Reader, size int64, contentType string) error {
	key := path.Join(string(category), name)
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("mirror put %s: %w", key, err)
	}
	return nil
}

// Remove deletes the mirrored copy of a document.
func (m *minioMirror) Remove(ctx context.Context, category model.Category, name string) error {
	key := path.Join(string(category), name)
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("mirror remove %s: %w", key, err)
	}
	return nil
}
