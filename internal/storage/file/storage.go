package file

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/image-compressor/internal/config"
)

// Storage mirrors compressed artifacts into an S3-compatible bucket using MinIO.
type Storage struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewStorage connects to the MinIO server described by cfg and makes sure the
// bucket is there. Artifacts are stored under prefix inside the bucket.
func NewStorage(ctx context.Context, cfg config.Storage, prefix string) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client for %s: %w", cfg.Endpoint, err)
	}

	s := &Storage{client: client, bucket: cfg.BucketName, prefix: prefix}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// ensureBucket creates the bucket unless it exists. Losing a creation race to
// another compressor instance is not an error.
func (s *Storage) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	return nil
}

// ObjectName places name under the storage prefix.
func (s *Storage) ObjectName(name string) string {
	return path.Join(s.prefix, name)
}

// Upload copies the local file src into the bucket as ObjectName(name)
// and returns the stored object key.
func (s *Storage) Upload(ctx context.Context, name, src string) (string, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, s.ObjectName(name), src, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", src, err)
	}

	return info.Key, nil
}

// Bucket returns the bucket artifacts are mirrored into.
func (s *Storage) Bucket() string {
	return s.bucket
}
