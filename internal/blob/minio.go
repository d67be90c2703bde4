package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds MinIO connection settings.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinIOStore implements Store against a MinIO (or S3-compatible) server.
// Containers map to buckets, created on first use.
type MinIOStore struct {
	client *minio.Client
	logger *slog.Logger

	mu      sync.Mutex
	buckets map[string]bool
}

var _ Store = (*MinIOStore)(nil)

// NewMinIOStore connects to the configured MinIO endpoint.
func NewMinIOStore(cfg MinIOConfig, logger *slog.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MinIOStore{client: client, logger: logger, buckets: make(map[string]bool)}, nil
}

// Download fetches the object at container/path.
func (s *MinIOStore) Download(ctx context.Context, container, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, container, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", container, path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, container, path)
		}
		return nil, fmt.Errorf("read object %s/%s: %w", container, path, err)
	}
	return data, nil
}

// Upload stores data at container/path, creating the bucket if needed.
func (s *MinIOStore) Upload(ctx context.Context, container, path string, data []byte, contentType string) (Ref, error) {
	if err := s.ensureBucket(ctx, container); err != nil {
		return Ref{}, err
	}

	_, err := s.client.PutObject(ctx, container, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Ref{}, fmt.Errorf("put object %s/%s: %w", container, path, err)
	}

	s.logger.Debug("blob uploaded", "container", container, "path", path, "size", len(data))
	return Ref{Container: container, Path: path, SizeBytes: int64(len(data))}, nil
}

func (s *MinIOStore) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	known := s.buckets[bucket]
	s.mu.Unlock()
	if known {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", bucket, err)
		}
		s.logger.Info("bucket created", "bucket", bucket)
	}

	s.mu.Lock()
	s.buckets[bucket] = true
	s.mu.Unlock()
	return nil
}
