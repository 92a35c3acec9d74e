package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the object-storage connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioBlobStore keeps uploaded bytes in an object-storage bucket. The
// locator is the object name.
type MinioBlobStore struct {
	client *minio.Client
	bucket string
}

// NewMinioBlobStore connects to object storage and ensures the bucket
// exists.
func NewMinioBlobStore(ctx context.Context, cfg MinioConfig) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket: %w", err)
		}
	}

	return &MinioBlobStore{client: client, bucket: cfg.Bucket}, nil
}

var _ BlobStore = (*MinioBlobStore)(nil)

// Save uploads r as an object named key.
func (s *MinioBlobStore) Save(ctx context.Context, key string, r io.Reader) (string, int64, error) {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", 0, fmt.Errorf("uploading object: %w", err)
	}
	return key, info.Size, nil
}

// Open streams the object at locator.
func (s *MinioBlobStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, locator, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("getting object: %w", err)
	}
	// GetObject is lazy; probe so absent objects surface here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("checking object: %w", err)
	}
	return obj, nil
}

// Remove deletes the object at locator.
func (s *MinioBlobStore) Remove(ctx context.Context, locator string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, locator, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("removing object: %w", err)
	}
	return nil
}
