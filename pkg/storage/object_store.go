// Package storage archives generated visual payloads in S3-compatible object
// storage so expensive generations can be replayed without another model call.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// VisualArchive stores and retrieves generated visual documents.
type VisualArchive interface {
	PutJSON(ctx context.Context, key string, doc any) error
	GetJSON(ctx context.Context, key string, doc any) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioArchive implements VisualArchive on MinIO or any S3-compatible store.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to the object store and ensures the bucket exists.
func NewMinioArchive(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioArchive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioArchive{client: client, bucket: bucket}, nil
}

// PutJSON uploads doc serialized as a JSON object under key.
func (m *MinioArchive) PutJSON(ctx context.Context, key string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode visual: %w", err)
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put visual: %w", err)
	}
	return nil
}

// GetJSON fetches the object at key and decodes it into doc.
func (m *MinioArchive) GetJSON(ctx context.Context, key string, doc any) error {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get visual: %w", err)
	}
	defer obj.Close()
	payload, err := io.ReadAll(obj)
	if err != nil {
		return fmt.Errorf("read visual: %w", err)
	}
	if err := json.Unmarshal(payload, doc); err != nil {
		return fmt.Errorf("decode visual: %w", err)
	}
	return nil
}

// PresignGet generates a pre-signed GET URL for sharing an archived visual.
func (m *MinioArchive) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}

// Delete removes an archived visual.
func (m *MinioArchive) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete visual: %w", err)
	}
	return nil
}
