package imagehost

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds MinIO connection details.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL overrides the scheme://host used in returned URLs.
	PublicURL string
}

// Minio uploads pictures to a MinIO bucket.
type Minio struct {
	client *minio.Client
	bucket string
	base   string
}

func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	base := cfg.PublicURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	return &Minio{client: client, bucket: cfg.Bucket, base: base}, nil
}

// Upload stores data under folder and returns the object's URL.
func (m *Minio) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	key := ObjectKey(folder, contentType)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio upload %s: %w", key, err)
	}
	return publicURL(m.base, m.bucket, key), nil
}
