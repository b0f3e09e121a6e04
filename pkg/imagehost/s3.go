package imagehost

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds S3 connection details. BaseEndpoint is optional and points
// the client at an S3-compatible service.
type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
	PublicURL    string
}

// S3 uploads pictures to an S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
	base   string
}

func NewS3(ctx context.Context, c S3Config) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	base := c.PublicURL
	if base == "" {
		base = c.BaseEndpoint
	}
	if base == "" {
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", c.Region)
	}
	return &S3{client: client, bucket: c.Bucket, base: base}, nil
}

// Upload stores data under folder and returns the object's URL.
func (s *S3) Upload(ctx context.Context, data []byte, contentType, folder string) (string, error) {
	key := ObjectKey(folder, contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s: %w", key, err)
	}
	return publicURL(s.base, s.bucket, key), nil
}
