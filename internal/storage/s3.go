// Package storage wraps the S3-compatible object store holding voice note
// audio.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"mosaic/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileStore is a thin bucket-scoped wrapper around the S3 client.
type FileStore struct {
	client *s3.Client
	bucket string
}

// NewFileStore builds a FileStore from the AWS_* environment variables.
// Returns nil when the configuration cannot be loaded; callers treat a nil
// store as "no file storage available".
func NewFileStore(ctx context.Context) *FileStore {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")
	bucket := util.GetEnv("AWS_BUCKET")

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		return nil
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return &FileStore{client: client, bucket: bucket}
}

// GetFile downloads an object in full. Transient S3 errors are retried a
// couple of times before the pipeline sees them.
func (f *FileStore) GetFile(ctx context.Context, key string) ([]byte, error) {
	return util.RetryWithContext(ctx, 3, func(ctx context.Context) ([]byte, error) {
		result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(f.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get file from S3: %w", err)
		}
		defer result.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, result.Body); err != nil {
			return nil, fmt.Errorf("failed to read file contents: %w", err)
		}
		return buf.Bytes(), nil
	})
}
