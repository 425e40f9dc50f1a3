package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dbawebdesign/lailms-ingest/storage"
)

// S3Options configures the S3 blob store. Endpoint is optional and points at
// an S3-compatible service (MinIO, R2); when set, path-style addressing is
// forced because most compatible services do not resolve bucket subdomains.
type S3Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	PathStyle       bool
}

// S3Store is an S3-backed blob store for shared deployments.
type S3Store struct {
	client *s3.Client
}

var _ storage.BlobStore = (*S3Store)(nil)

// NewS3Store creates an S3 blob store from static credentials.
func NewS3Store(opts S3Options) (*S3Store, error) {
	if opts.Region == "" || opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, fmt.Errorf("incomplete s3 config: region/access_key_id/secret_access_key are required")
	}

	cfg := aws.Config{
		Region:      opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
	}

	pathStyle := opts.PathStyle
	if opts.Endpoint != "" {
		pathStyle = true
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	return &S3Store{client: client}, nil
}

// Download retrieves the object at bucket/path.
func (s *S3Store) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: blob %s/%s", storage.ErrNotFound, bucket, path)
		}
		return nil, fmt.Errorf("downloading blob %s/%s: %w", bucket, path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s/%s: %w", bucket, path, err)
	}
	return data, nil
}

// Upload stores an object at bucket/path, overwriting any existing object.
func (s *S3Store) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading blob %s/%s: %w", bucket, path, err)
	}
	return nil
}
