package assets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/soroforge/soroforge/pkg/storage"
)

var assetTracer = otel.Tracer("soroforge/assets")

// S3Store stores assets in S3 or any S3-compatible endpoint (MinIO)
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
	region   string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3-backed asset store. With explicit access keys it
// uses static credentials (MinIO, scoped IAM users); otherwise the default
// credential chain applies. The bucket is created when missing, which keeps
// local MinIO setups zero-touch.
func NewS3Store(cfg storage.Config) (*S3Store, error) {
	ctx := context.Background()

	var awsConfig aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	if err := createBucketIfNotExists(ctx, client, cfg.S3Bucket); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return &S3Store{
		client:   client,
		bucket:   cfg.S3Bucket,
		endpoint: cfg.S3Endpoint,
		region:   cfg.S3Region,
	}, nil
}

// Put stores content under its content-addressed key, skipping the upload
// when the object already exists
func (s *S3Store) Put(ctx context.Context, content []byte, contentType string) (*Object, error) {
	ctx, span := assetTracer.Start(ctx, "Assets.Put",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.Int("content.size", len(content)),
			attribute.String("content.type", contentType),
		),
	)
	defer span.End()

	if len(content) == 0 {
		return nil, fmt.Errorf("empty content")
	}
	if len(content) > MaxAssetSize {
		return nil, ErrTooLarge
	}

	key, digest := ContentKey(content)
	span.SetAttributes(attribute.String("s3.key", key))

	exists, err := s.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check object existence")
		return nil, err
	}

	if !exists {
		span.SetAttributes(attribute.Bool("deduplication.hit", false))
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(contentType),
			Metadata: map[string]string{
				"checksum-sha256": digest,
			},
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upload to s3")
			return nil, fmt.Errorf("failed to upload to s3: %w", err)
		}
	} else {
		span.SetAttributes(attribute.Bool("deduplication.hit", true))
	}

	span.SetStatus(codes.Ok, "asset stored")
	return &Object{
		Key:         key,
		SHA256:      digest,
		Size:        int64(len(content)),
		ContentType: contentType,
		URL:         s.URL(key),
	}, nil
}

// Get opens the content stored under key
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	ctx, span := assetTracer.Start(ctx, "Assets.Get",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	if !ValidKey(key) {
		return nil, nil, ErrInvalidKey
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get object from s3")
		return nil, nil, fmt.Errorf("failed to get object from s3: %w", err)
	}

	obj := &Object{
		Key:         key,
		ContentType: aws.ToString(result.ContentType),
		SHA256:      result.Metadata["checksum-sha256"],
		URL:         s.URL(key),
	}
	if result.ContentLength != nil {
		obj.Size = *result.ContentLength
		span.SetAttributes(attribute.Int64("content.size", *result.ContentLength))
	}

	span.SetStatus(codes.Ok, "asset retrieved")
	return result.Body, obj, nil
}

// Exists checks if an object exists
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// Delete removes an object
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

// URL returns the public URL for a key. With a custom endpoint (MinIO) the
// path-style URL is returned; otherwise the AWS virtual-hosted style.
func (s *S3Store) URL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// HealthCheck verifies S3 connectivity
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})

	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}

	return nil
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		// A racing creator is fine.
		if !isBucketAlreadyExistsError(err) {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}

func isBucketAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "BucketAlreadyExists") || strings.Contains(msg, "BucketAlreadyOwnedByYou")
}
