package archiver

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v5"
)

// S3Config configures the object storage backend.
type S3Config struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Store is the production ObjectStore backend, using an
// infrequent-access storage class for archived objects (spec §4.11 step
// 3: "use an infrequent-access storage class").
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3Store from static credentials when supplied, or
// the default AWS credential chain otherwise.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &S3Store{client: s3.NewFromConfig(awsCfg), bucket: cfg.Bucket}, nil
}

// Upload puts body at key with the given content type, using the
// STANDARD_IA storage class.
func (s *S3Store) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		StorageClass: types.StorageClassStandardIa,
	})
	if err != nil {
		return fmt.Errorf("putting object: %w", err)
	}
	return nil
}

// Verify confirms an object's presence via head_object (spec §4.11:
// "verification: head_object confirms presence").
func (s *S3Store) Verify(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("head object: %w", err)
	}
	return nil
}

// uploadWithRetry wraps a single month-batch upload in the same
// exponential backoff envelope used by the analytics writer (base 1s,
// cap 10s, up to uploadMaxAttempts attempts).
func uploadWithRetry(ctx context.Context, store ObjectStore, key string, data []byte) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, store.Upload(ctx, key, data, "application/vnd.apache.parquet")
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(time.Second),
			backoff.WithMaxInterval(10*time.Second),
		)),
		backoff.WithMaxTries(uploadMaxAttempts),
	)
	return err
}
