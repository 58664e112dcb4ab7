package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kbukum/remworker/storage"
)

func init() {
	storage.Register(storage.ProviderS3, open)
}

func open(settings any) (storage.Storage, error) {
	cfg, err := storage.Settings[Config](settings)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewStorage(context.Background(), cfg)
}

var _ storage.Storage = (*Storage)(nil)

// Storage keeps recordings and transcripts in S3 or an S3-compatible
// endpoint.
type Storage struct {
	client *awss3.Client
}

// NewStorage loads the AWS config for cfg.Region. Static keys replace the
// default credential chain only when both are set, and a custom endpoint
// switches to path-style addressing.
func NewStorage(ctx context.Context, cfg *Config) (*Storage, error) {
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		static := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		load = append(load, awsconfig.WithCredentialsProvider(static))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	return &Storage{client: awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.Endpoint != "" || cfg.ForcePathStyle
	})}, nil
}

func (s *Storage) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &awss3.PutObjectInput{Bucket: &bucket, Key: &key, Body: body}
	if contentType != "" {
		in.ContentType = &contentType
	}
	_, err := s.client.PutObject(ctx, in)
	return wrap("put", bucket, key, err)
}

func (s *Storage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return nil, wrap("get", bucket, key, err)
	}
	return out.Body, nil
}

// Delete succeeds for a missing object; S3 itself does not distinguish.
func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &bucket, Key: &key})
	return wrap("delete", bucket, key, err)
}

func (s *Storage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: &bucket, Key: &key})
	if err = wrap("head", bucket, key, err); errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// wrap maps the SDK's missing-object errors onto storage.ErrNotFound.
// GetObject reports NoSuchKey; HeadObject has no body and reports NotFound.
func wrap(op, bucket, key string, err error) error {
	if err == nil {
		return nil
	}
	var (
		noKey    *types.NoSuchKey
		notFound *types.NotFound
	)
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
	}
	return fmt.Errorf("s3 %s %s/%s: %w", op, bucket, key, err)
}
