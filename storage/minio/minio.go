// Package minio implements storage.Storage for S3-compatible servers using
// minio-go.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kbukum/remworker/storage"
)

func init() {
	storage.Register(storage.ProviderMinio, func(settings any) (storage.Storage, error) {
		c, err := storage.Settings[Config](settings)
		if err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return NewStorage(c)
	})
}

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key" json:"secret_key"`
	Region    string `yaml:"region" mapstructure:"region" json:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl" json:"use_ssl"`
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New("minio: access_key and secret_key are required")
	}
	return nil
}

func (c *Config) DescribeEndpoint() string { return "endpoint=" + c.Endpoint }

type Storage struct {
	client *miniogo.Client
}

func NewStorage(cfg *Config) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}
	return &Storage{client: client}, nil
}

// Upload streams with unknown size; minio-go buffers into multipart chunks.
func (s *Storage) Upload(ctx context.Context, bucket, key string, reader io.Reader, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, reader, -1, miniogo.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("storage: minio upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// Download stats the object first so a missing key fails here rather than
// on the first read.
func (s *Storage) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: minio download %s/%s: %w", bucket, key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("storage: minio stat %s/%s: %w", bucket, key, err)
	}
	return obj, nil
}

func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("storage: minio delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: minio stat %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	resp := miniogo.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

var _ storage.Storage = (*Storage)(nil)
