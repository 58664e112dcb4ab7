package storage

import (
	"context"
	"errors"
	"io"
)

// Content types used for transcript outputs.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// ErrNotFound is wrapped by Download when the object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage defines object storage operations.
type Storage interface {
	// Upload writes data from reader to bucket/key, replacing any existing
	// object. An empty contentType leaves the backend default.
	Upload(ctx context.Context, bucket, key string, reader io.Reader, contentType string) error

	// Download returns a reader for the object.
	// The caller is responsible for closing the returned ReadCloser.
	Download(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// Delete removes the object. Returns nil if the object does not exist.
	Delete(ctx context.Context, bucket, key string) error

	Exists(ctx context.Context, bucket, key string) (bool, error)
}
