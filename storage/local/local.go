package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/remworker/storage"
)

func init() {
	storage.Register(storage.ProviderLocal, func(settings any) (storage.Storage, error) {
		cfg, err := storage.Settings[Config](settings)
		if err != nil {
			return nil, err
		}
		root := cfg.BasePath
		if root == "" {
			root = DefaultBasePath
		}
		return NewStorage(root)
	})
}

// DefaultBasePath is used when base_path is empty.
const DefaultBasePath = "data/objects"

// Config places every bucket in a directory under BasePath.
type Config struct {
	BasePath string `yaml:"base_path" mapstructure:"base_path" json:"base_path"`
}

func (c *Config) DescribeEndpoint() string { return "path=" + c.BasePath }

// Storage implements storage.Storage using the local filesystem.
type Storage struct {
	basePath string
}

// NewStorage creates a new local filesystem storage.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

// resolve maps bucket/key to a path and rejects keys escaping the bucket.
func (s *Storage) resolve(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("storage: bucket and key are required")
	}
	root := filepath.Join(s.basePath, filepath.Clean("/"+bucket))
	full := filepath.Join(root, filepath.Clean("/"+key))
	if !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return full, nil
}

// Upload writes to a temporary sibling and renames it into place so readers
// never observe a partial object.
func (s *Storage) Upload(_ context.Context, bucket, key string, reader io.Reader, _ string) error {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}

	f, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("storage: create file: %w", err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(f, reader); err != nil {
		f.Close()
		return fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close file: %w", err)
	}
	if err := os.Rename(f.Name(), fullPath); err != nil {
		return fmt.Errorf("storage: rename file: %w", err)
	}
	return nil
}

func (s *Storage) Download(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("storage: open file: %w", err)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Storage) Delete(_ context.Context, bucket, key string) error {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return nil
}

func (s *Storage) Exists(_ context.Context, bucket, key string) (bool, error) {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("storage: stat file: %w", err)
	}
	return true, nil
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
