package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// UploadBytes stores data at bucket/key.
func UploadBytes(ctx context.Context, s Storage, bucket, key string, data []byte, contentType string) error {
	return s.Upload(ctx, bucket, key, bytes.NewReader(data), contentType)
}

// DownloadBytes reads a whole object into memory.
func DownloadBytes(ctx context.Context, s Storage, bucket, key string) ([]byte, error) {
	rc, err := s.Download(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// DownloadFile copies bucket/key into a new file under dir (the OS temp dir
// when empty) that keeps the key's extension. The caller removes the file.
func DownloadFile(ctx context.Context, s Storage, bucket, key, dir string) (string, error) {
	rc, err := s.Download(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, "rem-*"+filepath.Ext(key))
	if err != nil {
		return "", fmt.Errorf("storage: create scratch file: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("storage: close scratch file: %w", err)
	}
	return f.Name(), nil
}
