package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/remworker/storage"
)

func TestStorage_RoundTrip(t *testing.T) {
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Upload(ctx, "transcripts", "transcripts/u1/d1/r1.json", strings.NewReader(`{"a":1}`), storage.ContentTypeJSON); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	ok, err := s.Exists(ctx, "transcripts", "transcripts/u1/d1/r1.json")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v", ok, err)
	}

	// Overwrite by the same key replaces the object.
	if err := s.Upload(ctx, "transcripts", "transcripts/u1/d1/r1.json", strings.NewReader(`{"a":2}`), ""); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Download(ctx, "transcripts", "transcripts/u1/d1/r1.json")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"a":2}` {
		t.Errorf("content = %s", data)
	}

	if err := s.Delete(ctx, "transcripts", "transcripts/u1/d1/r1.json"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "transcripts", "transcripts/u1/d1/r1.json"); err != nil {
		t.Errorf("deleting a missing object should succeed: %v", err)
	}
}

func TestStorage_DownloadMissing(t *testing.T) {
	s, _ := NewStorage(t.TempDir())
	_, err := s.Download(context.Background(), "raw", "nope.wav")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorage_BucketsAreSeparate(t *testing.T) {
	base := t.TempDir()
	s, _ := NewStorage(base)
	ctx := context.Background()
	_ = s.Upload(ctx, "raw", "a.wav", strings.NewReader("x"), "")

	if ok, _ := s.Exists(ctx, "transcripts", "a.wav"); ok {
		t.Error("object leaked across buckets")
	}
	if _, err := os.Stat(filepath.Join(base, "raw", "a.wav")); err != nil {
		t.Errorf("expected file under bucket dir: %v", err)
	}
}

func TestStorage_KeyCannotEscapeBucket(t *testing.T) {
	base := t.TempDir()
	s, _ := NewStorage(base)
	ctx := context.Background()
	if err := s.Upload(ctx, "raw", "../../etc/x", strings.NewReader("x"), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(base, "raw", "etc", "x")); err != nil {
		t.Errorf("key should be confined to the bucket: %v", err)
	}
	if _, err := s.Exists(ctx, "raw", ""); err == nil {
		t.Error("expected error for empty key")
	}
}
