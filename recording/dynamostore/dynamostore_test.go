package dynamostore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kbukum/remworker/dynamodb/dynamotest"
	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/recording"
)

func TestUpdateAndGet(t *testing.T) {
	fake := dynamotest.New()
	fake.CreateTable("recordings", "PK", "SK")
	s := New(fake, "recordings")
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	first := recording.StatusRecord{
		UserID: "u1", RecordingID: "r1", Status: recording.StatusTranscribed,
		TranscriptRef: "transcripts/u1/d1/r1.json", Language: "en", DurationSeconds: 30.5, UpdatedAt: now,
		Embedding: []float64{0.1, 0.2}, Summary: "A short call.", Topics: []string{"budget", "planning"},
	}
	if err := s.Update(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A later write without enrichment keeps the earlier optional fields.
	second := first
	second.Embedding, second.Summary, second.Topics = nil, "", nil
	second.UpdatedAt = now.Add(time.Hour)
	if err := s.Update(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != recording.StatusTranscribed || got.TranscriptRef != first.TranscriptRef || got.DurationSeconds != 30.5 {
		t.Errorf("record = %+v", got)
	}
	if got.Summary != "A short call." || len(got.Topics) != 2 || len(got.Embedding) != 2 {
		t.Errorf("optional fields lost: %+v", got)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Errorf("updatedAt = %v", got.UpdatedAt)
	}
	if len(fake.Items("recordings")) != 1 {
		t.Error("repeat updates must overwrite the same item")
	}
}

func TestGetMissing(t *testing.T) {
	fake := dynamotest.New()
	fake.CreateTable("recordings", "PK", "SK")
	_, err := New(fake, "recordings").Get(context.Background(), "u1", "nope")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateFailureIsPersistError(t *testing.T) {
	fake := dynamotest.New()
	fake.CreateTable("recordings", "PK", "SK")
	fake.Err = errors.New("throttled")
	err := New(fake, "recordings").Update(context.Background(), recording.StatusRecord{UserID: "u1", RecordingID: "r1"})
	if !apperrors.IsRetryable(err) {
		t.Fatalf("expected retryable persist error, got %v", err)
	}
}
