package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/remworker/database"
	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/recording"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	comp := database.NewComponent(database.Config{
		Enabled: true, DSN: ":memory:", AutoMigrate: true, LogLevel: "silent", MaxOpenConns: 1, MaxIdleConns: 1,
	}, logger.Nop()).WithAutoMigrate(&StatusRow{})
	if err := comp.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { comp.Stop(context.Background()) })
	return New(comp.DB())
}

func TestUpdateMergesOptionalFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	rec := recording.StatusRecord{
		UserID: "u1", RecordingID: "r1", Status: recording.StatusTranscribed,
		TranscriptRef: "transcripts/u1/d1/r1.json", Language: "de", DurationSeconds: 12.25, UpdatedAt: now,
		Embedding: []float64{0.5, -0.5}, Summary: "Planning.", Topics: []string{"roadmap"},
	}
	if err := s.Update(ctx, rec); err != nil {
		t.Fatal(err)
	}
	again := rec
	again.Embedding, again.Summary, again.Topics = nil, "", nil
	again.UpdatedAt = now.Add(time.Minute)
	if err := s.Update(ctx, again); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "u1", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Language != "de" || got.DurationSeconds != 12.25 || !got.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Errorf("record = %+v", got)
	}
	if got.Summary != "Planning." || len(got.Embedding) != 2 || got.Topics[0] != "roadmap" {
		t.Errorf("optional fields lost: %+v", got)
	}

	var count int64
	s.db.GormDB.Model(&StatusRow{}).Count(&count)
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestGetMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "u1", "missing")
	if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
