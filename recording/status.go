package recording

import (
	"context"
	"time"
)

// StatusRecord is the per-recording processing record keyed by
// (UserID, RecordingID).
type StatusRecord struct {
	UserID          string
	RecordingID     string
	Status          string
	TranscriptRef   string
	Language        string
	DurationSeconds float64
	UpdatedAt       time.Time
	Embedding       []float64
	Summary         string
	Topics          []string
}

// NewStatusRecord builds the TRANSCRIBED record for a persisted transcript.
func NewStatusRecord(t *Transcript, transcriptRef string, now time.Time) StatusRecord {
	return StatusRecord{
		UserID:          t.UserID,
		RecordingID:     t.RecordingID,
		Status:          StatusTranscribed,
		TranscriptRef:   transcriptRef,
		Language:        t.Language,
		DurationSeconds: t.DurationSeconds,
		UpdatedAt:       now.UTC(),
		Embedding:       t.Embedding,
		Summary:         t.Summary,
		Topics:          t.Topics,
	}
}

// StatusStore records processing results. Update overwrites the mandatory
// fields and sets optional ones only when present; fields already stored
// and absent from rec are left alone.
type StatusStore interface {
	Update(ctx context.Context, rec StatusRecord) error
	Get(ctx context.Context, userID, recordingID string) (*StatusRecord, error)
}

// Merge applies rec onto existing following StatusStore.Update semantics.
func Merge(existing *StatusRecord, rec StatusRecord) StatusRecord {
	if existing == nil {
		return rec
	}
	out := rec
	if len(out.Embedding) == 0 {
		out.Embedding = existing.Embedding
	}
	if out.Summary == "" {
		out.Summary = existing.Summary
	}
	if len(out.Topics) == 0 {
		out.Topics = existing.Topics
	}
	return out
}
