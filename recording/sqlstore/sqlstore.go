// Package sqlstore keeps recording status records in a SQL table via GORM.
package sqlstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/remworker/database"
	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/recording"
)

// StatusRow is the table model; register it with database.Component.WithAutoMigrate.
type StatusRow struct {
	UserID          string    `gorm:"primaryKey;size:128"`
	RecordingID     string    `gorm:"primaryKey;size:128"`
	Status          string    `gorm:"size:32;index"`
	TranscriptRef   string    `gorm:"size:512"`
	Language        string    `gorm:"size:16"`
	DurationSeconds float64
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
	Embedding       []float64 `gorm:"serializer:json"`
	Summary         string
	Topics          []string `gorm:"serializer:json"`
}

func (StatusRow) TableName() string { return "recording_status" }

func fromRecord(r recording.StatusRecord) StatusRow {
	return StatusRow{
		UserID:          r.UserID,
		RecordingID:     r.RecordingID,
		Status:          r.Status,
		TranscriptRef:   r.TranscriptRef,
		Language:        r.Language,
		DurationSeconds: r.DurationSeconds,
		UpdatedAt:       r.UpdatedAt.UTC(),
		Embedding:       r.Embedding,
		Summary:         r.Summary,
		Topics:          r.Topics,
	}
}

func (row StatusRow) record() recording.StatusRecord {
	return recording.StatusRecord{
		UserID:          row.UserID,
		RecordingID:     row.RecordingID,
		Status:          row.Status,
		TranscriptRef:   row.TranscriptRef,
		Language:        row.Language,
		DurationSeconds: row.DurationSeconds,
		UpdatedAt:       row.UpdatedAt,
		Embedding:       row.Embedding,
		Summary:         row.Summary,
		Topics:          row.Topics,
	}
}

// Store implements recording.StatusStore.
type Store struct {
	db *database.DB
}

var _ recording.StatusStore = (*Store)(nil)

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Update merges rec into any existing row inside one transaction.
func (s *Store) Update(ctx context.Context, rec recording.StatusRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing *recording.StatusRecord
		var row StatusRow
		err := tx.Where("user_id = ? AND recording_id = ?", rec.UserID, rec.RecordingID).Take(&row).Error
		switch {
		case err == nil:
			r := row.record()
			existing = &r
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		merged := fromRecord(recording.Merge(existing, rec))
		return tx.Save(&merged).Error
	})
	if err != nil {
		return apperrors.PersistFailed("status record", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID, recordingID string) (*recording.StatusRecord, error) {
	var row StatusRow
	err := s.db.WithContext(ctx).Where("user_id = ? AND recording_id = ?", userID, recordingID).Take(&row).Error
	if err != nil {
		return nil, database.FromDatabase(err, "recording", recordingID)
	}
	r := row.record()
	return &r, nil
}
