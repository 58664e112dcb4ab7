// Package sqlstore keeps speaker profiles in a SQL table via GORM.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kbukum/remworker/database"
	"github.com/kbukum/remworker/speaker"
)

// ProfileRow is the table model; register it with database.Component.WithAutoMigrate.
type ProfileRow struct {
	UserID      string    `gorm:"primaryKey;size:128"`
	SpeakerID   string    `gorm:"primaryKey;size:128"`
	Name        string    `gorm:"size:256"`
	Embedding   []float64 `gorm:"serializer:json"`
	SampleCount int
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (ProfileRow) TableName() string { return "speaker_profiles" }

func (r ProfileRow) profile() speaker.Profile {
	return speaker.Profile{
		UserID:      r.UserID,
		SpeakerID:   r.SpeakerID,
		Name:        r.Name,
		Embedding:   r.Embedding,
		SampleCount: r.SampleCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Store implements speaker.Store.
type Store struct {
	db  *database.DB
	now func() time.Time
}

var _ speaker.Store = (*Store)(nil)

func New(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) ListProfiles(ctx context.Context, userID string) ([]speaker.Profile, error) {
	var rows []ProfileRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, speaker_id").
		Find(&rows).Error
	if err != nil {
		return nil, database.FromDatabase(err, "speaker", userID)
	}
	out := make([]speaker.Profile, len(rows))
	for i, r := range rows {
		out[i] = r.profile()
	}
	return out, nil
}

func (s *Store) UpsertProfile(ctx context.Context, u speaker.ProfileUpdate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing *speaker.Profile
		var row ProfileRow
		err := tx.Where("user_id = ? AND speaker_id = ?", u.UserID, u.SpeakerID).Take(&row).Error
		switch {
		case err == nil:
			p := row.profile()
			existing = &p
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		p := speaker.Apply(existing, u, s.now().UTC())
		return tx.Save(&ProfileRow{
			UserID:      p.UserID,
			SpeakerID:   p.SpeakerID,
			Name:        p.Name,
			Embedding:   p.Embedding,
			SampleCount: p.SampleCount,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("upsert speaker %s: %w", u.SpeakerID, database.FromDatabase(err, "speaker", u.SpeakerID))
	}
	return nil
}
