// Package memory is an in-process StatusStore for tests and local runs.
package memory

import (
	"context"
	"sync"

	apperrors "github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/recording"
)

type key struct{ user, recording string }

// Store keeps status records in a map.
type Store struct {
	mu      sync.RWMutex
	records map[key]recording.StatusRecord
	writes  int
}

func New() *Store {
	return &Store{records: make(map[key]recording.StatusRecord)}
}

func (s *Store) Update(ctx context.Context, rec recording.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{rec.UserID, rec.RecordingID}
	var existing *recording.StatusRecord
	if cur, ok := s.records[k]; ok {
		existing = &cur
	}
	s.records[k] = recording.Merge(existing, rec)
	s.writes++
	return nil
}

func (s *Store) Get(ctx context.Context, userID, recordingID string) (*recording.StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key{userID, recordingID}]
	if !ok {
		return nil, apperrors.NotFound("recording", recordingID)
	}
	return &rec, nil
}

// Writes returns how many updates were applied.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
