// Package memory is an in-process speaker.Store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/remworker/speaker"
)

// Store keeps profiles per user in insertion order.
type Store struct {
	mu       sync.RWMutex
	profiles map[string][]speaker.Profile
	now      func() time.Time
}

// New creates an empty store. A nil clock uses time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{profiles: make(map[string][]speaker.Profile), now: now}
}

func (s *Store) ListProfiles(ctx context.Context, userID string) ([]speaker.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]speaker.Profile, len(s.profiles[userID]))
	for i, p := range s.profiles[userID] {
		p.Embedding = append([]float64(nil), p.Embedding...)
		out[i] = p
	}
	return out, nil
}

func (s *Store) UpsertProfile(ctx context.Context, u speaker.ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.profiles[u.UserID]
	for i := range list {
		if list[i].SpeakerID == u.SpeakerID {
			list[i] = speaker.Apply(&list[i], u, s.now().UTC())
			return nil
		}
	}
	s.profiles[u.UserID] = append(list, speaker.Apply(nil, u, s.now().UTC()))
	return nil
}

// Seed inserts profiles as-is, for tests.
func (s *Store) Seed(profiles ...speaker.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range profiles {
		s.profiles[p.UserID] = append(s.profiles[p.UserID], p)
	}
}
