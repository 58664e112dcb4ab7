// Package redisstore keeps speaker profiles in Redis, one hash per user.
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/remworker/redis"
	"github.com/kbukum/remworker/speaker"
)

const namespace = "speakers"

// Store implements speaker.Store over a redis.HashStore.
type Store struct {
	profiles *redis.HashStore[speaker.Profile]
	now      func() time.Time
}

var _ speaker.Store = (*Store)(nil)

func New(client *redis.Client) *Store {
	return &Store{
		profiles: redis.NewHashStore[speaker.Profile](client, namespace),
		now:      time.Now,
	}
}

// ListProfiles returns profiles oldest first, so earlier profiles win
// similarity ties.
func (s *Store) ListProfiles(ctx context.Context, userID string) ([]speaker.Profile, error) {
	all, err := s.profiles.All(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]speaker.Profile, 0, len(all))
	for _, p := range all {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SpeakerID < out[j].SpeakerID
	})
	return out, nil
}

func (s *Store) UpsertProfile(ctx context.Context, u speaker.ProfileUpdate) error {
	existing, err := s.profiles.Get(ctx, u.UserID, u.SpeakerID)
	if err != nil {
		return err
	}
	p := speaker.Apply(existing, u, s.now().UTC())
	if err := s.profiles.Put(ctx, u.UserID, u.SpeakerID, p); err != nil {
		return fmt.Errorf("upsert speaker %s: %w", u.SpeakerID, err)
	}
	return nil
}
