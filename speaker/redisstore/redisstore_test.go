package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/redis"
	"github.com/kbukum/remworker/speaker"
)

func newStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mini := miniredis.RunT(t)
	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client), client
}

func TestUpsertKeepsCreatedAt(t *testing.T) {
	s, _ := newStore(t)
	t0 := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	ctx := context.Background()

	if err := s.UpsertProfile(ctx, speaker.ProfileUpdate{UserID: "u1", SpeakerID: "speaker_1", Embedding: []float64{1, 0}, SampleCount: 1}); err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return t0.Add(time.Hour) }
	if err := s.UpsertProfile(ctx, speaker.ProfileUpdate{UserID: "u1", SpeakerID: "speaker_1", Embedding: []float64{0.5, 0.5}, SampleCount: 2}); err != nil {
		t.Fatal(err)
	}

	profiles, err := s.ListProfiles(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 {
		t.Fatalf("profiles = %+v", profiles)
	}
	p := profiles[0]
	if !p.CreatedAt.Equal(t0) || !p.UpdatedAt.Equal(t0.Add(time.Hour)) {
		t.Errorf("timestamps = %v / %v", p.CreatedAt, p.UpdatedAt)
	}
	if p.SampleCount != 2 || p.Embedding[0] != 0.5 || p.Name != "speaker_1" {
		t.Errorf("profile = %+v", p)
	}
}

func TestListOrdersOldestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"speaker_3", "speaker_1", "speaker_2"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_ = s.UpsertProfile(ctx, speaker.ProfileUpdate{UserID: "u1", SpeakerID: id, Embedding: []float64{1}, SampleCount: 1})
	}
	profiles, _ := s.ListProfiles(ctx, "u1")
	got := []string{profiles[0].SpeakerID, profiles[1].SpeakerID, profiles[2].SpeakerID}
	if got[0] != "speaker_3" || got[1] != "speaker_1" || got[2] != "speaker_2" {
		t.Errorf("order = %v", got)
	}
}

func TestResolverWithRedisLock(t *testing.T) {
	s, client := newStore(t)
	locker := redis.NewLocker(client, "speakers:lock", time.Minute)
	emb := embedFunc(func(float64) []float64 { return []float64{1, 0} })
	r := speaker.NewResolver(speaker.Config{}, s, emb, speaker.WithLocker(locker), speaker.WithLogger(logger.Nop()))

	turns := []recording.Turn{{Start: 0, End: 5, Label: "SPEAKER_00"}}
	first := r.Resolve(context.Background(), "u1", "a.wav", turns, nil)
	second := r.Resolve(context.Background(), "u1", "a.wav", turns, nil)

	if first.Mapping["SPEAKER_00"].SpeakerID != "speaker_1" || second.Mapping["SPEAKER_00"].SpeakerID != "speaker_1" {
		t.Fatalf("mappings = %+v / %+v", first.Mapping, second.Mapping)
	}
	profiles, _ := s.ListProfiles(context.Background(), "u1")
	if len(profiles) != 1 || profiles[0].SampleCount != 2 {
		t.Errorf("profiles = %+v", profiles)
	}
}

type embedFunc func(start float64) []float64

func (f embedFunc) EmbedVoice(_ context.Context, _ string, start, _ float64) ([]float64, error) {
	return f(start), nil
}
