// Package speaker resolves per-recording diarization labels to durable
// speaker profiles.
//
// A profile holds the running centroid of every voice sample matched to it.
// For each label in a recording the Resolver embeds the label's longest
// turn, compares it against all of the user's profiles by cosine
// similarity, and either folds the sample into the best match or creates a
// new profile.
package speaker

import (
	"context"
	"time"
)

// Profile is a persistent speaker identity owned by one user.
type Profile struct {
	UserID      string    `json:"userId"`
	SpeakerID   string    `json:"speakerId"`
	Name        string    `json:"name"`
	Embedding   []float64 `json:"embedding"`
	SampleCount int       `json:"sampleCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayName returns Name, falling back to the speaker id.
func (p Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.SpeakerID
}

// ProfileUpdate is the input to Store.UpsertProfile. An empty Name leaves
// an existing name unchanged (new profiles get the speaker id); a nil
// Embedding leaves the stored embedding unchanged.
type ProfileUpdate struct {
	UserID      string
	SpeakerID   string
	Name        string
	Embedding   []float64
	SampleCount int
}

// Store persists speaker profiles keyed by (UserID, SpeakerID).
//
// Upserts are last-writer-wins. Two concurrent resolutions for the same
// user may each read, modify and write a profile and lose one update.
type Store interface {
	ListProfiles(ctx context.Context, userID string) ([]Profile, error)
	// UpsertProfile creates or updates a profile, keeping CreatedAt from the
	// first write and setting UpdatedAt on every write.
	UpsertProfile(ctx context.Context, u ProfileUpdate) error
}

// Locker serializes resolution per user. Lock returns a release function.
type Locker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// Apply merges u into existing (nil for a new profile) at time now.
func Apply(existing *Profile, u ProfileUpdate, now time.Time) Profile {
	p := Profile{UserID: u.UserID, SpeakerID: u.SpeakerID, CreatedAt: now}
	if existing != nil {
		p = *existing
	}
	if u.Name != "" {
		p.Name = u.Name
	}
	if p.Name == "" {
		p.Name = u.SpeakerID
	}
	if u.Embedding != nil {
		p.Embedding = append([]float64(nil), u.Embedding...)
	}
	if u.SampleCount > 0 {
		p.SampleCount = u.SampleCount
	}
	p.UpdatedAt = now
	return p
}
