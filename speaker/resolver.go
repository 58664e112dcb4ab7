package speaker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/recording"
)

const (
	DefaultThreshold         = 0.75
	DefaultMinSampleDuration = 2.0
)

// ID allocation strategies for new profiles.
const (
	// IDCount allocates speaker_{N+1} where N is the user's profile count,
	// skipping ids already taken. Two resolvers racing on the same user can
	// still pick the same id.
	IDCount = "count"
	// IDUUID allocates speaker_<uuid>, which cannot collide.
	IDUUID = "uuid"
)

// VoiceEmbedder produces a fixed-dimension voice embedding for the audio
// between start and end seconds.
type VoiceEmbedder interface {
	EmbedVoice(ctx context.Context, audioPath string, start, end float64) ([]float64, error)
}

// Config tunes matching.
type Config struct {
	Threshold         float64 `yaml:"threshold" mapstructure:"threshold"`
	MinSampleDuration float64 `yaml:"min_sample_duration" mapstructure:"min_sample_duration"`
	IDStrategy        string  `yaml:"id_strategy" mapstructure:"id_strategy"`
}

func (c *Config) ApplyDefaults() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.MinSampleDuration == 0 {
		c.MinSampleDuration = DefaultMinSampleDuration
	}
	if c.IDStrategy == "" {
		c.IDStrategy = IDCount
	}
}

func (c *Config) Validate() error {
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("speakers.threshold must be within [-1, 1] (got: %v)", c.Threshold)
	}
	if c.MinSampleDuration < 0 {
		return fmt.Errorf("speakers.min_sample_duration must not be negative")
	}
	if c.IDStrategy != IDCount && c.IDStrategy != IDUUID {
		return fmt.Errorf("speakers.id_strategy must be %q or %q (got: %s)", IDCount, IDUUID, c.IDStrategy)
	}
	return nil
}

// Identity is the persistent speaker a transient label resolved to.
type Identity struct {
	SpeakerID string
	Name      string
}

// Resolution is the outcome of resolving one recording.
type Resolution struct {
	Segments []recording.AttributedSegment
	Mapping  map[string]Identity
	Matched  []string
	Created  []string
}

// Resolver matches transient labels to profiles.
type Resolver struct {
	cfg      Config
	store    Store
	embedder VoiceEmbedder
	locker   Locker
	log      *logger.Logger
	newID    func() string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLocker serializes resolutions per user.
func WithLocker(l Locker) Option {
	return func(r *Resolver) { r.locker = l }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// NewResolver builds a resolver over store and embedder.
func NewResolver(cfg Config, store Store, embedder VoiceEmbedder, opts ...Option) *Resolver {
	cfg.ApplyDefaults()
	r := &Resolver{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		log:      logger.WithComponent("resolver"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps each label in turns to a persistent identity and returns
// attributed copies of the segments. Failures for one label are logged and
// leave that label unmapped; unmapped labels keep the raw label as both id
// and name.
func (r *Resolver) Resolve(ctx context.Context, userID, audioPath string, turns []recording.Turn, segments []recording.LabeledSegment) Resolution {
	log := r.log.WithFields(logger.Fields(logger.FieldUserID, userID))
	res := Resolution{Mapping: make(map[string]Identity)}

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, userID)
		if err != nil {
			log.Warn("speaker lock unavailable, resolving unlocked", logger.ErrorFields("lock", err))
		} else {
			defer unlock()
		}
	}

	labels, longest := longestTurns(turns)
	for _, label := range labels {
		turn := longest[label]
		id, created, err := r.resolveLabel(ctx, userID, audioPath, turn)
		if err != nil {
			log.Warn("speaker not resolved", logger.MergeWithError(logger.Fields(logger.FieldLabel, label), err))
			continue
		}
		if id.SpeakerID == "" {
			continue
		}
		res.Mapping[label] = id
		if created {
			res.Created = append(res.Created, id.SpeakerID)
		} else {
			res.Matched = append(res.Matched, id.SpeakerID)
		}
	}

	res.Segments = Attribute(segments, res.Mapping)
	return res
}

// resolveLabel returns an empty Identity without error when the label has
// no usable sample.
func (r *Resolver) resolveLabel(ctx context.Context, userID, audioPath string, turn recording.Turn) (Identity, bool, error) {
	if turn.Duration() < r.cfg.MinSampleDuration {
		r.log.Debug("sample too short", logger.Fields(logger.FieldLabel, turn.Label, "seconds", turn.Duration()))
		return Identity{}, false, nil
	}

	candidate, err := r.embedder.EmbedVoice(ctx, audioPath, turn.Start, turn.End)
	if err != nil {
		return Identity{}, false, fmt.Errorf("embed voice: %w", err)
	}
	if len(candidate) == 0 {
		return Identity{}, false, fmt.Errorf("embed voice: empty embedding")
	}

	profiles, err := r.store.ListProfiles(ctx, userID)
	if err != nil {
		return Identity{}, false, fmt.Errorf("list profiles: %w", err)
	}

	if best, sim, ok := r.bestMatch(candidate, profiles); ok {
		centroid, n := UpdateCentroid(best.Embedding, best.SampleCount, candidate)
		err := r.store.UpsertProfile(ctx, ProfileUpdate{
			UserID:      userID,
			SpeakerID:   best.SpeakerID,
			Embedding:   centroid,
			SampleCount: n,
		})
		if err != nil {
			return Identity{}, false, fmt.Errorf("update profile %s: %w", best.SpeakerID, err)
		}
		r.log.Info("speaker matched", logger.Fields(
			logger.FieldLabel, turn.Label, logger.FieldSpeakerID, best.SpeakerID,
			"similarity", sim, "samples", n,
		))
		return Identity{SpeakerID: best.SpeakerID, Name: best.DisplayName()}, false, nil
	}

	id := r.allocateID(profiles)
	if err := r.store.UpsertProfile(ctx, ProfileUpdate{
		UserID:      userID,
		SpeakerID:   id,
		Name:        id,
		Embedding:   candidate,
		SampleCount: 1,
	}); err != nil {
		return Identity{}, false, fmt.Errorf("create profile %s: %w", id, err)
	}
	r.log.Info("speaker created", logger.Fields(logger.FieldLabel, turn.Label, logger.FieldSpeakerID, id))
	return Identity{SpeakerID: id, Name: id}, true, nil
}

// bestMatch returns the most similar profile at or above the threshold.
// Profiles with a different embedding dimension are skipped; ties keep the
// earlier profile.
func (r *Resolver) bestMatch(candidate []float64, profiles []Profile) (Profile, float64, bool) {
	var (
		best    Profile
		bestSim float64
		found   bool
	)
	for _, p := range profiles {
		sim, err := Cosine(candidate, p.Embedding)
		if err != nil {
			r.log.Warn("profile skipped", logger.MergeWithError(logger.Fields(logger.FieldSpeakerID, p.SpeakerID), err))
			continue
		}
		if sim >= r.cfg.Threshold && (!found || sim > bestSim) {
			best, bestSim, found = p, sim, true
		}
	}
	return best, bestSim, found
}

func (r *Resolver) allocateID(profiles []Profile) string {
	if r.cfg.IDStrategy == IDUUID {
		return "speaker_" + r.newID()
	}
	taken := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		taken[p.SpeakerID] = true
	}
	for n := len(profiles) + 1; ; n++ {
		id := "speaker_" + strconv.Itoa(n)
		if !taken[id] {
			return id
		}
	}
}

// Attribute binds labeled segments to identities. Labels missing from
// mapping keep the raw label as both id and name.
func Attribute(segments []recording.LabeledSegment, mapping map[string]Identity) []recording.AttributedSegment {
	out := make([]recording.AttributedSegment, len(segments))
	for i, s := range segments {
		id, ok := mapping[s.Label]
		if !ok {
			id = Identity{SpeakerID: s.Label, Name: s.Label}
		}
		out[i] = recording.AttributedSegment{
			ID:          s.ID,
			Start:       s.Start,
			End:         s.End,
			Text:        s.Text,
			SpeakerID:   id.SpeakerID,
			SpeakerName: id.Name,
		}
	}
	return out
}

// longestTurns returns the distinct labels in order of first appearance
// and each label's longest turn; the first of equal length wins.
func longestTurns(turns []recording.Turn) ([]string, map[string]recording.Turn) {
	var labels []string
	longest := make(map[string]recording.Turn)
	for _, t := range turns {
		cur, seen := longest[t.Label]
		if !seen {
			labels = append(labels, t.Label)
		}
		if !seen || t.Duration() > cur.Duration() {
			longest[t.Label] = t
		}
	}
	return labels, longest
}
