package recording

import (
	"cmp"
	"fmt"
	"math"
	"path"
	"slices"
	"strings"
)

// UnknownSpeaker labels segments when diarization produced no turns at all.
const UnknownSpeaker = "SPEAKER_00"

// StatusTranscribed is written to the status record after a successful run.
const StatusTranscribed = "TRANSCRIBED"

// Job is the queue message body announcing a newly uploaded recording.
type Job struct {
	RecordingID string `json:"recordingId" validate:"required"`
	Bucket      string `json:"bucket" validate:"required"`
	Key         string `json:"key" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	DeviceID    string `json:"deviceId" validate:"required"`
	StartedAt   string `json:"startedAt"`
	EndedAt     string `json:"endedAt"`
}

// Recording returns the immutable recording the job refers to.
func (j Job) Recording() Recording {
	return Recording{
		RecordingID: j.RecordingID,
		UserID:      j.UserID,
		DeviceID:    j.DeviceID,
		Audio:       ObjectRef{Bucket: j.Bucket, Key: j.Key},
		StartedAt:   j.StartedAt,
		EndedAt:     j.EndedAt,
	}
}

// ObjectRef addresses an object in a bucketed store.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string { return r.Bucket + "/" + r.Key }

// Recording is a single captured audio file.
type Recording struct {
	RecordingID string
	UserID      string
	DeviceID    string
	Audio       ObjectRef
	StartedAt   string
	EndedAt     string
}

// TranscriptKey is where the JSON transcript of r is written.
func (r Recording) TranscriptKey() string {
	return path.Join("transcripts", r.UserID, r.DeviceID, r.RecordingID+".json")
}

// TextKey is the plain-text sibling of TranscriptKey.
func (r Recording) TextKey() string {
	return strings.TrimSuffix(r.TranscriptKey(), ".json") + ".txt"
}

// Segment is a contiguous span of transcribed speech.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Midpoint returns (Start+End)/2.
func (s Segment) Midpoint() float64 { return (s.Start + s.End) / 2 }

// Turn is a diarization interval with a label that is only meaningful
// inside one recording.
type Turn struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"speaker"`
}

// Duration returns End-Start.
func (t Turn) Duration() float64 { return t.End - t.Start }

// LabeledSegment is a segment after alignment with diarization turns.
type LabeledSegment struct {
	Segment
	Label string
}

// AttributedSegment is a segment bound to a persistent speaker identity,
// as written to the transcript.
type AttributedSegment struct {
	ID          int       `json:"id"`
	Start       float64   `json:"start"`
	End         float64   `json:"end"`
	Text        string    `json:"text"`
	SpeakerID   string    `json:"speakerId,omitempty"`
	SpeakerName string    `json:"speakerName,omitempty"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// Unattributed converts plain segments for output when no speaker
// information is available.
func Unattributed(segments []Segment) []AttributedSegment {
	out := make([]AttributedSegment, len(segments))
	for i, s := range segments {
		out[i] = AttributedSegment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text}
	}
	return out
}

// Transcript is the enriched, speaker-attributed output document.
type Transcript struct {
	RecordingID         string              `json:"recordingId"`
	UserID              string              `json:"userId"`
	DeviceID            string              `json:"deviceId"`
	StartedAt           string              `json:"startedAt,omitempty"`
	EndedAt             string              `json:"endedAt,omitempty"`
	Language            string              `json:"language"`
	LanguageProbability float64             `json:"languageProbability,omitempty"`
	DurationSeconds     float64             `json:"durationSeconds"`
	Segments            []AttributedSegment `json:"segments"`
	FullText            string              `json:"fullText"`
	SpeakerCount        int                 `json:"speakerCount"`
	Speakers            []string            `json:"speakers,omitempty"`
	SpeakerNames        map[string]string   `json:"speakerNames,omitempty"`
	Embedding           []float64           `json:"embedding,omitempty"`
	Summary             string              `json:"summary,omitempty"`
	Topics              []string            `json:"topics,omitempty"`
	TranscriptionModel  string              `json:"transcriptionModel,omitempty"`
	TranscribedAt       string              `json:"transcribedAt"`
}

// SetSpeakers fills Speakers, SpeakerNames and SpeakerCount from the
// attributed segments, in first-appearance order.
func (t *Transcript) SetSpeakers() {
	t.Speakers = nil
	t.SpeakerNames = nil
	for _, s := range t.Segments {
		if s.SpeakerID == "" {
			continue
		}
		if t.SpeakerNames == nil {
			t.SpeakerNames = make(map[string]string)
		}
		if _, seen := t.SpeakerNames[s.SpeakerID]; !seen {
			t.Speakers = append(t.Speakers, s.SpeakerID)
		}
		t.SpeakerNames[s.SpeakerID] = s.SpeakerName
	}
	t.SpeakerCount = len(t.Speakers)
}

// JoinText joins segment texts with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Validate checks segment bounds.
func Validate(segments []Segment) error {
	for _, s := range segments {
		if s.Start > s.End {
			return fmt.Errorf("segment %d: start %.2f after end %.2f", s.ID, s.Start, s.End)
		}
	}
	return nil
}

func byStart(a, b Segment) int { return cmp.Compare(a.Start, b.Start) }

// SortByStart orders segments by start time in place, keeping the
// transcriber's order for equal starts. It reports whether anything moved.
func SortByStart(segments []Segment) bool {
	if slices.IsSortedFunc(segments, byStart) {
		return false
	}
	slices.SortStableFunc(segments, byStart)
	return true
}
