package recording

import (
	"bytes"
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestJobRecordingKeys(t *testing.T) {
	job := Job{RecordingID: "rec-1", Bucket: "raw", Key: "u1/dev/rec-1.wav", UserID: "u1", DeviceID: "dev"}
	r := job.Recording()
	if r.Audio.String() != "raw/u1/dev/rec-1.wav" {
		t.Errorf("audio ref = %s", r.Audio)
	}
	if r.TranscriptKey() != "transcripts/u1/dev/rec-1.json" {
		t.Errorf("transcript key = %s", r.TranscriptKey())
	}
	if r.TextKey() != "transcripts/u1/dev/rec-1.txt" {
		t.Errorf("text key = %s", r.TextKey())
	}
}

func TestSetSpeakers(t *testing.T) {
	tr := Transcript{Segments: []AttributedSegment{
		{ID: 0, SpeakerID: "speaker_2", SpeakerName: "Ana"},
		{ID: 1, SpeakerID: "speaker_1", SpeakerName: "speaker_1"},
		{ID: 2, SpeakerID: "speaker_2", SpeakerName: "Ana"},
		{ID: 3},
	}}
	tr.SetSpeakers()
	if !slices.Equal(tr.Speakers, []string{"speaker_2", "speaker_1"}) {
		t.Errorf("speakers = %v", tr.Speakers)
	}
	if tr.SpeakerCount != 2 || tr.SpeakerNames["speaker_2"] != "Ana" {
		t.Errorf("count=%d names=%v", tr.SpeakerCount, tr.SpeakerNames)
	}

	empty := Transcript{Segments: Unattributed([]Segment{{ID: 0, Text: "hi"}})}
	empty.SetSpeakers()
	if empty.SpeakerCount != 0 || empty.SpeakerNames != nil {
		t.Errorf("unexpected speakers on unattributed transcript: %+v", empty)
	}
}

func TestJoinTextAndRound(t *testing.T) {
	got := JoinText([]Segment{{Text: "hello"}, {Text: ""}, {Text: "world"}})
	if got != "hello world" {
		t.Errorf("JoinText = %q", got)
	}
	if Round(1.23456, 2) != 1.23 || Round(0.987654, 4) != 0.9877 {
		t.Error("Round mismatch")
	}
}

func TestValidateSegments(t *testing.T) {
	if err := Validate([]Segment{{Start: 0, End: 1}, {Start: 1, End: 1}}); err != nil {
		t.Errorf("valid segments rejected: %v", err)
	}
	if err := Validate([]Segment{{Start: 2, End: 1}}); err == nil {
		t.Error("expected start>end error")
	}
	if err := Validate([]Segment{{Start: 3, End: 4}, {Start: 1, End: 2}}); err != nil {
		t.Errorf("out-of-order segments are not a bounds error: %v", err)
	}
}

func TestSortByStart(t *testing.T) {
	segs := []Segment{
		{ID: 0, Start: 0, End: 2.1},
		{ID: 1, Start: 2.02, End: 4},
		{ID: 2, Start: 1.98, End: 3},
		{ID: 3, Start: 2.02, End: 5},
	}
	if !SortByStart(segs) {
		t.Fatal("expected a reorder")
	}
	var ids []int
	for _, s := range segs {
		ids = append(ids, s.ID)
	}
	if !slices.Equal(ids, []int{0, 2, 1, 3}) {
		t.Errorf("order = %v, want [0 2 1 3]", ids)
	}
	if SortByStart(segs) {
		t.Error("sorted input reported as reordered")
	}
}

func TestTranscriptJSONRoundTrip(t *testing.T) {
	tr := Transcript{
		RecordingID:         "rec-1",
		UserID:              "u1",
		DeviceID:            "dev",
		Language:            "en",
		LanguageProbability: 0.9912,
		DurationSeconds:     30,
		Segments: []AttributedSegment{
			{ID: 0, Start: 0, End: 4.5, Text: "hello there", SpeakerID: "speaker_1", SpeakerName: "speaker_1", Embedding: []float64{0.1, -0.2}},
		},
		FullText:      "hello there",
		Summary:       "A greeting.",
		Topics:        []string{"greeting"},
		TranscribedAt: "2026-10-18T10:00:00Z",
	}
	tr.SetSpeakers()

	first, err := json.MarshalIndent(tr, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	var keys struct {
		Segments []map[string]any `json:"segments"`
	}
	if err := json.Unmarshal(first, &keys); err != nil {
		t.Fatal(err)
	}
	if seg := keys.Segments[0]; seg["speakerId"] != "speaker_1" || seg["speakerName"] != "speaker_1" {
		t.Errorf("segment keys = %v, want speakerId and speakerName", seg)
	}

	var decoded Transcript
	if err := json.Unmarshal(first, &decoded); err != nil {
		t.Fatal(err)
	}
	second, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip changed bytes:\n%s\n%s", first, second)
	}
}

func TestNewStatusRecordAndMerge(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	tr := &Transcript{UserID: "u1", RecordingID: "rec-1", Language: "en", DurationSeconds: 12.5, Summary: "s"}
	rec := NewStatusRecord(tr, "transcripts/u1/dev/rec-1.json", now)
	if rec.Status != StatusTranscribed || rec.TranscriptRef == "" || !rec.UpdatedAt.Equal(now) {
		t.Errorf("unexpected record %+v", rec)
	}

	existing := &StatusRecord{Summary: "old", Topics: []string{"a"}, Embedding: []float64{1}}
	merged := Merge(existing, StatusRecord{Status: StatusTranscribed})
	if merged.Summary != "old" || len(merged.Topics) != 1 || len(merged.Embedding) != 1 {
		t.Errorf("optional fields should be kept: %+v", merged)
	}
	replaced := Merge(existing, StatusRecord{Summary: "new"})
	if replaced.Summary != "new" {
		t.Errorf("summary = %q", replaced.Summary)
	}
}
