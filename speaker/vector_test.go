package speaker

import (
	"math"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 1}, []float64{-1, -1}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
		{"scaled", []float64{1, 0}, []float64{5, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatal(err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Cosine([]float64{1}, []float64{1, 2}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestUpdateCentroid(t *testing.T) {
	got, n := UpdateCentroid([]float64{1, 0}, 2, []float64{0, 1})
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if !almostEqual(got[0], 0.667) || !almostEqual(got[1], 0.333) {
		t.Errorf("centroid = %v, want [0.667 0.333]", got)
	}

	orig := []float64{1, 1}
	UpdateCentroid(orig, 1, []float64{3, 3})
	if orig[0] != 1 || orig[1] != 1 {
		t.Error("UpdateCentroid must not modify its input")
	}
}

func TestApply(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	created := Apply(nil, ProfileUpdate{UserID: "u1", SpeakerID: "speaker_1", Embedding: []float64{1}, SampleCount: 1}, t0)
	if created.Name != "speaker_1" || !created.CreatedAt.Equal(t0) || !created.UpdatedAt.Equal(t0) {
		t.Errorf("new profile = %+v", created)
	}

	updated := Apply(&created, ProfileUpdate{UserID: "u1", SpeakerID: "speaker_1", Embedding: []float64{0.5}, SampleCount: 2}, t1)
	if !updated.CreatedAt.Equal(t0) {
		t.Error("CreatedAt must be preserved")
	}
	if !updated.UpdatedAt.Equal(t1) {
		t.Error("UpdatedAt must be refreshed")
	}
	if updated.SampleCount != 2 || updated.Embedding[0] != 0.5 || updated.Name != "speaker_1" {
		t.Errorf("updated = %+v", updated)
	}

	renamed := Apply(&updated, ProfileUpdate{SpeakerID: "speaker_1", Name: "Ana"}, t1)
	if renamed.Name != "Ana" || renamed.Embedding[0] != 0.5 || renamed.SampleCount != 2 {
		t.Errorf("rename should leave embedding and count alone: %+v", renamed)
	}
}
