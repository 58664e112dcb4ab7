package transcription

import (
	"fmt"

	"github.com/kbukum/remworker/recording"
)

// Request holds parameters for a transcription call.
type Request struct {
	AudioPath string `json:"audio_path"`
	// Language forces the language; empty lets the backend detect it.
	Language string `json:"language,omitempty"`
	// Model overrides the backend's configured model.
	Model string `json:"model,omitempty"`
}

// Result holds the outcome of a transcription call. Segments are ordered,
// their text trimmed, and times rounded to 2 decimals.
type Result struct {
	Language            string              `json:"language"`
	LanguageProbability float64             `json:"language_probability"`
	DurationSeconds     float64             `json:"duration_seconds"`
	Segments            []recording.Segment `json:"segments"`
	FullText            string              `json:"full_text"`
	// Model names the model that produced the result.
	Model string `json:"model,omitempty"`
}

// Normalize orders segments by start, rejoining FullText when the order
// changed, and rejects segments that end before they start. Neighbouring
// segments from Whisper can overlap slightly, so order is repaired rather
// than treated as a failure.
func (r *Result) Normalize() error {
	if r.DurationSeconds < 0 {
		return fmt.Errorf("negative duration %v", r.DurationSeconds)
	}
	if err := recording.Validate(r.Segments); err != nil {
		return err
	}
	if recording.SortByStart(r.Segments) {
		r.FullText = recording.JoinText(r.Segments)
	}
	return nil
}
