package diarization

import "github.com/kbukum/remworker/recording"

// Request holds parameters for a diarization call.
type Request struct {
	AudioPath string `json:"audio_path"`
	// NumSpeakers is the exact number of speakers (0 = auto-detect).
	NumSpeakers int `json:"num_speakers,omitempty"`
	MinSpeakers int `json:"min_speakers,omitempty"`
	MaxSpeakers int `json:"max_speakers,omitempty"`
}

// Result holds the turns found in one recording. Labels are only
// meaningful within that recording.
type Result struct {
	Turns       []recording.Turn `json:"turns"`
	NumSpeakers int              `json:"num_speakers"`
}
