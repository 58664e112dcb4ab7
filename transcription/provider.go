package transcription

import (
	"context"

	"github.com/kbukum/remworker/provider"
)

// Provider turns an audio file into timed segments.
type Provider interface {
	provider.Provider

	// Transcribe converts the audio file to text. An error fails the job.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// NewRegistry returns an empty registry of speech-to-text backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
