package diarization

import (
	"context"

	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/speaker"
)

// Provider is the interface that diarization backends must implement.
type Provider interface {
	provider.Provider

	// Diarize returns who spoke when. Zero turns is a valid result.
	Diarize(ctx context.Context, req Request) (*Result, error)
}

// Embedder extracts voice embeddings for speaker identification.
type Embedder interface {
	provider.Provider
	speaker.VoiceEmbedder
}

// NewRegistry creates a registry for diarization backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

// NewEmbedderRegistry creates a registry for voice embedding backends.
func NewEmbedderRegistry() *provider.Registry[Embedder] {
	return provider.NewRegistry[Embedder]()
}
