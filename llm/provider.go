package llm

import (
	"context"

	"github.com/kbukum/remworker/provider"
)

// Completer performs chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Embedder produces text embeddings.
type Embedder interface {
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

// Provider is a backend that can both chat and embed.
type Provider interface {
	provider.Provider
	Completer
	Embedder
}

// NewRegistry returns an empty registry of LLM backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
