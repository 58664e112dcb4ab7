package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyResponse is returned when a backend answers without content.
var ErrEmptyResponse = errors.New("llm: empty response")

// Complete sends req and returns the trimmed text of the reply.
func Complete(ctx context.Context, c Completer, req CompletionRequest) (string, error) {
	resp, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// EmbedText returns the embedding of text. An empty vector is an error.
func EmbedText(ctx context.Context, e Embedder, text string) ([]float64, error) {
	resp, err := e.Embed(ctx, EmbeddingRequest{Input: text})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Embedding, nil
}
