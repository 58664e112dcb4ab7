// Package openai implements llm.Provider on the OpenAI API using
// github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/remworker/llm"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/resilience"
)

const (
	// ProviderName is the registered name for the OpenAI provider.
	ProviderName = "openai"

	DefaultChatModel      = goopenai.GPT4oMini
	DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)
)

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey string
	// BaseURL targets a compatible endpoint; empty uses api.openai.com.
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	MaxAttempts    int
}

// Provider implements llm.Provider with the go-openai client.
type Provider struct {
	cfg    Config
	client *goopenai.Client
	retry  resilience.RetryConfig
}

// NewProvider creates an OpenAI provider. An API key is required.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.RetryIf = isTransient

	return &Provider{cfg: cfg, client: goopenai.NewClientWithConfig(clientCfg), retry: retry}, nil
}

// Factory returns a provider.Factory that creates OpenAI providers from
// an options map.
func Factory() provider.Factory[llm.Provider] {
	return func(opts map[string]any) (llm.Provider, error) {
		return NewProvider(Config{
			APIKey:         provider.String(opts, "api_key", ""),
			BaseURL:        provider.String(opts, "base_url", ""),
			ChatModel:      provider.String(opts, "chat_model", ""),
			EmbeddingModel: provider.String(opts, "embedding_model", ""),
			MaxAttempts:    provider.Int(opts, "max_attempts", 0),
		})
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable lists models as a cheap authenticated round trip.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Complete sends a chat completion request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := p.cfg.ChatModel
	if req.Model != "" {
		model = req.Model
	}
	all := req.AllMessages()
	msgs := make([]goopenai.ChatCompletionMessage, len(all))
	for i, m := range all {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := resilience.Retry(ctx, p.retry, func() (goopenai.ChatCompletionResponse, error) {
		return p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
			Model:       model,
			Messages:    msgs,
			MaxTokens:   req.MaxTokens,
			Temperature: float32(req.Temperature),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("openai complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai complete: %w", llm.ErrEmptyResponse)
	}
	return &llm.CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Embed returns the embedding of req.Input.
func (p *Provider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	model := p.cfg.EmbeddingModel
	if req.Model != "" {
		model = req.Model
	}
	resp, err := resilience.Retry(ctx, p.retry, func() (goopenai.EmbeddingResponse, error) {
		return p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: []string{req.Input},
			Model: goopenai.EmbeddingModel(model),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai embed: %w", llm.ErrEmptyResponse)
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return &llm.EmbeddingResponse{Embedding: vec, Model: string(resp.Model)}, nil
}

// isTransient retries rate limits, server errors and transport failures.
func isTransient(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
