// Package ollama implements llm.Provider against a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/remworker/httpclient"
	"github.com/kbukum/remworker/llm"
	"github.com/kbukum/remworker/provider"
)

const (
	// ProviderName is the registered name for the Ollama provider.
	ProviderName = "ollama"

	defaultURL            = "http://localhost:11434"
	defaultChatModel      = "llama3"
	defaultEmbeddingModel = "nomic-embed-text"
	defaultTimeout        = 120 * time.Second
)

// Config holds configuration for the Ollama provider.
type Config struct {
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Temperature    float64
	Timeout        time.Duration
}

// Provider implements llm.Provider using Ollama's HTTP API.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new Ollama LLM provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		Retry:          httpclient.DefaultRetryConfig(),
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig(ProviderName),
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory that creates Ollama providers from
// an options map.
func Factory() provider.Factory[llm.Provider] {
	return func(opts map[string]any) (llm.Provider, error) {
		temp, _ := opts["temperature"].(float64)
		return NewProvider(Config{
			BaseURL:        provider.String(opts, "base_url", ""),
			ChatModel:      provider.String(opts, "chat_model", provider.String(opts, "model", "")),
			EmbeddingModel: provider.String(opts, "embedding_model", ""),
			Temperature:    temp,
			Timeout:        provider.Duration(opts, "timeout", 0),
		})
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Ollama server is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/api/tags"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Complete sends a non-streaming chat request.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := httpclient.Post[chatResponse](p.client, ctx, "/api/chat", p.buildChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("ollama complete: %w", err)
	}
	return &llm.CompletionResponse{
		Content: resp.Message.Content,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// Embed returns the embedding of req.Input.
func (p *Provider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	model := p.cfg.EmbeddingModel
	if req.Model != "" {
		model = req.Model
	}
	resp, err := httpclient.Post[embedResponse](p.client, ctx, "/api/embed", embedRequest{Model: model, Input: req.Input})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama embed: %w", llm.ErrEmptyResponse)
	}
	return &llm.EmbeddingResponse{Embedding: resp.Embeddings[0], Model: resp.Model}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *Provider) buildChatRequest(req llm.CompletionRequest) chatRequest {
	model := p.cfg.ChatModel
	if req.Model != "" {
		model = req.Model
	}
	temp := p.cfg.Temperature
	if req.Temperature != 0 {
		temp = req.Temperature
	}

	all := req.AllMessages()
	msgs := make([]chatMessage, len(all))
	for i, m := range all {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	out := chatRequest{Model: model, Messages: msgs}
	if temp != 0 || req.MaxTokens > 0 {
		out.Options = &chatOptions{Temperature: temp, NumPredict: req.MaxTokens}
	}
	return out
}
