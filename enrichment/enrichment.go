// Package enrichment derives optional metadata from transcript text:
// a text embedding, a short summary and a topic list.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/remworker/llm"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/resilience"
)

const (
	DefaultEmbedMaxChars    = 8000
	DefaultPromptMaxChars   = 4000
	DefaultMaxTopics        = 5
	DefaultSummaryMaxTokens = 150
	DefaultTopicsMaxTokens  = 50
	DefaultTemperature      = 0.3
)

const (
	summarySystemPrompt = "You are a helpful assistant that summarizes voice recordings. " +
		"Create a concise 2-3 sentence summary of the key points."
	topicsSystemPrompt = "You are a helpful assistant that extracts key topics from voice recordings. " +
		"Return ONLY a comma-separated list of 3-5 single-word or short-phrase topics. " +
		"No explanations, just the topics."
)

// ErrEmptyInput is returned for blank text; callers skip the field.
var ErrEmptyInput = errors.New("enrichment: empty input")

// Config tunes enrichment. Character limits count runes.
type Config struct {
	EmbedMaxChars    int     `yaml:"embed_max_chars" mapstructure:"embed_max_chars"`
	PromptMaxChars   int     `yaml:"prompt_max_chars" mapstructure:"prompt_max_chars"`
	MaxTopics        int     `yaml:"max_topics" mapstructure:"max_topics"`
	SummaryMaxTokens int     `yaml:"summary_max_tokens" mapstructure:"summary_max_tokens"`
	TopicsMaxTokens  int     `yaml:"topics_max_tokens" mapstructure:"topics_max_tokens"`
	Temperature      float64 `yaml:"temperature" mapstructure:"temperature"`
	// SegmentEmbeddings also embeds every segment's text.
	SegmentEmbeddings bool `yaml:"segment_embeddings" mapstructure:"segment_embeddings"`
}

func (c *Config) ApplyDefaults() {
	if c.EmbedMaxChars <= 0 {
		c.EmbedMaxChars = DefaultEmbedMaxChars
	}
	if c.PromptMaxChars <= 0 {
		c.PromptMaxChars = DefaultPromptMaxChars
	}
	if c.MaxTopics <= 0 {
		c.MaxTopics = DefaultMaxTopics
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = DefaultSummaryMaxTokens
	}
	if c.TopicsMaxTokens <= 0 {
		c.TopicsMaxTokens = DefaultTopicsMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
}

// Enricher calls an LLM backend behind a circuit breaker, so a dead
// backend costs one failure per call rather than one timeout.
type Enricher struct {
	backend llm.Provider
	cfg     Config
	cb      *resilience.CircuitBreaker
	log     *logger.Logger
}

// New builds an Enricher over backend.
func New(backend llm.Provider, cfg Config, log *logger.Logger) *Enricher {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.WithComponent("enrichment")
	}
	e := &Enricher{backend: backend, cfg: cfg, log: log}
	e.cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "enrichment-" + backend.Name(),
		MaxFailures: 5,
		Timeout:     time.Minute,
		OnStateChange: func(name string, from, to resilience.State) {
			e.log.Warn("llm circuit state changed", logger.Fields("breaker", name, "from", from.String(), "to", to.String()))
		},
	})
	return e
}

// Config returns the effective configuration.
func (e *Enricher) Config() Config { return e.cfg }

// Embed returns the embedding of the first EmbedMaxChars characters.
func (e *Enricher) Embed(ctx context.Context, text string) ([]float64, error) {
	text = Truncate(strings.TrimSpace(text), e.cfg.EmbedMaxChars)
	if text == "" {
		return nil, ErrEmptyInput
	}
	var vec []float64
	err := e.cb.Execute(func() error {
		var err error
		vec, err = llm.EmbedText(ctx, e.backend, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vec, nil
}

// Summarize returns a 2-3 sentence summary of the first PromptMaxChars
// characters.
func (e *Enricher) Summarize(ctx context.Context, text string) (string, error) {
	text = Truncate(strings.TrimSpace(text), e.cfg.PromptMaxChars)
	if text == "" {
		return "", ErrEmptyInput
	}
	out, err := e.complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		Messages:     []llm.Message{llm.UserMessage("Summarize this transcript:\n\n" + text)},
		MaxTokens:    e.cfg.SummaryMaxTokens,
		Temperature:  e.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return out, nil
}

// ExtractTopics returns at most MaxTopics lower-cased topics.
func (e *Enricher) ExtractTopics(ctx context.Context, text string) ([]string, error) {
	text = Truncate(strings.TrimSpace(text), e.cfg.PromptMaxChars)
	if text == "" {
		return nil, ErrEmptyInput
	}
	out, err := e.complete(ctx, llm.CompletionRequest{
		SystemPrompt: topicsSystemPrompt,
		Messages:     []llm.Message{llm.UserMessage("Extract topics from this transcript:\n\n" + text)},
		MaxTokens:    e.cfg.TopicsMaxTokens,
		Temperature:  e.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("extract topics: %w", err)
	}
	topics := ParseTopics(out, e.cfg.MaxTopics)
	if len(topics) == 0 {
		return nil, fmt.Errorf("extract topics: %w", llm.ErrEmptyResponse)
	}
	return topics, nil
}

func (e *Enricher) complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	var out string
	err := e.cb.Execute(func() error {
		var err error
		out, err = llm.Complete(ctx, e.backend, req)
		return err
	})
	return out, err
}

// ParseTopics splits comma-separated model output into trimmed,
// lower-cased topics, dropping empties and duplicates, capped at max.
func ParseTopics(s string, max int) []string {
	var topics []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		t := strings.ToLower(strings.TrimSpace(part))
		t = strings.Trim(t, ".\"'")
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		topics = append(topics, t)
		if max > 0 && len(topics) == max {
			break
		}
	}
	return topics
}

// Truncate returns the first n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
