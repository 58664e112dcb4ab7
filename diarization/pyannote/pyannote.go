// Package pyannote implements diarization and voice embedding against a
// pyannote HTTP sidecar.
package pyannote

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/remworker/diarization"
	"github.com/kbukum/remworker/httpclient"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/recording"
)

const (
	// ProviderName is the registered name for the Pyannote provider.
	ProviderName = "pyannote"

	defaultURL     = "http://localhost:8388"
	defaultTimeout = 5 * time.Minute
)

// Config holds configuration for the Pyannote provider.
type Config struct {
	BaseURL string
	// Token is forwarded to the sidecar, which needs it for gated models.
	Token       string
	Timeout     time.Duration
	MaxAttempts int
}

// Provider implements diarization.Provider and diarization.Embedder.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

var (
	_ diarization.Provider = (*Provider)(nil)
	_ diarization.Embedder = (*Provider)(nil)
)

// NewProvider creates a new Pyannote provider.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	retry := httpclient.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts

	hc := httpclient.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		Retry:          retry,
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig(ProviderName),
	}
	if cfg.Token != "" {
		hc.Auth = httpclient.BearerAuth(cfg.Token)
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("pyannote: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

func configFromOptions(opts map[string]any) Config {
	return Config{
		BaseURL:     provider.String(opts, "base_url", provider.String(opts, "url", "")),
		Token:       provider.String(opts, "token", ""),
		Timeout:     provider.Duration(opts, "timeout", 0),
		MaxAttempts: provider.Int(opts, "max_attempts", 0),
	}
}

// Factory returns a provider.Factory for the diarization registry.
func Factory() provider.Factory[diarization.Provider] {
	return func(opts map[string]any) (diarization.Provider, error) {
		return NewProvider(configFromOptions(opts))
	}
}

// EmbedderFactory returns a provider.Factory for the embedder registry.
func EmbedderFactory() provider.Factory[diarization.Embedder] {
	return func(opts map[string]any) (diarization.Embedder, error) {
		return NewProvider(configFromOptions(opts))
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Pyannote sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Diarize sends audio to the sidecar. Turns with End <= Start are dropped.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Result, error) {
	fields := make(map[string]string)
	if req.NumSpeakers > 0 {
		fields["num_speakers"] = strconv.Itoa(req.NumSpeakers)
	}
	if req.MinSpeakers > 0 {
		fields["min_speakers"] = strconv.Itoa(req.MinSpeakers)
	}
	if req.MaxSpeakers > 0 {
		fields["max_speakers"] = strconv.Itoa(req.MaxSpeakers)
	}

	body := &httpclient.MultipartBody{
		Fields: fields,
		Files:  []httpclient.FileField{httpclient.FileFromPath("audio", req.AudioPath, "")},
	}
	result, err := httpclient.Post[diarizeResponse](p.client, ctx, "/diarize", body)
	if err != nil {
		return nil, httpclient.AppError(ProviderName, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("pyannote diarize: %s", result.Error)
	}
	return toResult(&result), nil
}

// EmbedVoice returns the embedding of the audio between start and end
// seconds.
func (p *Provider) EmbedVoice(ctx context.Context, audioPath string, start, end float64) ([]float64, error) {
	body := &httpclient.MultipartBody{
		Fields: map[string]string{
			"start": strconv.FormatFloat(start, 'f', -1, 64),
			"end":   strconv.FormatFloat(end, 'f', -1, 64),
		},
		Files: []httpclient.FileField{httpclient.FileFromPath("audio", audioPath, "")},
	}
	result, err := httpclient.Post[embedResponse](p.client, ctx, "/embed", body)
	if err != nil {
		return nil, fmt.Errorf("pyannote embed %s [%v, %v]: %w", filepath.Base(audioPath), start, end, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("pyannote embed: %s", result.Error)
	}
	return result.Embedding, nil
}

type diarizeResponse struct {
	Segments    []pyannoteSegment `json:"segments"`
	NumSpeakers int               `json:"num_speakers"`
	Error       string            `json:"error,omitempty"`
}

type pyannoteSegment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func toResult(resp *diarizeResponse) *diarization.Result {
	turns := make([]recording.Turn, 0, len(resp.Segments))
	labels := make(map[string]bool)
	for _, seg := range resp.Segments {
		if seg.EndTime <= seg.StartTime || seg.SpeakerID == "" {
			continue
		}
		turns = append(turns, recording.Turn{Start: seg.StartTime, End: seg.EndTime, Label: seg.SpeakerID})
		labels[seg.SpeakerID] = true
	}
	n := resp.NumSpeakers
	if n == 0 {
		n = len(labels)
	}
	return &diarization.Result{Turns: turns, NumSpeakers: n}
}
