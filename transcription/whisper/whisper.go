// Package whisper implements transcription.Provider on top of
// faster-whisper, either as an HTTP sidecar or as a local command.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/remworker/httpclient"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/transcription"
)

const (
	// ProviderName is the registered name for the Whisper provider.
	ProviderName = "whisper"

	defaultURL            = "http://localhost:8387"
	defaultModel          = "base"
	defaultTimeout        = 10 * time.Minute
	defaultBeamSize       = 5
	defaultMinSilenceMS   = 500
	segmentTimePrecision  = 2
	languageProbPrecision = 4
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL         string
	Model       string
	Language    string
	Device      string
	ComputeType string
	BeamSize    int
	// VADFilter drops non-speech before decoding; MinSilenceMS is the VAD
	// split threshold.
	VADFilter    bool
	MinSilenceMS int
	APIKey       string
	Timeout      time.Duration
	// MaxAttempts bounds retries of transient sidecar failures.
	MaxAttempts int
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = defaultURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.BeamSize <= 0 {
		c.BeamSize = defaultBeamSize
	}
	if c.MinSilenceMS <= 0 {
		c.MinSilenceMS = defaultMinSilenceMS
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
}

// Provider implements transcription.Provider using a faster-whisper HTTP sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new Whisper transcription provider.
func NewProvider(cfg Config) (*Provider, error) {
	cfg.applyDefaults()
	retry := httpclient.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxAttempts

	hc := httpclient.Config{
		BaseURL:        cfg.URL,
		Timeout:        cfg.Timeout,
		Retry:          retry,
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig(ProviderName),
	}
	if cfg.APIKey != "" {
		hc.Auth = httpclient.BearerAuth(cfg.APIKey)
	}
	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory that creates Whisper providers from
// an options map.
func Factory() provider.Factory[transcription.Provider] {
	return func(opts map[string]any) (transcription.Provider, error) {
		return NewProvider(Config{
			URL:          provider.String(opts, "url", ""),
			Model:        provider.String(opts, "model", ""),
			Language:     provider.String(opts, "language", ""),
			Device:       provider.String(opts, "device", ""),
			ComputeType:  provider.String(opts, "compute_type", ""),
			BeamSize:     provider.Int(opts, "beam_size", 0),
			VADFilter:    provider.Bool(opts, "vad_filter", true),
			MinSilenceMS: provider.Int(opts, "min_silence_duration_ms", 0),
			APIKey:       provider.String(opts, "api_key", ""),
			Timeout:      provider.Duration(opts, "timeout", 0),
			MaxAttempts:  provider.Int(opts, "max_attempts", 0),
		})
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Whisper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Transcribe uploads the audio file to the sidecar and normalizes the
// result.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	fields := map[string]string{
		"model":                   model,
		"beam_size":               strconv.Itoa(p.cfg.BeamSize),
		"vad_filter":              strconv.FormatBool(p.cfg.VADFilter),
		"min_silence_duration_ms": strconv.Itoa(p.cfg.MinSilenceMS),
	}
	if lang != "" {
		fields["language"] = lang
	}
	if p.cfg.Device != "" {
		fields["device"] = p.cfg.Device
	}
	if p.cfg.ComputeType != "" {
		fields["compute_type"] = p.cfg.ComputeType
	}

	body := &httpclient.MultipartBody{
		Fields: fields,
		Files:  []httpclient.FileField{httpclient.FileFromPath("audio", req.AudioPath, audioContentType(req.AudioPath))},
	}
	resp, err := httpclient.Post[whisperResponse](p.client, ctx, "/transcribe", body)
	if err != nil {
		return nil, httpclient.AppError(ProviderName, err)
	}

	res := toResult(&resp, model)
	if err := res.Normalize(); err != nil {
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}
	return res, nil
}

type whisperResponse struct {
	Text                string           `json:"text"`
	Segments            []whisperSegment `json:"segments"`
	Language            string           `json:"language"`
	LanguageProbability float64          `json:"language_probability"`
	Duration            float64          `json:"duration"`
}

type whisperSegment struct {
	ID    *int    `json:"id"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func toResult(resp *whisperResponse, model string) *transcription.Result {
	segments := make([]recording.Segment, len(resp.Segments))
	for i, seg := range resp.Segments {
		id := i
		if seg.ID != nil {
			id = *seg.ID
		}
		segments[i] = recording.Segment{
			ID:    id,
			Start: recording.Round(seg.Start, segmentTimePrecision),
			End:   recording.Round(seg.End, segmentTimePrecision),
			Text:  strings.TrimSpace(seg.Text),
		}
	}

	duration := resp.Duration
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	return &transcription.Result{
		Language:            resp.Language,
		LanguageProbability: recording.Round(resp.LanguageProbability, languageProbPrecision),
		DurationSeconds:     recording.Round(duration, segmentTimePrecision),
		Segments:            segments,
		FullText:            recording.JoinText(segments),
		Model:               model,
	}
}

func audioContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	case ".ogg", ".opus":
		return "audio/ogg"
	default:
		return ""
	}
}
