package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kbukum/remworker/process"
	"github.com/kbukum/remworker/provider"
	"github.com/kbukum/remworker/transcription"
)

// CLIProviderName is the registered name for the local command backend.
const CLIProviderName = "whisper-cli"

const defaultBinary = "rem-transcribe"

// CLIConfig configures a local transcription command. The command is
// invoked as
//
//	<binary> <args...> --audio PATH --model M [--language L] [--device D] [--compute-type C]
//
// and must print the same JSON document the HTTP sidecar returns.
type CLIConfig struct {
	Binary      string
	Args        []string
	Model       string
	Language    string
	Device      string
	ComputeType string
	Timeout     time.Duration
	// MaxFailures consecutive crashes mark the backend unavailable.
	MaxFailures int
}

func (c *CLIConfig) applyDefaults() {
	if c.Binary == "" {
		c.Binary = defaultBinary
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
}

// CLIProvider implements transcription.Provider by running a local
// faster-whisper command per recording.
type CLIProvider struct {
	cfg    CLIConfig
	runner *process.Runner
}

// NewCLIProvider creates a command-backed provider.
func NewCLIProvider(cfg CLIConfig) *CLIProvider {
	cfg.applyDefaults()
	return &CLIProvider{
		cfg: cfg,
		runner: process.NewRunner(process.RunnerConfig{
			Name:         CLIProviderName,
			Timeout:      cfg.Timeout,
			MaxFailures:  cfg.MaxFailures,
			ResetTimeout: time.Minute,
		}),
	}
}

// CLIFactory returns a provider.Factory for the command backend.
func CLIFactory() provider.Factory[transcription.Provider] {
	return func(opts map[string]any) (transcription.Provider, error) {
		return NewCLIProvider(CLIConfig{
			Binary:      provider.String(opts, "binary", ""),
			Args:        strings.Fields(provider.String(opts, "args", "")),
			Model:       provider.String(opts, "model", ""),
			Language:    provider.String(opts, "language", ""),
			Device:      provider.String(opts, "device", ""),
			ComputeType: provider.String(opts, "compute_type", ""),
			Timeout:     provider.Duration(opts, "timeout", 0),
			MaxFailures: provider.Int(opts, "max_failures", 0),
		}), nil
	}
}

func (p *CLIProvider) Name() string { return CLIProviderName }

// IsAvailable reports whether the binary resolves and has not been
// crashing.
func (p *CLIProvider) IsAvailable(context.Context) bool {
	if _, err := exec.LookPath(p.cfg.Binary); err != nil {
		return false
	}
	return !p.runner.Open()
}

// Transcribe runs the command on the local audio file.
func (p *CLIProvider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	model := p.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := p.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	args := append([]string(nil), p.cfg.Args...)
	args = append(args, "--audio", req.AudioPath, "--model", model)
	if lang != "" {
		args = append(args, "--language", lang)
	}
	if p.cfg.Device != "" {
		args = append(args, "--device", p.cfg.Device)
	}
	if p.cfg.ComputeType != "" {
		args = append(args, "--compute-type", p.cfg.ComputeType)
	}

	out, err := p.runner.Run(ctx, process.Command{Binary: p.cfg.Binary, Args: args})
	if err != nil {
		return nil, fmt.Errorf("whisper-cli transcribe: %w", err)
	}

	var resp whisperResponse
	if err := json.Unmarshal(out.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("whisper-cli transcribe: parse output: %w", err)
	}
	res := toResult(&resp, model)
	if err := res.Normalize(); err != nil {
		return nil, fmt.Errorf("whisper-cli transcribe: %w", err)
	}
	return res, nil
}
