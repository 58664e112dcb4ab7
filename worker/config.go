package worker

import (
	"errors"
	"fmt"
)

// Config tunes the processor and the poll loop.
type Config struct {
	// TranscriptsBucket receives the JSON transcript and its .txt sibling.
	TranscriptsBucket string `yaml:"transcripts_bucket" mapstructure:"transcripts_bucket"`
	// ScratchDir holds downloaded audio; empty uses the OS temp dir.
	ScratchDir string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	// Concurrency is the number of competing poll loops in this process.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// EnrichConcurrency bounds parallel enrichment calls per job.
	EnrichConcurrency int `yaml:"enrich_concurrency" mapstructure:"enrich_concurrency"`
	// WriteAttempts is how often each durable write is tried.
	WriteAttempts int `yaml:"write_attempts" mapstructure:"write_attempts"`

	// Language forces the transcription language; empty detects it.
	Language    string `yaml:"language" mapstructure:"language"`
	NumSpeakers int    `yaml:"num_speakers" mapstructure:"num_speakers"`
	MinSpeakers int    `yaml:"min_speakers" mapstructure:"min_speakers"`
	MaxSpeakers int    `yaml:"max_speakers" mapstructure:"max_speakers"`
}

func (c *Config) ApplyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.EnrichConcurrency <= 0 {
		c.EnrichConcurrency = 4
	}
	if c.WriteAttempts <= 0 {
		c.WriteAttempts = 3
	}
}

func (c *Config) Validate() error {
	if c.TranscriptsBucket == "" {
		return errors.New("worker.transcripts_bucket is required")
	}
	if c.MinSpeakers < 0 || c.MaxSpeakers < 0 || c.NumSpeakers < 0 {
		return errors.New("worker speaker counts must not be negative")
	}
	if c.MaxSpeakers > 0 && c.MinSpeakers > c.MaxSpeakers {
		return fmt.Errorf("worker.min_speakers (%d) exceeds max_speakers (%d)", c.MinSpeakers, c.MaxSpeakers)
	}
	return nil
}
