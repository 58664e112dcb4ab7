package storage

import (
	"fmt"
	"slices"
)

// Backend names accepted in storage.provider.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
	ProviderMinio = "minio"
)

var providers = []string{ProviderLocal, ProviderS3, ProviderMinio}

// Config picks the backend. Its own settings travel separately, as the
// settings argument of New.
type Config struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
	// ScratchDir stages downloaded audio; empty means the OS temp dir.
	ScratchDir string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
}

func (c *Config) Validate() error {
	if !slices.Contains(providers, c.Provider) {
		return fmt.Errorf("storage.provider must be one of %v (got: %q)", providers, c.Provider)
	}
	return nil
}
