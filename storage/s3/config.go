package s3

import (
	"errors"
)

// DefaultRegion is the default AWS region.
const DefaultRegion = "us-east-1"

// Config holds S3-specific storage configuration. Buckets come from each
// request, so none is configured here.
type Config struct {
	Region string `yaml:"region" mapstructure:"region" json:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. LocalStack).
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" json:"endpoint"`

	// AccessKey and SecretKey are optional; the default AWS credential chain
	// is used when either is empty.
	AccessKey string `yaml:"access_key" mapstructure:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key" json:"secret_key"`

	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `yaml:"force_path_style" mapstructure:"force_path_style" json:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the S3 configuration is valid.
func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("s3: region is required")
	}
	return nil
}

func (c *Config) DescribeEndpoint() string {
	if c.Endpoint != "" {
		return "endpoint=" + c.Endpoint
	}
	return "region=" + c.Region
}
