package httpclient

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kbukum/remworker/resilience"
)

// Config describes how to reach one sidecar. Auth, Retry and
// CircuitBreaker are set in code by the provider that owns the client.
type Config struct {
	BaseURL string            `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	Auth           *AuthConfig                      `yaml:"-" mapstructure:"-"`
	Retry          *resilience.RetryConfig          `yaml:"-" mapstructure:"-"`
	CircuitBreaker *resilience.CircuitBreakerConfig `yaml:"-" mapstructure:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("httpclient: timeout must be positive")
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("httpclient: base_url %q is not an absolute URL", c.BaseURL)
		}
	}
	return nil
}

// DefaultRetryConfig is resilience.DefaultRetryConfig restricted to
// failures IsRetryable accepts.
func DefaultRetryConfig() *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryIf = IsRetryable
	return &cfg
}

// DefaultCircuitBreakerConfig opens after 5 consecutive sidecar failures
// and probes again after 30s.
func DefaultCircuitBreakerConfig(name string) *resilience.CircuitBreakerConfig {
	return &resilience.CircuitBreakerConfig{Name: name, MaxFailures: 5, Timeout: 30 * time.Second}
}
