package config

import (
	"fmt"
	"strings"

	"github.com/kbukum/remworker/logger"
)

// ServiceConfig is the part of the config every deployment carries.
// Embed it with `mapstructure:",squash"`.
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	// Debug defaults to true in development and lowers an unset log
	// level to debug.
	Debug   bool          `yaml:"debug" mapstructure:"debug"`
	Logging logger.Config `yaml:"logging" mapstructure:"logging"`
}

var environmentAliases = map[string]string{
	"":            "development",
	"dev":         "development",
	"local":       "development",
	"development": "development",
	"stage":       "staging",
	"staging":     "staging",
	"prod":        "production",
	"production":  "production",
}

func (c *ServiceConfig) ApplyDefaults() {
	if env, ok := environmentAliases[strings.ToLower(c.Environment)]; ok {
		c.Environment = env
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config.environment must be one of development, staging, production (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}

// GetServiceConfig lets structs that embed ServiceConfig expose it through
// an interface.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig { return c }
