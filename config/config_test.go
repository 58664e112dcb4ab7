package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type testQueue struct {
	URL         string `mapstructure:"url"`
	MaxMessages int    `mapstructure:"max_messages"`
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Queue         testQueue `mapstructure:"queue"`
}

type mockFS struct {
	files  map[string]bool
	loaded []string
}

func (m *mockFS) Exists(path string) bool { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error {
	m.loaded = append(m.loaded, path)
	return nil
}

func TestServiceConfigApplyDefaults(t *testing.T) {
	cfg := ServiceConfig{Name: "remworker"}
	cfg.ApplyDefaults()
	if cfg.Environment != "development" || !cfg.Debug {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Logging.ServiceName != "remworker" {
		t.Errorf("logging service name = %q", cfg.Logging.ServiceName)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("development log level = %q", cfg.Logging.Level)
	}

	prod := ServiceConfig{Name: "remworker", Environment: "PROD"}
	prod.ApplyDefaults()
	if prod.Environment != "production" || prod.Debug {
		t.Errorf("prod = %+v", prod)
	}
	if prod.Logging.Level != "info" {
		t.Errorf("production log level = %q", prod.Logging.Level)
	}
}

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ServiceConfig
		errMsg string
	}{
		{"valid", ServiceConfig{Name: "svc", Environment: "staging"}, ""},
		{"missing name", ServiceConfig{Environment: "production"}, "config.name is required"},
		{"bad environment", ServiceConfig{Name: "svc", Environment: "qa"}, "config.environment must be one of"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cfg.Logging.ApplyDefaults()
			err := tc.cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("expected error containing %q, got %v", tc.errMsg, err)
			}
		})
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
name: remworker
environment: staging
queue:
  url: https://sqs.local/q
  max_messages: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	var cfg testConfig
	if err := LoadConfig("remworker", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "remworker" || cfg.Environment != "staging" {
		t.Errorf("service fields = %+v", cfg.ServiceConfig)
	}
	if cfg.Queue.URL != "https://sqs.local/q" || cfg.Queue.MaxMessages != 3 {
		t.Errorf("queue = %+v", cfg.Queue)
	}
}

func TestLoadConfigEnvOverridesAndAliases(t *testing.T) {
	t.Setenv("QUEUE_MAX_MESSAGES", "7")
	t.Setenv("LEGACY_QUEUE_URL", "https://sqs.local/legacy")
	t.Chdir(t.TempDir())

	var cfg testConfig
	err := LoadConfig("remworker", &cfg,
		WithEnvAliases(map[string]string{"LEGACY_QUEUE_URL": "queue.url"}),
		WithDefaults(map[string]interface{}{"name": "fallback"}),
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Queue.MaxMessages != 7 {
		t.Errorf("max_messages = %d", cfg.Queue.MaxMessages)
	}
	if cfg.Queue.URL != "https://sqs.local/legacy" {
		t.Errorf("url = %q", cfg.Queue.URL)
	}
	if cfg.Name != "fallback" {
		t.Errorf("name = %q", cfg.Name)
	}
}

func TestResolverSearchOrder(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./config/config.yml":             true,
		"./cmd/remworker/config.yml":      true,
		"./.env":                          true,
		"./cmd/remworker/.env.remworker": true,
	}}
	r := &Resolver{FileSystem: fs}
	got := r.ResolveFiles("remworker", LoaderConfig{})
	if got.ConfigFile != "./cmd/remworker/config.yml" {
		t.Errorf("config file = %q", got.ConfigFile)
	}
	if got.EnvFile != "./cmd/remworker/.env.remworker" {
		t.Errorf("env file = %q", got.EnvFile)
	}

	explicit := r.ResolveFiles("remworker", LoaderConfig{ConfigFile: "x.yml", EnvFile: "y.env"})
	if explicit.ConfigFile != "x.yml" || explicit.EnvFile != "y.env" {
		t.Errorf("explicit paths not honored: %+v", explicit)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("QUEUE_SQS_QUEUE_URL")
	for _, want := range []string{"queue_sqs_queue_url", "queue.sqs.queue.url", "queue.sqs.queue_url", "queue.sqs_queue_url"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing variant %q in %v", want, got)
		}
	}
	if single := envKeyVariants("HOME"); len(single) != 1 || single[0] != "home" {
		t.Errorf("single-part key = %v", single)
	}
}
