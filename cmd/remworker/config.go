package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/kbukum/remworker/config"
	"github.com/kbukum/remworker/database"
	"github.com/kbukum/remworker/dynamodb"
	"github.com/kbukum/remworker/enrichment"
	"github.com/kbukum/remworker/observability"
	"github.com/kbukum/remworker/queue"
	"github.com/kbukum/remworker/queue/kafka"
	"github.com/kbukum/remworker/queue/sqs"
	"github.com/kbukum/remworker/redis"
	"github.com/kbukum/remworker/server"
	"github.com/kbukum/remworker/speaker"
	"github.com/kbukum/remworker/storage"
	"github.com/kbukum/remworker/storage/local"
	"github.com/kbukum/remworker/storage/minio"
	"github.com/kbukum/remworker/storage/s3"
	"github.com/kbukum/remworker/worker"
)

const serviceName = "remworker"

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StoreSQL      = "sql"
	StoreRedis    = "redis"
)

// Config is the worker's full configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Worker        worker.Config        `yaml:"worker" mapstructure:"worker"`
	Queue         QueueConfig          `yaml:"queue" mapstructure:"queue"`
	Storage       StorageConfig        `yaml:"storage" mapstructure:"storage"`
	Stores        StoresConfig         `yaml:"stores" mapstructure:"stores"`
	DynamoDB      dynamodb.Config      `yaml:"dynamodb" mapstructure:"dynamodb"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Redis         redis.Config         `yaml:"redis" mapstructure:"redis"`
	Transcription ProviderConfig       `yaml:"transcription" mapstructure:"transcription"`
	Diarization   ProviderConfig       `yaml:"diarization" mapstructure:"diarization"`
	VoiceEmbedder ProviderConfig       `yaml:"voice_embedder" mapstructure:"voice_embedder"`
	LLM           ProviderConfig       `yaml:"llm" mapstructure:"llm"`
	Enrichment    enrichment.Config    `yaml:"enrichment" mapstructure:"enrichment"`
	Speakers      SpeakersConfig       `yaml:"speakers" mapstructure:"speakers"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// QueueConfig selects and configures the job source.
type QueueConfig struct {
	queue.Config `yaml:",inline" mapstructure:",squash"`
	SQS          sqs.Config   `yaml:"sqs" mapstructure:"sqs"`
	Kafka        kafka.Config `yaml:"kafka" mapstructure:"kafka"`
}

// StorageConfig selects the object store and holds every backend's settings.
type StorageConfig struct {
	storage.Config `yaml:",inline" mapstructure:",squash"`
	Local          local.Config `yaml:"local" mapstructure:"local"`
	S3             s3.Config    `yaml:"s3" mapstructure:"s3"`
	Minio          minio.Config `yaml:"minio" mapstructure:"minio"`
}

// ProviderSettings returns the config for the selected backend.
func (c *StorageConfig) ProviderSettings() any {
	switch c.Provider {
	case storage.ProviderS3:
		return &c.S3
	case storage.ProviderMinio:
		return &c.Minio
	default:
		return &c.Local
	}
}

// StoresConfig selects where status records and speaker profiles live.
type StoresConfig struct {
	Status          string `yaml:"status" mapstructure:"status"`
	Profiles        string `yaml:"profiles" mapstructure:"profiles"`
	RecordingsTable string `yaml:"recordings_table" mapstructure:"recordings_table"`
	ProfilesTable   string `yaml:"profiles_table" mapstructure:"profiles_table"`
}

func (c *StoresConfig) ApplyDefaults() {
	if c.Status == "" {
		c.Status = StoreDynamoDB
	}
	if c.Profiles == "" {
		c.Profiles = StoreDynamoDB
	}
	if c.RecordingsTable == "" {
		c.RecordingsTable = "rem-recordings"
	}
	if c.ProfilesTable == "" {
		c.ProfilesTable = "rem-speaker-profiles"
	}
}

func (c *StoresConfig) Validate() error {
	switch c.Status {
	case StoreMemory, StoreDynamoDB, StoreSQL:
	default:
		return fmt.Errorf("stores.status must be memory, dynamodb or sql (got: %s)", c.Status)
	}
	switch c.Profiles {
	case StoreMemory, StoreDynamoDB, StoreSQL, StoreRedis:
	default:
		return fmt.Errorf("stores.profiles must be memory, dynamodb, sql or redis (got: %s)", c.Profiles)
	}
	return nil
}

// ProviderConfig names a registered backend; Options are passed to its
// factory. An empty provider or "none" disables the capability.
type ProviderConfig struct {
	Provider string         `yaml:"provider" mapstructure:"provider"`
	Options  map[string]any `yaml:"options" mapstructure:"options"`
}

// SpeakersConfig tunes identity resolution.
type SpeakersConfig struct {
	speaker.Config `yaml:",inline" mapstructure:",squash"`
	// Lock serializes resolution per user through Redis.
	Lock bool `yaml:"lock" mapstructure:"lock"`
}

func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Worker.ApplyDefaults()
	if c.Worker.ScratchDir == "" {
		c.Worker.ScratchDir = c.Storage.ScratchDir
	}
	c.Queue.Config.ApplyDefaults()
	c.Queue.SQS.WaitTimeSeconds = int32(c.Queue.WaitTime.Seconds())
	c.Queue.SQS.VisibilityTimeout = int32(c.Queue.Lease.Seconds())
	c.Queue.SQS.ApplyDefaults()
	c.Queue.Kafka.WaitTime = c.Queue.WaitTime
	c.Queue.Kafka.ApplyDefaults()
	c.Storage.Config.ApplyDefaults()
	c.Stores.ApplyDefaults()
	c.DynamoDB.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Enrichment.ApplyDefaults()
	c.Speakers.Config.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Observability.ApplyDefaults()
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
}

func (c *Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("service", c.ServiceConfig.Validate())
	add("worker", c.Worker.Validate())
	add("queue", c.Queue.Config.Validate())
	switch c.Queue.Backend {
	case queue.BackendSQS:
		add("queue.sqs", c.Queue.SQS.Validate())
	case queue.BackendKafka:
		add("queue.kafka", c.Queue.Kafka.Validate())
	}
	add("storage", c.Storage.Config.Validate())
	add("stores", c.Stores.Validate())
	if c.Stores.Status == StoreSQL || c.Stores.Profiles == StoreSQL {
		if !c.Database.Enabled {
			errs = append(errs, errors.New("database.enabled is required for sql stores"))
		}
		add("database", c.Database.Validate())
	}
	if c.Stores.Profiles == StoreRedis || c.Speakers.Lock {
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("redis.enabled is required for redis profiles or speaker locking"))
		}
		add("redis", c.Redis.Validate())
	}
	if c.Stores.Status == StoreDynamoDB || c.Stores.Profiles == StoreDynamoDB {
		add("dynamodb", c.DynamoDB.Validate())
	}
	if c.Transcription.Provider == "" || c.Transcription.Provider == "none" {
		errs = append(errs, errors.New("transcription.provider is required"))
	}
	add("speakers", c.Speakers.Config.Validate())
	add("server", c.Server.Validate())
	add("observability", c.Observability.Validate())
	return errors.Join(errs...)
}

// legacyEnv maps the worker's flat environment names onto config keys.
var legacyEnv = map[string]string{
	"TRANSCRIPTS_BUCKET": "worker.transcripts_bucket",
	"SQS_QUEUE_URL":      "queue.sqs.queue_url",
	"DYNAMODB_TABLE":     "stores.recordings_table",
	"WHISPER_MODEL":      "transcription.options.model",
	"POLL_INTERVAL":      "queue.poll_interval",
	"MAX_MESSAGES":       "queue.max_messages",
	"VISIBILITY_TIMEOUT": "queue.lease",
	"AWS_REGION":         "dynamodb.region",
}

// secondsEnv lists legacy variables given in bare seconds.
var secondsEnv = []string{"POLL_INTERVAL", "VISIBILITY_TIMEOUT"}

// normalizeSeconds rewrites bare integer seconds to duration strings.
func normalizeSeconds(getenv func(string) string, setenv func(string, string) error) error {
	for _, key := range secondsEnv {
		v := getenv(key)
		if v == "" {
			continue
		}
		if _, err := strconv.Atoi(v); err == nil {
			if err := setenv(key, v+"s"); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadConfig reads config.yml, .env and the environment into a Config.
func loadConfig(path string) (*Config, error) {
	if err := normalizeSeconds(os.Getenv, os.Setenv); err != nil {
		return nil, err
	}
	cfg := &Config{}
	opts := []config.LoaderOption{config.WithEnvAliases(legacyEnv)}
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}
