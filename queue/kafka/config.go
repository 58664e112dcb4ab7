package kafka

import (
	"fmt"
	"slices"
	"time"
)

// Config holds Kafka connection and delivery settings for the job topic.
type Config struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	GroupID string   `yaml:"group_id" mapstructure:"group_id"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`

	// RetryTopic receives released messages; defaults to Topic. A separate
	// retry topic is consumed by the same group alongside Topic.
	RetryTopic string `yaml:"retry_topic" mapstructure:"retry_topic"`
	// DeadLetterTopic receives messages released MaxDeliveries times.
	// Empty drops them after logging.
	DeadLetterTopic string `yaml:"dead_letter_topic" mapstructure:"dead_letter_topic"`
	MaxDeliveries   int    `yaml:"max_deliveries" mapstructure:"max_deliveries"`

	// TLS
	EnableTLS     bool   `yaml:"enable_tls" mapstructure:"enable_tls"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify"`
	TLSCAFile     string `yaml:"tls_ca_file" mapstructure:"tls_ca_file"`
	TLSCertFile   string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile    string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`

	Compression  string        `yaml:"compression" mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`

	SessionTimeout    time.Duration `yaml:"session_timeout" mapstructure:"session_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" mapstructure:"heartbeat_interval"`
	RebalanceTimeout  time.Duration `yaml:"rebalance_timeout" mapstructure:"rebalance_timeout"`

	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MetadataTTL time.Duration `yaml:"metadata_ttl" mapstructure:"metadata_ttl"`

	// WaitTime bounds how long Receive blocks for the first message.
	WaitTime time.Duration `yaml:"-" mapstructure:"-"`
}

func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "remworker"
	}
	if c.RetryTopic == "" {
		c.RetryTopic = c.Topic
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 3 * time.Second
	}
	if c.RebalanceTimeout <= 0 {
		c.RebalanceTimeout = 30 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = 6 * time.Second
	}
	if c.WaitTime <= 0 {
		c.WaitTime = 20 * time.Second
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if c.GroupID == "" {
		return fmt.Errorf("kafka group_id is required")
	}
	if c.DeadLetterTopic != "" && slices.Contains(c.topics(), c.DeadLetterTopic) {
		return fmt.Errorf("kafka dead_letter_topic must differ from the consumed topics (got: %s)", c.DeadLetterTopic)
	}
	if c.EnableSASL {
		switch c.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return fmt.Errorf("unsupported SASL mechanism: %s", c.SASLMechanism)
		}
		if c.Username == "" {
			return fmt.Errorf("SASL username is required")
		}
	}
	return nil
}

// topics lists what the consumer group reads.
func (c *Config) topics() []string {
	if c.RetryTopic == "" || c.RetryTopic == c.Topic {
		return []string{c.Topic}
	}
	return []string{c.Topic, c.RetryTopic}
}
