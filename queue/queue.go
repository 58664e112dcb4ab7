// Package queue is the job source the worker polls. Backends lease
// messages: a received message stays invisible to other consumers until
// it is acked or its lease expires, after which it is delivered again.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendSQS    = "sqs"
	BackendKafka  = "kafka"
)

// ErrStaleReceipt is returned by Ack when the lease behind a receipt has
// expired and the message was handed to another consumer.
var ErrStaleReceipt = errors.New("queue: stale receipt")

// Message is one leased delivery.
type Message struct {
	ID   string
	Body []byte
	// Receipt identifies this delivery; Ack needs it.
	Receipt string
	// ReceiveCount is 1 on first delivery.
	ReceiveCount int
}

// Source delivers job messages.
type Source interface {
	Name() string
	// Receive returns up to max messages, waiting up to the backend's poll
	// wait for the first one. An empty result is not an error.
	Receive(ctx context.Context, max int) ([]Message, error)
	// Ack removes the message permanently.
	Ack(ctx context.Context, msg Message) error
}

// Releaser is implemented by sources that cannot rely on lease expiry and
// must hand back a message that failed processing.
type Releaser interface {
	Release(ctx context.Context, msg Message) error
}

// Pinger is implemented by sources that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the backend-independent poll settings.
type Config struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	// MaxMessages is the receive batch size.
	MaxMessages int `yaml:"max_messages" mapstructure:"max_messages"`
	// PollInterval is the idle sleep after an empty receive.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// WaitTime is the long-poll wait inside one receive.
	WaitTime time.Duration `yaml:"wait_time" mapstructure:"wait_time"`
	// Lease is how long a received message stays invisible.
	Lease time.Duration `yaml:"lease" mapstructure:"lease"`
}

func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendSQS
	}
	if c.MaxMessages <= 0 {
		c.MaxMessages = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.WaitTime <= 0 {
		c.WaitTime = 20 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 900 * time.Second
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendSQS, BackendKafka:
	default:
		return fmt.Errorf("queue.backend must be one of memory, sqs, kafka (got: %s)", c.Backend)
	}
	if c.MaxMessages > 10 {
		return fmt.Errorf("queue.max_messages must be at most 10 (got: %d)", c.MaxMessages)
	}
	return nil
}
