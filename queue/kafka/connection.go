package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// credentials are the TLS and SASL settings shared by the reader's dialer
// and the writer's transport. Either may be nil.
type credentials struct {
	tls  *tls.Config
	sasl sasl.Mechanism
}

func loadCredentials(cfg *Config) (credentials, error) {
	var (
		c   credentials
		err error
	)
	if cfg.EnableTLS {
		if c.tls, err = buildTLSConfig(cfg); err != nil {
			return c, fmt.Errorf("kafka tls: %w", err)
		}
	}
	if cfg.EnableSASL {
		if c.sasl, err = buildSASLMechanism(cfg); err != nil {
			return c, fmt.Errorf("kafka sasl: %w", err)
		}
	}
	return c, nil
}

// CreateDialer returns the dialer the consumer group reader uses.
func CreateDialer(cfg *Config) (*kafkago.Dialer, error) {
	c, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Dialer{
		Timeout:       cfg.DialTimeout,
		DualStack:     true,
		TLS:           c.tls,
		SASLMechanism: c.sasl,
	}, nil
}

// CreateTransport returns the transport the retry and dead-letter writer
// uses.
func CreateTransport(cfg *Config) (*kafkago.Transport, error) {
	c, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	return &kafkago.Transport{
		DialTimeout: cfg.DialTimeout,
		IdleTimeout: cfg.IdleTimeout,
		MetadataTTL: cfg.MetadataTTL,
		TLS:         c.tls,
		SASL:        c.sasl,
	}, nil
}

func buildTLSConfig(cfg *Config) (*tls.Config, error) {
	out := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: cfg.TLSSkipVerify} //nolint:gosec // opt-in for dev brokers
	if cfg.TLSCAFile != "" {
		pem, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, err
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates in " + cfg.TLSCAFile)
		}
		out.RootCAs = roots
	}
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		pair, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		out.Certificates = append(out.Certificates, pair)
	}
	return out, nil
}

var scramAlgorithms = map[string]scram.Algorithm{
	"SCRAM-SHA-256": scram.SHA256,
	"SCRAM-SHA-512": scram.SHA512,
}

func buildSASLMechanism(cfg *Config) (sasl.Mechanism, error) {
	if cfg.SASLMechanism == "PLAIN" {
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	}
	algo, ok := scramAlgorithms[cfg.SASLMechanism]
	if !ok {
		return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
	}
	return scram.Mechanism(algo, cfg.Username, cfg.Password)
}

var codecs = map[string]kafkago.Compression{
	"none": 0,
	"gzip": kafkago.Gzip,
	"lz4":  kafkago.Lz4,
	"zstd": kafkago.Zstd,
}

// ResolveCompression maps a codec name to kafka-go; anything else is
// snappy.
func ResolveCompression(name string) kafkago.Compression {
	if c, ok := codecs[name]; ok {
		return c
	}
	return kafkago.Snappy
}
