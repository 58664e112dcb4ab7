// Package sqs reads recording jobs from an Amazon SQS queue.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/kbukum/remworker/queue"
)

// API is the subset of the SQS client the source uses.
type API interface {
	ReceiveMessage(ctx context.Context, in *awssqs.ReceiveMessageInput, opts ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *awssqs.DeleteMessageInput, opts ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *awssqs.GetQueueAttributesInput, opts ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
}

var _ API = (*awssqs.Client)(nil)

type Config struct {
	QueueURL string `yaml:"queue_url" mapstructure:"queue_url"`
	Region   string `yaml:"region" mapstructure:"region"`

	// Endpoint overrides the service endpoint (LocalStack, ElasticMQ).
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`

	WaitTimeSeconds   int32 `yaml:"wait_time_seconds" mapstructure:"wait_time_seconds"`
	VisibilityTimeout int32 `yaml:"visibility_timeout" mapstructure:"visibility_timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.WaitTimeSeconds == 0 {
		c.WaitTimeSeconds = 20
	}
	if c.VisibilityTimeout == 0 {
		c.VisibilityTimeout = 900
	}
}

func (c *Config) Validate() error {
	if c.QueueURL == "" {
		return errors.New("sqs: queue_url is required")
	}
	if c.WaitTimeSeconds < 0 || c.WaitTimeSeconds > 20 {
		return fmt.Errorf("sqs: wait_time_seconds must be within [0, 20] (got: %d)", c.WaitTimeSeconds)
	}
	if c.VisibilityTimeout < 0 || c.VisibilityTimeout > 43200 {
		return fmt.Errorf("sqs: visibility_timeout must be within [0, 43200] (got: %d)", c.VisibilityTimeout)
	}
	return nil
}

// NewClient loads AWS configuration and returns an SQS client.
func NewClient(ctx context.Context, cfg Config) (*awssqs.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: load aws config: %w", err)
	}
	return awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Source long-polls one queue. Unacked messages return after the
// visibility timeout.
type Source struct {
	cfg    Config
	client API
}

// New validates cfg and wraps client.
func New(cfg Config, client API) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, client: client}, nil
}

func (s *Source) Name() string { return queue.BackendSQS }

func (s *Source) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	out, err := s.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(s.cfg.QueueURL),
		MaxNumberOfMessages:         int32(min(max, 10)),
		WaitTimeSeconds:             s.cfg.WaitTimeSeconds,
		VisibilityTimeout:           s.cfg.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		count, _ := strconv.Atoi(m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)])
		msgs = append(msgs, queue.Message{
			ID:           aws.ToString(m.MessageId),
			Body:         []byte(aws.ToString(m.Body)),
			Receipt:      aws.ToString(m.ReceiptHandle),
			ReceiveCount: count,
		})
	}
	return msgs, nil
}

func (s *Source) Ack(ctx context.Context, msg queue.Message) error {
	_, err := s.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.cfg.QueueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	var invalid *types.ReceiptHandleIsInvalid
	if errors.As(err, &invalid) {
		return fmt.Errorf("sqs delete %s: %w", msg.ID, queue.ErrStaleReceipt)
	}
	if err != nil {
		return fmt.Errorf("sqs delete %s: %w", msg.ID, err)
	}
	return nil
}

// Ping reads the approximate depth of the queue.
func (s *Source) Ping(ctx context.Context) error {
	_, err := s.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(s.cfg.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return fmt.Errorf("sqs ping: %w", err)
	}
	return nil
}
