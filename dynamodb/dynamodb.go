// Package dynamodb builds an aws-sdk-go-v2 DynamoDB client from service
// configuration and manages it as a component.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
)

// API is the subset of the DynamoDB client the stores use.
type API interface {
	GetItem(ctx context.Context, in *awsddb.GetItemInput, opts ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *awsddb.UpdateItemInput, opts ...func(*awsddb.Options)) (*awsddb.UpdateItemOutput, error)
	Query(ctx context.Context, in *awsddb.QueryInput, opts ...func(*awsddb.Options)) (*awsddb.QueryOutput, error)
	DescribeTable(ctx context.Context, in *awsddb.DescribeTableInput, opts ...func(*awsddb.Options)) (*awsddb.DescribeTableOutput, error)
}

var _ API = (*awsddb.Client)(nil)

// Config holds connection settings shared by every table.
type Config struct {
	Region string `yaml:"region" mapstructure:"region"`

	// Endpoint overrides the service endpoint (DynamoDB Local, LocalStack).
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
}

func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
}

func (c *Config) Validate() error {
	if c.Region == "" {
		return errors.New("dynamodb: region is required")
	}
	return nil
}

// NewClient loads AWS configuration and returns a DynamoDB client.
func NewClient(ctx context.Context, cfg Config) (*awsddb.Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("dynamodb: load aws config: %w", err)
	}
	return awsddb.NewFromConfig(awsCfg, func(o *awsddb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Component owns a client and probes the tables it serves.
type Component struct {
	cfg    Config
	tables []string
	client API
	log    *logger.Logger
}

// NewComponent creates a component whose health check describes tables.
func NewComponent(cfg Config, log *logger.Logger, tables ...string) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, tables: tables, log: log.WithComponent("dynamodb")}
}

// Client returns the client, or nil if not started.
func (c *Component) Client() API { return c.client }

var _ component.Component = (*Component)(nil)

func (c *Component) Name() string { return "dynamodb" }

func (c *Component) Start(ctx context.Context) error {
	client, err := NewClient(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("dynamodb start: %w", err)
	}
	c.client = client
	c.log.Info("DynamoDB client created", map[string]interface{}{"region": c.cfg.Region, "tables": c.tables})
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	c.client = nil
	return nil
}

func (c *Component) Health(ctx context.Context) component.Health {
	if c.client == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "dynamodb not initialized"}
	}
	for _, t := range c.tables {
		if _, err := c.client.DescribeTable(ctx, &awsddb.DescribeTableInput{TableName: aws.String(t)}); err != nil {
			return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("describe %s: %v", t, err)}
		}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	details := "region=" + c.cfg.Region
	if c.cfg.Endpoint != "" {
		details += " endpoint=" + c.cfg.Endpoint
	}
	return component.Description{Type: "dynamodb", Details: details}
}
