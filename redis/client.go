package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/remworker/logger"
)

// Client is a go-redis client bound to the service key prefix.
type Client struct {
	rdb    goredis.UniversalClient
	prefix string
	log    *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// New builds a client. It does not dial; call Ping to check the server.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, errors.New("redis: disabled in configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	log.Debug("redis client configured", logger.Fields("addr", cfg.Addr, "db", cfg.DB, "prefix", cfg.KeyPrefix))
	return &Client{
		rdb:    goredis.NewClient(cfg.options()),
		prefix: cfg.KeyPrefix,
		log:    log,
	}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Key joins the prefix and the non-empty parts with ':'.
func (c *Client) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	for _, p := range append([]string{c.prefix}, parts...) {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}

// PoolStats reports connection pool usage.
func (c *Client) PoolStats() *goredis.PoolStats {
	return c.rdb.PoolStats()
}

// Close is idempotent.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}

// Unwrap exposes the go-redis client.
func (c *Client) Unwrap() goredis.UniversalClient {
	return c.rdb
}
