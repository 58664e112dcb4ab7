package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
)

var _ component.Component = (*Component)(nil)

// Component owns the shared Client for the speaker store and lock.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

func (c *Component) Name() string { return "redis" }

// Client is nil until Start succeeds.
func (c *Component) Client() *Client { return c.client }

// Start fails when the server does not answer a ping, so a bad address
// stops the worker at boot rather than on the first resolution.
func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	c.log.Info("redis connected", logger.Fields("addr", c.cfg.Addr, "db", c.cfg.DB))
	return nil
}

func (c *Component) Stop(context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusUnhealthy}
	switch {
	case c.client == nil:
		h.Message = "not started"
	default:
		if err := c.client.Ping(ctx); err != nil {
			h.Message = err.Error()
			break
		}
		st := c.client.PoolStats()
		h.Status = component.StatusHealthy
		h.Message = fmt.Sprintf("pool total=%d idle=%d", st.TotalConns, st.IdleConns)
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Type:    "redis",
		Details: fmt.Sprintf("%s db=%d prefix=%s", c.cfg.Addr, c.cfg.DB, c.cfg.KeyPrefix),
	}
}
