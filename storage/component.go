package storage

import (
	"context"
	"strings"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/provider"
)

var (
	_ component.Component = (*Component)(nil)
	_ provider.Provider   = (*Component)(nil)
)

// Component opens the configured backend at startup and hands it to the
// processor.
type Component struct {
	cfg      Config
	settings any
	log      *logger.Logger
	backend  Storage
}

func NewComponent(cfg Config, settings any, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, settings: settings, log: log.WithComponent("storage")}
}

func (c *Component) Name() string { return "storage" }

// Storage is nil outside Start/Stop.
func (c *Component) Storage() Storage { return c.backend }

func (c *Component) IsAvailable(context.Context) bool { return c.backend != nil }

func (c *Component) Start(context.Context) error {
	s, err := New(c.cfg, c.settings, c.log)
	if err != nil {
		return err
	}
	c.backend = s
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.backend = nil
	return nil
}

func (c *Component) Health(ctx context.Context) component.Health {
	if !c.IsAvailable(ctx) {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "backend not open"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: c.cfg.Provider}
}

// EndpointDescriber is implemented by settings types that can name where
// they point.
type EndpointDescriber interface {
	DescribeEndpoint() string
}

func (c *Component) Describe() component.Description {
	parts := []string{"provider=" + c.cfg.Provider}
	if d, ok := c.settings.(EndpointDescriber); ok && d.DescribeEndpoint() != "" {
		parts = append(parts, d.DescribeEndpoint())
	}
	return component.Description{Type: "storage", Details: strings.Join(parts, " ")}
}
