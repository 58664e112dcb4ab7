package queue

import (
	"context"
	"fmt"
	"io"

	"github.com/kbukum/remworker/component"
)

// Component exposes a Source to the component registry.
type Component struct {
	src Source
}

var _ component.Component = (*Component)(nil)

// NewComponent wraps src.
func NewComponent(src Source) *Component {
	return &Component{src: src}
}

// Source returns the wrapped source.
func (c *Component) Source() Source { return c.src }

func (c *Component) Name() string { return "queue:" + c.src.Name() }

func (c *Component) Start(ctx context.Context) error {
	if p, ok := c.src.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("queue %s: %w", c.src.Name(), err)
		}
	}
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if closer, ok := c.src.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if p, ok := c.src.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			h.Status = component.StatusUnhealthy
			h.Message = err.Error()
		}
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{Type: "queue", Details: c.src.Name()}
}
