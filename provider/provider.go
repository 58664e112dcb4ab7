package provider

import "context"

// Provider is the base interface all capability backends implement.
type Provider interface {
	Name() string
	// IsAvailable reports whether the backend can take requests right now.
	IsAvailable(ctx context.Context) bool
}

// Factory creates a provider instance from an options map.
type Factory[T Provider] func(opts map[string]any) (T, error)
