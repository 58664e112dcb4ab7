package provider

import (
	"context"
	"time"
)

// Disabled is the backend name that turns a capability off.
const Disabled = "none"

// Capability is either Available with an implementation or Unavailable with
// a reason. The zero value is Unavailable.
type Capability[T any] struct {
	impl   T
	ok     bool
	reason string
}

// Available wraps a usable implementation.
func Available[T any](impl T) Capability[T] {
	return Capability[T]{impl: impl, ok: true}
}

// Unavailable records why a capability cannot be used.
func Unavailable[T any](reason string) Capability[T] {
	return Capability[T]{reason: reason}
}

// Get returns the implementation and whether it is available.
func (c Capability[T]) Get() (T, bool) {
	return c.impl, c.ok
}

func (c Capability[T]) IsAvailable() bool { return c.ok }

// Reason explains an Unavailable capability.
func (c Capability[T]) Reason() string { return c.reason }

// Resolve builds the named backend once. An empty name or Disabled yields
// Unavailable, as does a factory error.
func Resolve[T Provider](reg *Registry[T], name string, opts map[string]any) Capability[T] {
	if name == "" || name == Disabled {
		return Unavailable[T]("disabled")
	}
	impl, err := reg.Create(name, opts)
	if err != nil {
		return Unavailable[T](err.Error())
	}
	return Available(impl)
}

// Probe downgrades an available capability to Unavailable when its backend
// does not answer the availability check within timeout.
func Probe[T Provider](ctx context.Context, c Capability[T], timeout time.Duration) Capability[T] {
	impl, ok := c.Get()
	if !ok {
		return c
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if !impl.IsAvailable(pctx) {
		return Unavailable[T](impl.Name() + " did not pass availability check")
	}
	return c
}
