package provider

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Registry maps backend names (the provider key in config) to factories.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{factories: map[string]Factory[T]{}}
}

// RegisterFactory binds name to factory. A later registration wins.
func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// Create builds the backend called name from opts. Unknown names report
// what is registered.
func (r *Registry[T]) Create(name string, opts map[string]any) (T, error) {
	r.mu.RLock()
	factory := r.factories[name]
	r.mu.RUnlock()
	if factory == nil {
		var zero T
		return zero, fmt.Errorf("provider %q not registered (have: %s)", name, strings.Join(r.List(), ", "))
	}
	return factory(opts)
}

// List returns the registered names in order.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}
