package storage

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/remworker/logger"
)

// Opener builds a backend from its provider settings (*s3.Config,
// *minio.Config, *local.Config), which may be nil.
type Opener func(settings any) (Storage, error)

var backends sync.Map // provider name -> Opener

// Register makes a backend available under name. Backend packages call it
// from init, so the binary must import them for side effects.
func Register(name string, open Opener) {
	backends.Store(name, open)
}

// Settings converts the settings handed to an Opener into *T. A nil value
// yields a zero *T so backends with defaults can run unconfigured.
func Settings[T any](settings any) (*T, error) {
	if settings == nil {
		return new(T), nil
	}
	t, ok := settings.(*T)
	if !ok || t == nil {
		var want *T
		return nil, fmt.Errorf("storage: settings are %T, want %T", settings, want)
	}
	return t, nil
}

// New opens the backend named by cfg.Provider.
func New(cfg Config, settings any, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, ok := backends.Load(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("storage: backend %q not linked into this binary (have: %v)", cfg.Provider, registered())
	}
	s, err := v.(Opener)(settings)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", cfg.Provider, err)
	}
	log.Info("storage opened", logger.Fields("provider", cfg.Provider))
	return s, nil
}

func registered() []string {
	var names []string
	backends.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	slices.Sort(names)
	return names
}
