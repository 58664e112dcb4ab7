package provider

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type testProvider struct {
	name      string
	available bool
}

func (p *testProvider) Name() string                         { return p.name }
func (p *testProvider) IsAvailable(ctx context.Context) bool { return p.available }

func newTestRegistry() *Registry[*testProvider] {
	reg := NewRegistry[*testProvider]()
	reg.RegisterFactory("sidecar", func(opts map[string]any) (*testProvider, error) {
		return &testProvider{name: String(opts, "name", "sidecar"), available: true}, nil
	})
	reg.RegisterFactory("broken", func(opts map[string]any) (*testProvider, error) {
		return nil, fmt.Errorf("missing api key")
	})
	return reg
}

func TestRegistryCreateAndList(t *testing.T) {
	reg := newTestRegistry()
	p, err := reg.Create("sidecar", map[string]any{"name": "custom"})
	if err != nil || p.Name() != "custom" {
		t.Fatalf("Create = %v, %v", p, err)
	}
	if _, err := reg.Create("missing", nil); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("expected not registered error, got %v", err)
	}
	if names := reg.List(); len(names) != 2 || names[0] != "broken" || names[1] != "sidecar" {
		t.Errorf("List = %v", names)
	}
}

func TestResolve(t *testing.T) {
	reg := newTestRegistry()
	tests := []struct {
		name      string
		backend   string
		available bool
		reason    string
	}{
		{"empty name", "", false, "disabled"},
		{"disabled", Disabled, false, "disabled"},
		{"factory error", "broken", false, "missing api key"},
		{"unknown", "nope", false, "not registered"},
		{"ok", "sidecar", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Resolve(reg, tt.backend, nil)
			if c.IsAvailable() != tt.available {
				t.Fatalf("available = %v", c.IsAvailable())
			}
			if !strings.Contains(c.Reason(), tt.reason) {
				t.Errorf("reason = %q, want %q", c.Reason(), tt.reason)
			}
		})
	}
}

func TestZeroCapabilityIsUnavailable(t *testing.T) {
	var c Capability[*testProvider]
	if _, ok := c.Get(); ok {
		t.Error("zero capability must be unavailable")
	}
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	up := Probe(ctx, Available(&testProvider{name: "up", available: true}), time.Second)
	if !up.IsAvailable() {
		t.Error("reachable backend should stay available")
	}
	down := Probe(ctx, Available(&testProvider{name: "down"}), time.Second)
	if down.IsAvailable() || !strings.Contains(down.Reason(), "down") {
		t.Errorf("unreachable backend: available=%v reason=%q", down.IsAvailable(), down.Reason())
	}
	still := Probe(ctx, Unavailable[*testProvider]("off"), time.Second)
	if still.Reason() != "off" {
		t.Errorf("reason = %q", still.Reason())
	}
}

func TestOptions(t *testing.T) {
	opts := map[string]any{
		"url":      "http://sidecar:8387",
		"timeout":  "90s",
		"seconds":  30,
		"fraction": 1.5,
		"beam":     "5",
		"nil":      nil,
	}
	if got := String(opts, "url", "x"); got != "http://sidecar:8387" {
		t.Errorf("String = %q", got)
	}
	if got := String(opts, "nil", "def"); got != "def" {
		t.Errorf("String nil = %q", got)
	}
	if got := Duration(opts, "timeout", 0); got != 90*time.Second {
		t.Errorf("Duration string = %v", got)
	}
	if got := Duration(opts, "seconds", 0); got != 30*time.Second {
		t.Errorf("Duration int = %v", got)
	}
	if got := Duration(opts, "fraction", 0); got != 1500*time.Millisecond {
		t.Errorf("Duration float = %v", got)
	}
	if got := Duration(opts, "missing", time.Minute); got != time.Minute {
		t.Errorf("Duration default = %v", got)
	}
	if got := Int(opts, "beam", 1); got != 5 {
		t.Errorf("Int = %d", got)
	}
}
