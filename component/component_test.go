package component

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/kbukum/remworker/logger"
)

type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "start:"+m.name)
	}
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	if m.events != nil {
		*m.events = append(*m.events, "stop:"+m.name)
	}
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) Health { return m.health }

type describedComponent struct{ mockComponent }

func (d *describedComponent) Describe() Description {
	return Description{Type: "queue", Details: "sqs"}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry(logger.Nop())
	if err := r.Register(&mockComponent{name: "queue"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&mockComponent{name: "queue"}); err == nil {
		t.Error("expected duplicate registration error")
	}
	if r.Get("queue") == nil || r.Get("missing") != nil {
		t.Error("Get returned wrong result")
	}
}

func TestStartStopOrder(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	for _, name := range []string{"storage", "profiles", "queue"} {
		_ = r.Register(&mockComponent{name: name, events: &events})
	}
	_ = r.Register(&describedComponent{mockComponent{name: "server", events: &events}})

	ctx := context.Background()
	if err := r.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatalf("StopAll: %v", err)
	}

	want := []string{
		"start:storage", "start:profiles", "start:queue", "start:server",
		"stop:server", "stop:queue", "stop:profiles", "stop:storage",
	}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestStartFailureStopsOnlyStarted(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", events: &events})
	_ = r.Register(&mockComponent{name: "b", events: &events, startErr: fmt.Errorf("refused")})
	_ = r.Register(&mockComponent{name: "c", events: &events})

	ctx := context.Background()
	err := r.StartAll(ctx)
	if err == nil || !strings.Contains(err.Error(), "start b") {
		t.Fatalf("expected start b error, got %v", err)
	}
	_ = r.StopAll(ctx)

	want := []string{"start:a", "start:b", "stop:a"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestStopAllJoinsErrors(t *testing.T) {
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", stopErr: fmt.Errorf("x")})
	_ = r.Register(&mockComponent{name: "b", stopErr: fmt.Errorf("y")})
	ctx := context.Background()
	_ = r.StartAll(ctx)

	err := r.StopAll(ctx)
	if err == nil || !strings.Contains(err.Error(), "stop a") || !strings.Contains(err.Error(), "stop b") {
		t.Errorf("expected both stop errors, got %v", err)
	}
}

func TestHealthAllAndOverall(t *testing.T) {
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "a", health: Health{Name: "a", Status: StatusHealthy}})
	_ = r.Register(&mockComponent{name: "b", health: Health{Name: "b", Status: StatusDegraded}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}

	tests := []struct {
		name  string
		input []Health
		want  HealthStatus
	}{
		{"empty", nil, StatusHealthy},
		{"degraded", results, StatusDegraded},
		{"unhealthy wins", append(results, Health{Status: StatusUnhealthy}), StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.input); got != tt.want {
				t.Errorf("Overall = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStartAllSkipsStarted(t *testing.T) {
	var events []string
	r := NewRegistry(logger.Nop())
	_ = r.Register(&mockComponent{name: "storage", events: &events})
	ctx := context.Background()
	_ = r.StartAll(ctx)
	_ = r.Register(&mockComponent{name: "worker", events: &events})
	if err := r.StartAll(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{"start:storage", "start:worker"}
	if !slices.Equal(events, want) {
		t.Errorf("events = %v, want %v", events, want)
	}
}
