package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/queue"
	"github.com/kbukum/remworker/queue/memory"
	"github.com/kbukum/remworker/worker"
)

// releasingSource records acks and releases the way a log-based broker
// source would.
type releasingSource struct {
	mu       sync.Mutex
	acked    []string
	released []string
	ackErr   error
}

func (s *releasingSource) Name() string { return "releasing" }

func (s *releasingSource) Receive(_ context.Context, _ int) ([]queue.Message, error) {
	return nil, nil
}

func (s *releasingSource) Ack(_ context.Context, msg queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ackErr != nil {
		return s.ackErr
	}
	s.acked = append(s.acked, msg.ID)
	return nil
}

func (s *releasingSource) Release(_ context.Context, msg queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, msg.ID)
	return nil
}

func jobBody(t *testing.T) []byte {
	t.Helper()
	b, err := json.Marshal(testJob)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newWorker(t *testing.T, h *harness, src queue.Source) *worker.Worker {
	t.Helper()
	return worker.New(h.cfg, queue.Config{Backend: queue.BackendMemory, PollInterval: 10 * time.Millisecond}, src, h.processor(t), logger.Nop())
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		body     func(t *testing.T) []byte
		setup    func(h *harness)
		ackErr   error
		state    worker.State
		acked    int
		released int
	}{
		{
			name:  "success is acked",
			body:  jobBody,
			state: worker.StateAcknowledged,
			acked: 1,
		},
		{
			name:     "malformed body is released",
			body:     func(*testing.T) []byte { return []byte("{not json") },
			state:    worker.StateFailed,
			released: 1,
		},
		{
			name:     "missing fields are released",
			body:     func(*testing.T) []byte { return []byte(`{"recordingId":"rec-1"}`) },
			state:    worker.StateFailed,
			released: 1,
		},
		{
			name:     "transcription failure is released",
			body:     jobBody,
			setup:    func(h *harness) { h.stt.err = errors.New("gpu lost") },
			state:    worker.StateFailed,
			released: 1,
		},
		{
			name:   "ack failure leaves job persisted",
			body:   jobBody,
			ackErr: errors.New("connection reset"),
			state:  worker.StatePersisted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			src := &releasingSource{ackErr: tt.ackErr}
			w := newWorker(t, h, src)

			out := w.Handle(context.Background(), queue.Message{ID: "m1", Body: tt.body(t), Receipt: "r1", ReceiveCount: 1})
			if out.State != tt.state {
				t.Errorf("state = %s, want %s (err %v)", out.State, tt.state, out.Err)
			}
			if len(src.acked) != tt.acked || len(src.released) != tt.released {
				t.Errorf("acked=%v released=%v", src.acked, src.released)
			}
		})
	}
}

func TestHandle_FailureWithoutReleaserWaitsForLease(t *testing.T) {
	h := newHarness(t)
	h.stt.err = errors.New("gpu lost")
	q := memory.New(time.Hour)
	if _, err := q.Send(context.Background(), jobBody(t)); err != nil {
		t.Fatal(err)
	}
	msgs, _ := q.Receive(context.Background(), 1)
	if len(msgs) != 1 {
		t.Fatalf("received %d", len(msgs))
	}

	out := newWorker(t, h, q).Handle(context.Background(), msgs[0])
	if out.Succeeded() {
		t.Fatal("expected failure")
	}
	if q.Len() != 1 {
		t.Errorf("failed job must stay queued, len = %d", q.Len())
	}
}

func TestWorker_RunDrainsQueue(t *testing.T) {
	h := newHarness(t)
	q := memory.New(time.Hour)
	if _, err := q.Send(context.Background(), jobBody(t)); err != nil {
		t.Fatal(err)
	}
	w := newWorker(t, h, q)

	ctx := context.Background()
	if h := w.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for q.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.Len() != 0 {
		t.Fatal("job was not acked")
	}
	if got := w.Health(ctx); got.Status != component.StatusHealthy {
		t.Errorf("health while running = %s", got.Status)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if _, err := h.status.Get(ctx, "u1", "rec-1"); err != nil {
		t.Errorf("status not written: %v", err)
	}
}

type failingSource struct{ releasingSource }

func (*failingSource) Receive(_ context.Context, _ int) ([]queue.Message, error) {
	return nil, errors.New("queue unreachable")
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	w := newWorker(t, h, &failingSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
