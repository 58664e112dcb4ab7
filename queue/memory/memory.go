// Package memory is an in-process leased queue for local runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/remworker/queue"
)

const Name = "memory"

type entry struct {
	id        string
	body      []byte
	receipt   string
	visibleAt time.Time
	receives  int
}

// Queue holds messages in FIFO order. A received message is hidden for
// the lease and becomes visible again unless acked.
type Queue struct {
	mu      sync.Mutex
	entries []*entry
	lease   time.Duration
	wait    time.Duration
	poll    time.Duration
	now     func() time.Time
	notify  chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithWait sets how long Receive blocks for the first message. Zero
// returns immediately.
func WithWait(d time.Duration) Option {
	return func(q *Queue) { q.wait = d }
}

// New creates a queue with the given lease.
func New(lease time.Duration, opts ...Option) *Queue {
	q := &Queue{
		lease:  lease,
		poll:   50 * time.Millisecond,
		now:    time.Now,
		notify: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) Name() string { return Name }

// Send enqueues body and returns its message id.
func (q *Queue) Send(_ context.Context, body []byte) (string, error) {
	q.mu.Lock()
	id := uuid.NewString()
	q.entries = append(q.entries, &entry{id: id, body: append([]byte(nil), body...)})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return id, nil
}

// Receive leases up to max visible messages.
func (q *Queue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(q.wait)
	for {
		if msgs := q.lease1(max); len(msgs) > 0 {
			return msgs, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(remaining, q.poll))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (q *Queue) lease1(max int) []queue.Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var out []queue.Message
	for _, e := range q.entries {
		if len(out) == max {
			break
		}
		if e.visibleAt.After(now) {
			continue
		}
		e.receipt = uuid.NewString()
		e.visibleAt = now.Add(q.lease)
		e.receives++
		out = append(out, queue.Message{
			ID:           e.id,
			Body:         append([]byte(nil), e.body...),
			Receipt:      e.receipt,
			ReceiveCount: e.receives,
		})
	}
	return out
}

// Ack deletes the message if msg.Receipt is still the current lease.
func (q *Queue) Ack(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.id != msg.ID {
			continue
		}
		if e.receipt != msg.Receipt {
			return queue.ErrStaleReceipt
		}
		q.entries = append(q.entries[:i], q.entries[i+1:]...)
		return nil
	}
	return queue.ErrStaleReceipt
}

// Len returns the number of messages not yet acked, leased or not.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
