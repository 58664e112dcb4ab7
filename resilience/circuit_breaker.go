package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the position of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitOpen is returned, wrapped with the breaker name, when a call is
// rejected without running.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	Name string
	// MaxFailures is the consecutive failure count that opens the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before a trial call.
	Timeout       time.Duration
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker fails fast once a dependency has failed MaxFailures times
// in a row. After Timeout exactly one trial call is let through: success
// closes the circuit, failure opens it again.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	notify    func(name string, from, to State)
	now       func() time.Time

	mu     sync.Mutex
	state  State
	streak int
	// until is when an open circuit becomes eligible for a trial.
	until time.Time
	probe bool
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:      cfg.Name,
		threshold: cfg.MaxFailures,
		cooldown:  cfg.Timeout,
		notify:    cfg.OnStateChange,
		now:       time.Now,
	}
	if cb.threshold <= 0 {
		cb.threshold = 5
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	return cb
}

// Execute runs fn unless the circuit rejects the call.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err == nil)
	return err
}

// State reports the current state, promoting an expired open circuit to
// half-open.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expire()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expire()

	if cb.state == StateClosed {
		return nil
	}
	if cb.state == StateHalfOpen && !cb.probe {
		cb.probe = true
		return nil
	}
	if cb.name == "" {
		return ErrCircuitOpen
	}
	return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
}

func (cb *CircuitBreaker) settle(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		cb.streak = 0
		cb.move(StateClosed)
		return
	}
	cb.streak++
	if cb.state != StateHalfOpen && cb.streak < cb.threshold {
		return
	}
	cb.until = cb.now().Add(cb.cooldown)
	cb.move(StateOpen)
}

func (cb *CircuitBreaker) expire() {
	if cb.state == StateOpen && !cb.now().Before(cb.until) {
		cb.move(StateHalfOpen)
	}
}

// move is called with mu held, so OnStateChange must not call back into
// the breaker.
func (cb *CircuitBreaker) move(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state, cb.probe = to, false
	if cb.notify != nil {
		cb.notify(cb.name, from, to)
	}
}
