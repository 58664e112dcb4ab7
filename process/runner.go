package process

import (
	"context"
	"time"

	"github.com/kbukum/remworker/resilience"
)

// RunnerConfig bounds repeated invocations of one tool.
type RunnerConfig struct {
	Name string
	// Timeout caps a single run; zero means no cap beyond ctx.
	Timeout     time.Duration
	GracePeriod time.Duration
	// MaxFailures consecutive failures open the breaker; zero disables it.
	MaxFailures  int
	ResetTimeout time.Duration
}

// Runner executes commands for one tool, failing fast once the tool keeps
// crashing.
type Runner struct {
	cfg     RunnerConfig
	breaker *resilience.CircuitBreaker
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{cfg: cfg}
	if cfg.MaxFailures > 0 {
		r.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        cfg.Name,
			MaxFailures: cfg.MaxFailures,
			Timeout:     cfg.ResetTimeout,
		})
	}
	return r
}

// Run executes cmd with the runner's timeout and breaker.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod == 0 {
		cmd.GracePeriod = r.cfg.GracePeriod
	}
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	if r.breaker == nil {
		return Run(ctx, cmd)
	}
	var res *Result
	err := r.breaker.Execute(func() error {
		var err error
		res, err = Run(ctx, cmd)
		return err
	})
	return res, err
}

// Open reports whether the breaker is rejecting calls.
func (r *Runner) Open() bool {
	return r.breaker != nil && r.breaker.State() == resilience.StateOpen
}
