package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const (
	defaultGrace = 5 * time.Second
	stderrTail   = 512
)

// ExitError reports a process that ran but did not exit cleanly.
type ExitError struct {
	Binary string
	Code   int
	// Stderr is the trimmed end of the captured stderr.
	Stderr string
	Err    error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("process: %s exit code %d", e.Binary, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// Run executes cmd and waits for it. Cancelling ctx sends SIGTERM to the
// whole process group and SIGKILL once the grace period has passed.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}

	var stdout, stderr bytes.Buffer
	c := command(ctx, cmd, &stdout, &stderr)

	began := time.Now()
	runErr := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(began),
	}

	switch {
	case runErr == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s killed after %s: %w", cmd.Binary, res.Duration.Round(time.Millisecond), ctx.Err())
	case c.ProcessState == nil:
		return res, fmt.Errorf("process: start %s: %w", cmd.Binary, runErr)
	default:
		return res, &ExitError{Binary: cmd.Binary, Code: res.ExitCode, Stderr: lastLines(res.Stderr), Err: runErr}
	}
}

func command(ctx context.Context, cmd Command, stdout, stderr *bytes.Buffer) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // binary comes from config
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	c.Stdout, c.Stderr = stdout, stderr

	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGTERM)
	}
	c.WaitDelay = cmd.GracePeriod
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultGrace
	}
	return c
}

func lastLines(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}
