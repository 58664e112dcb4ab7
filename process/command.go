package process

import (
	"io"
	"time"
)

// Command configures a subprocess.
type Command struct {
	// Binary is an executable path or a name resolved through PATH.
	Binary string
	Args   []string
	// Dir is the working directory; empty uses the current one.
	Dir string
	// Env holds extra KEY=value pairs appended to the parent environment.
	Env   []string
	Stdin io.Reader
	// GracePeriod is the wait between SIGTERM and SIGKILL on cancellation.
	// Defaults to 5 seconds.
	GracePeriod time.Duration
}

// Result holds the captured output of a finished subprocess.
type Result struct {
	Stdout []byte
	Stderr []byte
	// ExitCode is -1 when the process was killed.
	ExitCode int
	Duration time.Duration
}
