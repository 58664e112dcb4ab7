package bootstrap

import (
	"time"

	"github.com/kbukum/remworker/logger"
)

const defaultGracefulTimeout = 30 * time.Second

// Option overrides an App default.
type Option func(*settings)

type settings struct {
	log      *logger.Logger
	graceful time.Duration
}

func newSettings(opts []Option) settings {
	s := settings{graceful: defaultGracefulTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger skips logger initialization from config and logs to l.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithGracefulTimeout bounds shutdown. A job still running when it expires
// is abandoned and comes back once its lease runs out.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *settings) { s.graceful = d }
}
