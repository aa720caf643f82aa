package scheduler

import (
	"time"

	"github.com/okian/danktime/pkg/logger"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often chats are checked.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
