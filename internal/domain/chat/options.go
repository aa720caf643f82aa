package chat

import (
	"math/rand"

	"github.com/okian/danktime/internal/domain/clock"
	"github.com/okian/danktime/internal/domain/plugin"
	"github.com/okian/danktime/pkg/logger"
)

// Option configures a Chat.
type Option func(*Chat)

// WithTrigger sets the extension point capability. Nil keeps plugin.Nop.
func WithTrigger(t plugin.Trigger) Option {
	return func(c *Chat) {
		if t != nil {
			c.trigger = t
		}
	}
}

// WithClock sets the time source.
func WithClock(cl clock.Clock) Option {
	return func(c *Chat) {
		if cl != nil {
			c.clock = cl
		}
	}
}

// WithRand sets the random source used for random dank times.
func WithRand(r *rand.Rand) Option {
	return func(c *Chat) {
		if r != nil {
			c.rnd = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Chat) {
		if l != nil {
			c.log = l
		}
	}
}

// WithSettings replaces the default settings.
func WithSettings(s Settings) Option {
	return func(c *Chat) {
		if s.location != nil {
			c.settings = s
		}
	}
}
