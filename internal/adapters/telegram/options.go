package telegram

import "github.com/okian/danktime/pkg/logger"

// Option configures a Router.
type Option func(*Router)

// WithSelf tells the router which account it runs as, so commands for other
// bots and its own removal from a group can be recognised.
func WithSelf(id int64, username string) Option {
	return func(r *Router) {
		r.selfID = id
		r.username = username
	}
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(r *Router) {
		if seconds > 0 {
			r.pollTimeout = seconds
		}
	}
}

// WithLogger sets a custom logger for the router.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}
