package dispatch

import (
	"log/slog"
	"time"
)

// Option configures a Router.
type Option func(*Router)

// WithTimeout sets the per-request response timeout.
// Default: 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the logger used for timeouts and handler panics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Router) {
		if log != nil {
			r.log = log
		}
	}
}
