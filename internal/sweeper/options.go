package sweeper

import (
	"log/slog"
	"time"
)

// Option configures the sweeper.
type Option func(*Sweeper)

// WithLogger sets the sweep logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = log }
}

// WithSchedule overrides the sweep cron schedule.
func WithSchedule(schedule string) Option {
	return func(s *Sweeper) { s.schedule = schedule }
}

// WithClock overrides the expiry clock.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}
