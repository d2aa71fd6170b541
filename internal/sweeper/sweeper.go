// Package sweeper deletes authentication sessions whose status lifetime has
// elapsed. The Redis backstop TTL only covers crash recovery; the sweep is
// what actually enforces the per-status expiry.
package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/authgate/internal/store"
)

const defaultSchedule = "@every 30s"

var (
	ErrAlreadyStarted = errors.New("sweeper: already started")
	ErrNotStarted     = errors.New("sweeper: not started")
)

// Sweeper periodically scans the session store and removes expired records.
type Sweeper struct {
	sessions store.SessionStore
	schedule string
	logger   *slog.Logger
	now      func() time.Time
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
}

// New creates a sweeper over the given session store.
func New(sessions store.SessionStore, opts ...Option) *Sweeper {
	s := &Sweeper{
		sessions: sessions,
		schedule: defaultSchedule,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Start runs one sweep immediately and then keeps sweeping on the schedule
// until Stop is called. The context bounds each individual sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}

	s.Sweep(ctx)
	s.cron.Start()
	s.started = true
	s.logger.InfoContext(ctx, "session sweeper started", slog.String("schedule", s.schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return ErrNotStarted
	}

	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.started = false
	s.logger.InfoContext(ctx, "session sweeper stopped")
	return nil
}

// Sweep removes every expired session. Failures are logged and do not stop
// the pass; a record that survives one sweep is caught by the next.
func (s *Sweeper) Sweep(ctx context.Context) {
	// Shutdown cancels the context before Stop halts the schedule; a tick
	// landing in that window is not a scan failure.
	if ctx.Err() != nil {
		return
	}

	sessions, err := s.sessions.All(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "session sweep scan failed", "error", err)
		return
	}

	now := s.now()
	removed := 0
	for _, sess := range sessions {
		if !sess.Expired(now) {
			continue
		}
		if err := s.sessions.Delete(ctx, sess.InternalState); err != nil {
			// Another sweep or a consuming request may have raced us.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			s.logger.ErrorContext(ctx, "session sweep delete failed", "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "expired sessions removed", slog.Int("count", removed))
	}
}
