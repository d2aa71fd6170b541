package redisstore

import "time"

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithPrefix overrides the key prefix. Defaults to "authgate".
func WithPrefix(prefix string) Option {
	return func(s *SessionStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}
