package oauth1

import "time"

// Option configures a Signer.
type Option func(*Signer)

// WithNonce sets a custom nonce source. Useful for reproducing known-good
// signatures in tests.
func WithNonce(fn func() string) Option {
	return func(s *Signer) {
		s.nonce = fn
	}
}

// WithClock sets a custom time source for the oauth_timestamp parameter.
func WithClock(fn func() time.Time) Option {
	return func(s *Signer) {
		s.now = fn
	}
}
