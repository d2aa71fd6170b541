package session

import "time"

// Status tags a session's position in the state machine. Sessions only move
// forward: created -> pending -> completed -> stored -> deleted. Attempting
// a transition from any other current status must fail without mutating the
// stored record.
type Status string

const (
	// StatusCreated is set when /authenticate or /request_token registers
	// the session.
	StatusCreated Status = "created"

	// StatusPending is set when the user picks a provider at /login and is
	// redirected out to it.
	StatusPending Status = "pending"

	// StatusCompleted is set when the provider callback arrives and the
	// one-time authorization code is minted.
	StatusCompleted Status = "completed"

	// StatusStored is set when the code is exchanged (or the token minted
	// inline for the implicit flow); the bearer token is live until /me
	// consumes it.
	StatusStored Status = "stored"
)

// statusTTL is the per-status lifetime before the expiry sweep deletes the
// session.
var statusTTL = map[Status]time.Duration{
	StatusCreated:   2 * time.Minute,
	StatusPending:   5 * time.Minute,
	StatusCompleted: 1 * time.Minute,
	StatusStored:    2 * time.Minute,
}

// TTL returns the sweep lifetime for a status. Unknown statuses get a zero
// TTL and are swept immediately.
func TTL(status Status) time.Duration {
	return statusTTL[status]
}

// Valid reports whether the status is one of the machine's states.
func (s Status) Valid() bool {
	_, ok := statusTTL[s]
	return ok
}
