// Package store defines the persistence contracts for authentication
// sessions and application registrations. Sessions are addressed by
// field-equality on their correlation keys; every status change goes through
// Transition, an atomic update-if-current-status-equals operation, so two
// near-simultaneous requests for the same session can never both advance it.
package store

import (
	"context"

	"github.com/dmitrymomot/authgate/internal/session"
)

// Key names a session correlation field usable for lookups.
type Key string

const (
	KeyInternalState Key = "internal_state"
	KeyRedirectID    Key = "redirect_id"
	KeyCode          Key = "code"
	KeyToken         Key = "token"
	KeyOAuthToken    Key = "oauth_token"
)

// SessionStore persists authentication sessions.
type SessionStore interface {
	// Create persists a new session. The session's correlation keys are
	// assumed unique by entropy; no uniqueness constraint is enforced.
	Create(ctx context.Context, s *session.Session) error

	// Get retrieves the session whose key field equals value.
	// Returns ErrNotFound if there is no such session.
	Get(ctx context.Context, key Key, value string) (*session.Session, error)

	// Transition atomically advances the matched session from the given
	// status to the next one, applying apply to the record and refreshing
	// its timestamp. Returns ErrNotFound if no session matches and
	// ErrConflict if the current status is not from; in both cases the
	// stored record is left untouched.
	Transition(ctx context.Context, key Key, value string, from, to session.Status, apply func(*session.Session)) (*session.Session, error)

	// Delete removes the session by its internal state.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, internalState string) error

	// All returns every stored session. Used by the expiry sweep.
	All(ctx context.Context) ([]*session.Session, error)
}

// ApplicationStore persists relying-party registrations.
type ApplicationStore interface {
	// GetByID retrieves an application by its public client id.
	GetByID(ctx context.Context, id string) (*session.Application, error)

	// GetBySecret retrieves an application by its confidential secret.
	// Used by the request_token bearer authorization.
	GetBySecret(ctx context.Context, secret string) (*session.Application, error)

	// Create persists a new application registration.
	Create(ctx context.Context, app *session.Application) error

	// Update replaces an existing registration.
	// Returns ErrNotFound if it does not exist.
	Update(ctx context.Context, app *session.Application) error

	// Delete removes a registration by id.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// List returns all registrations.
	List(ctx context.Context) ([]*session.Application, error)
}
