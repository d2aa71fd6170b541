// Package memstore provides in-memory implementations of the store
// contracts, used in tests and single-node development setups. All
// operations copy records on the way in and out, so callers can never alias
// stored state, and a single mutex makes Transition's
// check-status-then-write atomic.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
)

// SessionStore is a mutex-guarded map of sessions keyed by internal state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	now      func() time.Time
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
		now:      time.Now,
	}
}

// Create implements store.SessionStore.
func (s *SessionStore) Create(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.InternalState]; exists {
		return store.ErrDuplicate
	}
	s.sessions[sess.InternalState] = cloneSession(sess)
	return nil
}

// Get implements store.SessionStore.
func (s *SessionStore) Get(_ context.Context, key store.Key, value string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.find(key, value)
	if sess == nil {
		return nil, store.ErrNotFound
	}
	return cloneSession(sess), nil
}

// Transition implements store.SessionStore.
func (s *SessionStore) Transition(_ context.Context, key store.Key, value string, from, to session.Status, apply func(*session.Session)) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.find(key, value)
	if sess == nil {
		return nil, store.ErrNotFound
	}
	if sess.Status != from {
		return nil, store.ErrConflict
	}

	updated := cloneSession(sess)
	if apply != nil {
		apply(updated)
	}
	updated.Status = to
	updated.Timestamp = s.now().UnixMilli()
	s.sessions[updated.InternalState] = updated
	return cloneSession(updated), nil
}

// Delete implements store.SessionStore.
func (s *SessionStore) Delete(_ context.Context, internalState string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[internalState]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, internalState)
	return nil
}

// All implements store.SessionStore.
func (s *SessionStore) All(_ context.Context) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, cloneSession(sess))
	}
	return out, nil
}

// find scans for a session whose key field equals value.
// Caller must hold the mutex.
func (s *SessionStore) find(key store.Key, value string) *session.Session {
	if value == "" {
		return nil
	}
	if key == store.KeyInternalState {
		return s.sessions[value]
	}
	for _, sess := range s.sessions {
		if fieldValue(sess, key) == value {
			return sess
		}
	}
	return nil
}

func fieldValue(sess *session.Session, key store.Key) string {
	switch key {
	case store.KeyInternalState:
		return sess.InternalState
	case store.KeyRedirectID:
		return sess.RedirectID
	case store.KeyCode:
		return sess.Code
	case store.KeyToken:
		return sess.Token
	case store.KeyOAuthToken:
		return sess.OAuthToken
	}
	return ""
}

func cloneSession(sess *session.Session) *session.Session {
	out := *sess
	out.Scopes = append([]session.Scope(nil), sess.Scopes...)
	out.AllowedMethods = append([]string(nil), sess.AllowedMethods...)
	if sess.User.Account != nil {
		account := *sess.User.Account
		out.User.Account = &account
	}
	if sess.User.Contact != nil {
		contact := *sess.User.Contact
		out.User.Contact = &contact
	}
	if sess.User.Security != nil {
		security := *sess.User.Security
		out.User.Security = &security
	}
	return &out
}

var _ store.SessionStore = (*SessionStore)(nil)
