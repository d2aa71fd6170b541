package memstore

import (
	"context"
	"sync"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
)

// ApplicationStore is a mutex-guarded map of application registrations.
type ApplicationStore struct {
	mu   sync.RWMutex
	apps map[string]*session.Application
}

// NewApplicationStore creates an empty in-memory application store.
func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{apps: make(map[string]*session.Application)}
}

// GetByID implements store.ApplicationStore.
func (s *ApplicationStore) GetByID(_ context.Context, id string) (*session.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.apps[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneApplication(app), nil
}

// GetBySecret implements store.ApplicationStore.
func (s *ApplicationStore) GetBySecret(_ context.Context, secret string) (*session.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if secret == "" {
		return nil, store.ErrNotFound
	}
	for _, app := range s.apps {
		if app.Secret == secret {
			return cloneApplication(app), nil
		}
	}
	return nil, store.ErrNotFound
}

// Create implements store.ApplicationStore.
func (s *ApplicationStore) Create(_ context.Context, app *session.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.apps[app.ID]; exists {
		return store.ErrDuplicate
	}
	s.apps[app.ID] = cloneApplication(app)
	return nil
}

// Update implements store.ApplicationStore.
func (s *ApplicationStore) Update(_ context.Context, app *session.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[app.ID]; !ok {
		return store.ErrNotFound
	}
	s.apps[app.ID] = cloneApplication(app)
	return nil
}

// Delete implements store.ApplicationStore.
func (s *ApplicationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

// List implements store.ApplicationStore.
func (s *ApplicationStore) List(_ context.Context) ([]*session.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*session.Application, 0, len(s.apps))
	for _, app := range s.apps {
		out = append(out, cloneApplication(app))
	}
	return out, nil
}

func cloneApplication(app *session.Application) *session.Application {
	out := *app
	out.RedirectURLs = append([]string(nil), app.RedirectURLs...)
	return &out
}

var _ store.ApplicationStore = (*ApplicationStore)(nil)
