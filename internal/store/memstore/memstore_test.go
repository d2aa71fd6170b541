package memstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/internal/store/memstore"
)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	return session.New("app-1", "https://example.com/cb", "st", session.ResponseTypeCode,
		[]session.Scope{session.ScopeID}, nil, true)
}

func TestSessionStore_CreateGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewSessionStore()

	sess := newSession(t)
	require.NoError(t, s.Create(ctx, sess))
	require.ErrorIs(t, s.Create(ctx, sess), store.ErrDuplicate)

	got, err := s.Get(ctx, store.KeyInternalState, sess.InternalState)
	require.NoError(t, err)
	require.Equal(t, sess.InternalState, got.InternalState)

	got, err = s.Get(ctx, store.KeyRedirectID, sess.RedirectID)
	require.NoError(t, err)
	require.Equal(t, sess.InternalState, got.InternalState)

	got, err = s.Get(ctx, store.KeyOAuthToken, sess.OAuthToken)
	require.NoError(t, err)
	require.Equal(t, sess.InternalState, got.InternalState)

	_, err = s.Get(ctx, store.KeyCode, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Get(ctx, store.KeyCode, "")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewSessionStore()

	sess := newSession(t)
	require.NoError(t, s.Create(ctx, sess))

	got, err := s.Get(ctx, store.KeyInternalState, sess.InternalState)
	require.NoError(t, err)
	got.Status = session.StatusStored
	got.Scopes[0] = session.ScopeSecurity

	again, err := s.Get(ctx, store.KeyInternalState, sess.InternalState)
	require.NoError(t, err)
	require.Equal(t, session.StatusCreated, again.Status)
	require.Equal(t, session.ScopeID, again.Scopes[0])
}

func TestSessionStore_Transition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewSessionStore()

	sess := newSession(t)
	require.NoError(t, s.Create(ctx, sess))

	got, err := s.Transition(ctx, store.KeyRedirectID, sess.RedirectID,
		session.StatusCreated, session.StatusPending, func(u *session.Session) {
			u.Platform = "discord"
		})
	require.NoError(t, err)
	require.Equal(t, session.StatusPending, got.Status)
	require.Equal(t, "discord", got.Platform)

	// A second identical transition must observe the advanced status.
	_, err = s.Transition(ctx, store.KeyRedirectID, sess.RedirectID,
		session.StatusCreated, session.StatusPending, nil)
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Transition(ctx, store.KeyRedirectID, "missing",
		session.StatusCreated, session.StatusPending, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessionStore_TransitionRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewSessionStore()

	sess := newSession(t)
	require.NoError(t, s.Create(ctx, sess))

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, results[i] = s.Transition(ctx, store.KeyInternalState, sess.InternalState,
				session.StatusCreated, session.StatusPending, nil)
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, store.ErrConflict)
		}
	}
	require.Equal(t, 1, won)
}

func TestSessionStore_DeleteAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewSessionStore()

	a := newSession(t)
	b := newSession(t)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.Delete(ctx, a.InternalState))
	require.ErrorIs(t, s.Delete(ctx, a.InternalState), store.ErrNotFound)

	all, err = s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, b.InternalState, all[0].InternalState)
}

func TestApplicationStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := memstore.NewApplicationStore()

	app := &session.Application{
		ID:           "client-1",
		Secret:       "secret-1",
		Name:         "Test App",
		RedirectURLs: []string{"https://example.com/cb"},
	}
	require.NoError(t, s.Create(ctx, app))
	require.ErrorIs(t, s.Create(ctx, app), store.ErrDuplicate)

	got, err := s.GetByID(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "Test App", got.Name)

	got, err = s.GetBySecret(ctx, "secret-1")
	require.NoError(t, err)
	require.Equal(t, "client-1", got.ID)

	_, err = s.GetBySecret(ctx, "")
	require.ErrorIs(t, err, store.ErrNotFound)

	app.Name = "Renamed"
	require.NoError(t, s.Update(ctx, app))
	got, err = s.GetByID(ctx, "client-1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Name)

	generated := session.NewApplication("Generated", "", "", []string{"https://other.example/cb"})
	require.Len(t, generated.ID, 32)
	require.Len(t, generated.Secret, 64)
	require.NoError(t, s.Create(ctx, generated))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, s.Delete(ctx, generated.ID))

	require.NoError(t, s.Delete(ctx, "client-1"))
	require.ErrorIs(t, s.Delete(ctx, "client-1"), store.ErrNotFound)
}
