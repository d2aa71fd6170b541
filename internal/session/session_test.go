package session_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/session"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("fresh correlation keys", func(t *testing.T) {
		t.Parallel()
		s := session.New("app-1", "https://example.com/cb", "st", session.ResponseTypeCode,
			[]session.Scope{session.ScopeID}, nil, false)

		require.Equal(t, session.StatusCreated, s.Status)
		require.Len(t, s.InternalState, 64)
		require.Len(t, s.RedirectID, 32)
		require.Empty(t, s.OAuthToken)
		require.Empty(t, s.Code)
		require.Empty(t, s.Token)
		require.Equal(t, []string{session.MethodWildcard}, s.AllowedMethods)
		require.InDelta(t, time.Now().UnixMilli(), s.Timestamp, 2000)
	})

	t.Run("pre-registered carries oauth token", func(t *testing.T) {
		t.Parallel()
		s := session.New("app-1", "https://example.com/cb", "st", session.ResponseTypeCode,
			[]session.Scope{session.ScopeID}, []string{"discord"}, true)

		require.Len(t, s.OAuthToken, 32)
		require.Equal(t, []string{"discord"}, s.AllowedMethods)
	})
}

func TestSession_AllowsMethod(t *testing.T) {
	t.Parallel()

	s := &session.Session{AllowedMethods: []string{"discord", "github"}}
	require.True(t, s.AllowsMethod("discord"))
	require.False(t, s.AllowsMethod("twitter"))

	wildcard := &session.Session{AllowedMethods: []string{session.MethodWildcard}}
	require.True(t, wildcard.AllowsMethod("anything"))
}

func TestSession_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, tc := range []struct {
		status  session.Status
		age     time.Duration
		expired bool
	}{
		{session.StatusCreated, time.Minute, false},
		{session.StatusCreated, 3 * time.Minute, true},
		{session.StatusPending, 4 * time.Minute, false},
		{session.StatusPending, 6 * time.Minute, true},
		{session.StatusCompleted, 30 * time.Second, false},
		{session.StatusCompleted, 90 * time.Second, true},
		{session.StatusStored, time.Minute, false},
		{session.StatusStored, 3 * time.Minute, true},
	} {
		s := &session.Session{Status: tc.status, Timestamp: now.Add(-tc.age).UnixMilli()}
		require.Equal(t, tc.expired, s.Expired(now), "status=%s age=%s", tc.status, tc.age)
	}
}

func TestTTL(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2*time.Minute, session.TTL(session.StatusCreated))
	require.Equal(t, 5*time.Minute, session.TTL(session.StatusPending))
	require.Equal(t, time.Minute, session.TTL(session.StatusCompleted))
	require.Equal(t, 2*time.Minute, session.TTL(session.StatusStored))
	require.Zero(t, session.TTL(session.Status("bogus")))
}

func TestParseScopes(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		scopes, err := session.ParseScopes("id,account, contact")
		require.NoError(t, err)
		require.Equal(t, []session.Scope{session.ScopeID, session.ScopeAccount, session.ScopeContact}, scopes)
	})

	t.Run("unknown scope", func(t *testing.T) {
		t.Parallel()
		_, err := session.ParseScopes("id,admin")
		require.ErrorIs(t, err, session.ErrInvalidScope)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := session.ParseScopes("")
		require.ErrorIs(t, err, session.ErrInvalidScope)
	})
}

func TestUser_Filter(t *testing.T) {
	t.Parallel()

	full := session.User{
		Name:     "tester",
		ID:       "42",
		Token:    "provider-token",
		Account:  &session.Account{Avatar: "https://cdn.example.com/a.png"},
		Contact:  &session.Contact{Email: "tester@example.com"},
		Security: &session.Security{Has2FA: true},
	}

	got := full.Filter([]session.Scope{session.ScopeID, session.ScopeAccount})
	require.Equal(t, "42", got.ID)
	require.Equal(t, "tester", got.Name)
	require.NotNil(t, got.Account)
	require.Empty(t, got.Token)
	require.Nil(t, got.Contact)
	require.Nil(t, got.Security)
}

func TestUser_FilteredCategoriesAbsentFromJSON(t *testing.T) {
	t.Parallel()

	u := session.User{
		ID:      "42",
		Contact: &session.Contact{Email: "tester@example.com"},
	}
	filtered := u.Filter([]session.Scope{session.ScopeID})

	b, err := json.Marshal(filtered)
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"42"}`, string(b))
}
