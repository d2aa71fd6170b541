package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authgate/internal/httpapi"
	"github.com/dmitrymomot/authgate/internal/provider"
	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/internal/store/memstore"
	"github.com/dmitrymomot/authgate/pkg/dispatch"
)

// fakeProvider is a minimal in-memory login method for exercising the
// endpoint flows without outbound HTTP.
type fakeProvider struct {
	id   string
	user session.User
	err  error
}

func (p *fakeProvider) ID() string   { return p.id }
func (p *fakeProvider) Name() string { return "Fake" }
func (p *fakeProvider) Icon() string { return "/app/assets/methods/" + p.id + ".svg" }

func (p *fakeProvider) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	q := url.Values{}
	q.Set("state", state)
	q.Set("redirect_uri", redirectURI)
	return "https://idp.example/authorize?" + q.Encode(), nil
}

func (p *fakeProvider) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
	if p.err != nil {
		return session.User{}, p.err
	}
	return p.user, nil
}

type fixture struct {
	router   *dispatch.Router
	sessions store.SessionStore
	apps     store.ApplicationStore
}

func setup(t *testing.T) *fixture {
	t.Helper()

	sessions := memstore.NewSessionStore()
	apps := memstore.NewApplicationStore()
	require.NoError(t, apps.Create(context.Background(), &session.Application{
		ID:           "client-1",
		Secret:       "secret-1",
		Name:         "Test App",
		RedirectURLs: []string{"https://rp.example/cb"},
	}))

	registry := provider.NewRegistry(&fakeProvider{
		id: "fake",
		user: session.User{
			ID:   "user-1",
			Name: "someone",
			Account: &session.Account{
				Avatar: "https://idp.example/avatar.png",
			},
		},
	})

	h := httpapi.New(sessions, apps, registry, httpapi.Config{
		BaseURL:    "http://broker.test",
		SiteOrigin: "testausserveri.fi",
	}, nil)

	router := dispatch.New()
	h.Register(router)
	return &fixture{router: router, sessions: sessions, apps: apps}
}

func (f *fixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func formHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

// locationQuery parses the query of the Location header.
func locationQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return loc.Query()
}

func TestCodeFlow(t *testing.T) {
	t.Parallel()
	f := setup(t)

	// The relying party sends the user in.
	rec := f.do(t, http.MethodGet,
		"/api/v1/authenticate?response_type=code&scope=id,account&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb&state=rp-state", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/app?"))
	picker := locationQuery(t, rec)
	redirectID := picker.Get("state")
	require.NotEmpty(t, redirectID)
	require.Equal(t, "client-1", picker.Get("client_id"))

	// The user picks a method.
	rec = f.do(t, http.MethodGet, "/api/v1/login?state="+redirectID+"&method=fake", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.Equal(t, "testausserveri.fi", rec.Header().Get("Access-Control-Allow-Origin"))
	auth := locationQuery(t, rec)
	internalState := auth.Get("state")
	require.NotEmpty(t, internalState)
	require.Equal(t, "http://broker.test/api/v1/callback", auth.Get("redirect_uri"))

	// The provider calls back.
	rec = f.do(t, http.MethodGet, "/api/v1/callback?state="+internalState+"&code=idp-code", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://rp.example/cb?"))
	back := locationQuery(t, rec)
	code := back.Get("code")
	require.NotEmpty(t, code)
	require.Equal(t, "rp-state", back.Get("state"))

	// The relying party's backend exchanges the code.
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {"client-1"},
		"client_secret": {"secret-1"},
		"redirect_uri":  {"https://rp.example/cb"},
	}
	rec = f.do(t, http.MethodPost, "/api/v1/token", form.Encode(), formHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "testausserveri.fi", rec.Header().Get("Access-Control-Allow-Origin"))
	var issued struct {
		Token  string `json:"token"`
		Expiry int64  `json:"expiry"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)
	require.EqualValues(t, 120000, issued.Expiry)

	// A second exchange of the same code must fail.
	rec = f.do(t, http.MethodPost, "/api/v1/token", form.Encode(), formHeaders())
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Invalid or expired code", errorBody(t, rec))

	// The token yields the claims exactly once.
	rec = f.do(t, http.MethodGet, "/api/v1/me", "", map[string]string{"Authorization": "Bearer " + issued.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Account *struct {
			Avatar string `json:"avatar"`
		} `json:"account"`
		Token         string   `json:"token"`
		Scopes        []string `json:"scopes"`
		ApplicationID string   `json:"applicationId"`
		Platform      struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"platform"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, "user-1", me.ID)
	require.Equal(t, "someone", me.Name)
	require.NotNil(t, me.Account)
	require.Empty(t, me.Token) // token scope not granted
	require.Equal(t, []string{"id", "account"}, me.Scopes)
	require.Equal(t, "client-1", me.ApplicationID)
	require.Equal(t, "fake", me.Platform.ID)
	require.Equal(t, "Fake", me.Platform.Name)

	rec = f.do(t, http.MethodGet, "/api/v1/me", "", map[string]string{"Authorization": "Bearer " + issued.Token})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid token", errorBody(t, rec))
}

func TestAuthenticate_Validation(t *testing.T) {
	t.Parallel()
	f := setup(t)

	cases := []struct {
		name    string
		target  string
		status  int
		message string
	}{
		{
			name:    "bad response type",
			target:  "/api/v1/authenticate?response_type=nope&scope=id&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb",
			status:  http.StatusBadRequest,
			message: `Only accepted response_type is "code"`,
		},
		{
			name:    "empty scope",
			target:  "/api/v1/authenticate?response_type=code&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb",
			status:  http.StatusBadRequest,
			message: "At least one scope required",
		},
		{
			name:    "unknown scope",
			target:  "/api/v1/authenticate?response_type=code&scope=id,everything&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb",
			status:  http.StatusBadRequest,
			message: "One or more provided scopes are invalid",
		},
		{
			name:    "unknown client",
			target:  "/api/v1/authenticate?response_type=code&scope=id&client_id=nobody&redirect_uri=https%3A%2F%2Frp.example%2Fcb",
			status:  http.StatusBadRequest,
			message: "Invalid client_id",
		},
		{
			name:    "redirect not on allow-list",
			target:  "/api/v1/authenticate?response_type=code&scope=id&client_id=client-1&redirect_uri=https%3A%2F%2Fevil.example%2Fcb",
			status:  http.StatusBadRequest,
			message: "Invalid redirect_uri",
		},
		{
			name:    "token scope with implicit grant",
			target:  "/api/v1/authenticate?response_type=token&scope=token,id&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb",
			status:  http.StatusUnauthorized,
			message: `"token" scope cannot be used with "response_type" of "token"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tc.target, "", nil)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.message, errorBody(t, rec))
		})
	}

	// None of the rejected requests may leave a session behind.
	all, err := f.sessions.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestAuthenticate_NoRedirect(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet,
		"/api/v1/authenticate?response_type=code&scope=id&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb&noRedirect", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
	require.True(t, strings.HasPrefix(rec.Header().Get("X-Location"), "/app?"))
}

func TestLogin_Validation(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/api/v1/login?method=fake", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, `"state" is required`, errorBody(t, rec))
	require.Equal(t, "testausserveri.fi", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.do(t, http.MethodGet, "/api/v1/login?state=x&method=unknown", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, `"method" is invalid`, errorBody(t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/login?state=missing&method=fake", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired authentication session", errorBody(t, rec))
}

func TestCallback_SecondAttemptRejected(t *testing.T) {
	t.Parallel()
	f := setup(t)

	sess := session.New("client-1", "https://rp.example/cb", "rp-state", session.ResponseTypeCode,
		[]session.Scope{session.ScopeID}, nil, false)
	sess.Status = session.StatusPending
	sess.Platform = "fake"
	require.NoError(t, f.sessions.Create(context.Background(), sess))

	rec := f.do(t, http.MethodGet, "/api/v1/callback?state="+sess.InternalState+"&code=idp-code", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	// The session already advanced past pending, so a replayed callback
	// loses the status race.
	rec = f.do(t, http.MethodGet, "/api/v1/callback?state="+sess.InternalState+"&code=idp-code", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired authentication session", errorBody(t, rec))
}

func TestToken_InvalidCredentials(t *testing.T) {
	t.Parallel()
	f := setup(t)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"whatever"},
		"client_id":     {"client-1"},
		"client_secret": {"wrong"},
		"redirect_uri":  {"https://rp.example/cb"},
	}
	rec := f.do(t, http.MethodPost, "/api/v1/token", form.Encode(), formHeaders())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid client credentials", errorBody(t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/token", form.Encode(), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid content-type header", errorBody(t, rec))
}

func TestRequestTokenFlow(t *testing.T) {
	t.Parallel()
	f := setup(t)

	form := url.Values{
		"redirect_uri": {"https://rp.example/cb"},
		"scope":        {"id"},
		"methods":      {"fake"},
		"state":        {"rp-state"},
	}
	headers := formHeaders()
	headers["Authorization"] = "Bearer secret-1"
	rec := f.do(t, http.MethodPost, "/api/v1/request_token", form.Encode(), headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		OAuthToken string `json:"oauth_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.OAuthToken)

	// Resuming with the oauth_token lands on the picker with the method
	// allow-list attached.
	rec = f.do(t, http.MethodGet, "/api/v1/authenticate?oauth_token="+resp.OAuthToken, "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	picker := locationQuery(t, rec)
	require.Equal(t, "fake", picker.Get("methods"))

	// A method outside the allow-list is refused at login.
	sess, err := f.sessions.Get(context.Background(), store.KeyOAuthToken, resp.OAuthToken)
	require.NoError(t, err)
	require.Equal(t, []string{"fake"}, sess.AllowedMethods)

	rec = f.do(t, http.MethodPost, "/api/v1/request_token", form.Encode(), map[string]string{"Authorization": "Bearer nope", "Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid token", errorBody(t, rec))

	form.Set("methods", "fake,unknown")
	rec = f.do(t, http.MethodPost, "/api/v1/request_token", form.Encode(), headers)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "One or more provided method IDs are invalid", errorBody(t, rec))
}

func TestV2ImplicitFlow(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet,
		"/api/v2/authenticate?response_type=token&scope=id&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb&state=rp-state", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	redirectID := locationQuery(t, rec).Get("state")

	rec = f.do(t, http.MethodGet, "/api/v1/login?state="+redirectID+"&method=fake", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	internalState := locationQuery(t, rec).Get("state")

	// The implicit grant delivers the token straight on the redirect.
	rec = f.do(t, http.MethodGet, "/api/v1/callback?state="+internalState+"&code=idp-code", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	back := locationQuery(t, rec)
	require.NotEmpty(t, back.Get("token"))
	require.Equal(t, "Bearer", back.Get("token_type"))
	require.Equal(t, "120000", back.Get("expiry"))
	require.Equal(t, "rp-state", back.Get("state"))

	rec = f.do(t, http.MethodGet, "/api/v1/me", "", map[string]string{"Authorization": "Bearer " + back.Get("token")})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestV2Authenticate_CodeBouncesToV1(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet,
		"/api/v2/authenticate?response_type=code&scope=id&client_id=client-1&redirect_uri=https%3A%2F%2Frp.example%2Fcb", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/api/v1/authenticate", loc.Path)
	require.Equal(t, "code", loc.Query().Get("response_type"))

	rec = f.do(t, http.MethodPost, "/api/v2/authenticate", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestV2Authenticate_UnknownOAuthToken(t *testing.T) {
	t.Parallel()
	f := setup(t)

	// The oauth_token branch is public; errors carry the same open CORS
	// header as its success path.
	rec := f.do(t, http.MethodGet, "/api/v2/authenticate?oauth_token=missing", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Invalid or expired authentication session", errorBody(t, rec))
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestV3Token_MissingParamListing(t *testing.T) {
	t.Parallel()
	f := setup(t)

	form := url.Values{
		"code":      {"abc"},
		"client_id": {"client-1"},
	}
	rec := f.do(t, http.MethodPost, "/api/v3/authenticate", form.Encode(), formHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Missing or empty query parameter(s): grant_type,redirect_uri,client_secret", errorBody(t, rec))
}

func TestApplicationAndMethods(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/api/v1/application?client_id=client-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var app struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Secret string `json:"secret"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &app))
	require.Equal(t, "client-1", app.ID)
	require.Equal(t, "Test App", app.Name)
	require.Empty(t, app.Secret) // never exposed

	// Unknown ids yield an empty object, not an error.
	rec = f.do(t, http.MethodGet, "/api/v1/application?client_id=nobody", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "{}", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/methods", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var methods []provider.Method
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &methods))
	require.Len(t, methods, 1)
	require.Equal(t, "fake", methods[0].ID)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/nothing/here", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Inside the v1 prefix every route declines unknown subpaths.
	rec = f.do(t, http.MethodGet, "/api/v1/nothing-here", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
