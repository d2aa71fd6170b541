package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authgate/internal/session"
)

const githubUserInfoURL = "https://api.github.com/user"

var githubEndpoint = oauth2.Endpoint{
	AuthURL:  "https://github.com/login/oauth/authorize",
	TokenURL: "https://github.com/login/oauth/access_token",
}

var githubScopes = map[session.Scope]string{
	session.ScopeID:      "read:user",
	session.ScopeAccount: "read:user",
	session.ScopeContact: "user:email",
}

// GitHub implements the GitHub OAuth2 code flow.
type GitHub struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewGitHub creates the GitHub adapter.
func NewGitHub(creds Credentials, opts ...Option) (*GitHub, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	o := applyOptions(opts)

	endpoint := githubEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	userInfoURL := githubUserInfoURL
	if o.userInfoURL != "" {
		userInfoURL = o.userInfoURL
	}

	return &GitHub{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      o.httpClient,
	}, nil
}

func (p *GitHub) ID() string   { return "github" }
func (p *GitHub) Name() string { return "GitHub" }
func (p *GitHub) Icon() string { return "/app/assets/methods/github.svg" }

// AuthorizeURL implements Provider.
// GitHub accepts its scope list comma-separated.
func (p *GitHub) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", mapScopes(githubScopes, ", ", scopes))
	q.Set("state", state)
	return p.config.Endpoint.AuthURL + "?" + q.Encode(), nil
}

// Callback implements Provider.
func (p *GitHub) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
	code := query.Get("code")
	if code == "" {
		return session.User{}, ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := exchangeCode(ctx, p.config, code, redirectURI)
	if err != nil {
		return session.User{}, userError("Unable to get account access token. The user may have rejected the authentication request.", err)
	}

	var info struct {
		ID            int64  `json:"id"`
		Login         string `json:"login"`
		AvatarURL     string `json:"avatar_url"`
		CreatedAt     string `json:"created_at"`
		Email         string `json:"email"`
		TwoFactorAuth bool   `json:"two_factor_authentication"`
	}
	// The API requires a User-Agent on every request; fetchJSON sets one.
	if err := fetchJSON(ctx, p.client, p.userInfoURL, "token "+token.AccessToken, &info); err != nil {
		return session.User{}, userError("Unable to get account information.", err)
	}

	user := session.User{ID: strconv.FormatInt(info.ID, 10)}
	if sess.HasScope(session.ScopeAccount) {
		user.Name = info.Login
		user.Account = &session.Account{Avatar: info.AvatarURL, CreatedAt: info.CreatedAt}
	}
	if sess.HasScope(session.ScopeToken) {
		user.Token = token.AccessToken
	}
	if sess.HasScope(session.ScopeContact) {
		user.Contact = &session.Contact{Email: info.Email}
	}
	if sess.HasScope(session.ScopeSecurity) {
		user.Security = &session.Security{Has2FA: info.TwoFactorAuth}
	}
	return user, nil
}

var _ Provider = (*GitHub)(nil)
