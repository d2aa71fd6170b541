package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authgate/internal/session"
)

const wilmaPlusUserInfoURL = "https://tunnistautuminen.wilmaplus.fi/oauth/userinfo"

var wilmaPlusEndpoint = oauth2.Endpoint{
	AuthURL:  "https://tunnistautuminen.wilmaplus.fi/oauth/authorize",
	TokenURL: "https://tunnistautuminen.wilmaplus.fi/oauth/token",
}

var wilmaPlusNativeScopes = []string{"openid", "profile", "email"}

// WilmaPlus implements the Wilma Plus OAuth2 code flow.
type WilmaPlus struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewWilmaPlus creates the Wilma Plus adapter.
func NewWilmaPlus(creds Credentials, opts ...Option) (*WilmaPlus, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	o := applyOptions(opts)

	endpoint := wilmaPlusEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	userInfoURL := wilmaPlusUserInfoURL
	if o.userInfoURL != "" {
		userInfoURL = o.userInfoURL
	}

	return &WilmaPlus{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       wilmaPlusNativeScopes,
		},
		userInfoURL: userInfoURL,
		client:      o.httpClient,
	}, nil
}

func (p *WilmaPlus) ID() string   { return "wilmaplus" }
func (p *WilmaPlus) Name() string { return "Wilma Plus" }
func (p *WilmaPlus) Icon() string { return "/app/assets/methods/wilmaplus.svg" }

// AuthorizeURL implements Provider.
func (p *WilmaPlus) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(p.config.Scopes, " "))
	q.Set("state", state)
	return p.config.Endpoint.AuthURL + "?" + q.Encode(), nil
}

// Callback implements Provider.
func (p *WilmaPlus) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
	code := query.Get("code")
	if code == "" {
		return session.User{}, ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := exchangeCode(ctx, p.config, code, redirectURI)
	if err != nil {
		return session.User{}, userError("Unable to request account access token. This is likely a Wilma Plus issue.", err)
	}

	var info struct {
		Subject string `json:"sub"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
		Email   string `json:"email"`
	}
	// The userinfo endpoint takes the token as a query parameter rather
	// than an Authorization header.
	infoURL := p.userInfoURL + "?access_token=" + url.QueryEscape(token.AccessToken)
	if err := fetchJSON(ctx, p.client, infoURL, "", &info); err != nil {
		return session.User{}, userError("Unable to access account information. This is likely a Wilma Plus issue.", err)
	}

	user := session.User{
		Name: info.Name,
		ID:   info.Subject,
	}
	if sess.HasScope(session.ScopeToken) {
		user.Token = token.AccessToken
	}
	if sess.HasScope(session.ScopeContact) {
		user.Contact = &session.Contact{Email: info.Email}
	}
	if sess.HasScope(session.ScopeAccount) {
		user.Account = &session.Account{Avatar: info.Picture}
	}
	return user, nil
}

var _ Provider = (*WilmaPlus)(nil)
