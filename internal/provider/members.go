package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authgate/internal/session"
)

const membersUserInfoURL = "https://www.googleapis.com/userinfo/v2/me"

var membersEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// membersNativeScopes is the fixed Google scope set; claim narrowing
// happens in the mapping below, not at the provider.
var membersNativeScopes = []string{"openid", "email", "profile"}

// Members authenticates organization members through Google Workspace.
// Accounts whose hosted domain differs from the configured one are
// rejected with a client-facing error.
type Members struct {
	config       *oauth2.Config
	userInfoURL  string
	hostedDomain string
	client       *http.Client
}

// NewMembers creates the Google Workspace adapter.
func NewMembers(creds Credentials, hostedDomain string, opts ...Option) (*Members, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	if hostedDomain == "" {
		return nil, fmt.Errorf("provider: members adapter needs a hosted domain")
	}
	o := applyOptions(opts)

	endpoint := membersEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	userInfoURL := membersUserInfoURL
	if o.userInfoURL != "" {
		userInfoURL = o.userInfoURL
	}

	return &Members{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       membersNativeScopes,
		},
		userInfoURL:  userInfoURL,
		hostedDomain: hostedDomain,
		client:       o.httpClient,
	}, nil
}

func (p *Members) ID() string   { return "members" }
func (p *Members) Name() string { return "Members" }
func (p *Members) Icon() string { return "/app/assets/methods/members.svg" }

// AuthorizeURL implements Provider.
func (p *Members) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(p.config.Scopes, " "))
	q.Set("state", state)
	q.Set("hd", p.hostedDomain)
	return p.config.Endpoint.AuthURL + "?" + q.Encode(), nil
}

// Callback implements Provider.
func (p *Members) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
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
		ID            string `json:"id"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		Picture       string `json:"picture"`
		Locale        string `json:"locale"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		HostedDomain  string `json:"hd"`
	}
	if err := fetchJSON(ctx, p.client, p.userInfoURL, "Bearer "+token.AccessToken, &info); err != nil {
		return session.User{}, userError("Unable to get account information.", err)
	}

	// The hd query parameter on the authorization URL is a UI hint only;
	// the account's actual domain has to be checked here.
	if info.HostedDomain != p.hostedDomain {
		return session.User{}, userError(fmt.Sprintf("Selected account is not a member of the %s organization.", p.hostedDomain), nil)
	}

	var user session.User
	if sess.HasScope(session.ScopeAccount) {
		user.Name = info.GivenName
		if user.Name == "" {
			user.Name = info.Name
		}
		user.Account = &session.Account{Language: info.Locale, Avatar: info.Picture}
	}
	if sess.HasScope(session.ScopeID) {
		user.ID = info.ID
	}
	if sess.HasScope(session.ScopeToken) {
		user.Token = token.AccessToken
	}
	if sess.HasScope(session.ScopeContact) {
		contact := &session.Contact{}
		if info.VerifiedEmail {
			contact.Email = info.Email
		}
		user.Contact = contact
	}
	return user, nil
}

var _ Provider = (*Members)(nil)
