package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/dmitrymomot/authgate/internal/session"
)

const discordUserInfoURL = "https://discord.com/api/v9/oauth2/@me"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/v9/oauth2/token",
}

var discordScopes = map[session.Scope]string{
	session.ScopeID:      "identify",
	session.ScopeAccount: "identify",
	session.ScopeContact: "email",
}

// Discord implements the Discord OAuth2 code flow.
type Discord struct {
	config      *oauth2.Config
	userInfoURL string
	client      *http.Client
}

// NewDiscord creates the Discord adapter.
func NewDiscord(creds Credentials, opts ...Option) (*Discord, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	o := applyOptions(opts)

	endpoint := discordEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}
	userInfoURL := discordUserInfoURL
	if o.userInfoURL != "" {
		userInfoURL = o.userInfoURL
	}

	return &Discord{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		client:      o.httpClient,
	}, nil
}

func (p *Discord) ID() string   { return "discord" }
func (p *Discord) Name() string { return "Discord" }
func (p *Discord) Icon() string { return "/app/assets/methods/discord.svg" }

// AuthorizeURL implements Provider.
func (p *Discord) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", mapScopes(discordScopes, " ", scopes))
	q.Set("state", state)
	return p.config.Endpoint.AuthURL + "?" + q.Encode(), nil
}

// Callback implements Provider.
func (p *Discord) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
	code := query.Get("code")
	if code == "" {
		return session.User{}, ErrMissingCode
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := exchangeCode(ctx, p.config, code, redirectURI)
	if err != nil {
		return session.User{}, userError("Unable to request account access token. This is likely a Discord issue.", err)
	}

	var info struct {
		User struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Discriminator string `json:"discriminator"`
			Avatar        string `json:"avatar"`
			Email         string `json:"email"`
		} `json:"user"`
	}
	if err := fetchJSON(ctx, p.client, p.userInfoURL, "Bearer "+token.AccessToken, &info); err != nil {
		return session.User{}, userError("Unable to access account information. This is likely a Discord issue.", err)
	}

	user := session.User{
		Name: fmt.Sprintf("%s#%s", info.User.Username, info.User.Discriminator),
		ID:   info.User.ID,
	}
	if sess.HasScope(session.ScopeToken) {
		user.Token = token.AccessToken
	}
	if sess.HasScope(session.ScopeContact) {
		user.Contact = &session.Contact{Email: info.User.Email}
	}
	if sess.HasScope(session.ScopeAccount) {
		user.Account = &session.Account{
			Avatar: fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.webp", info.User.ID, info.User.Avatar),
		}
	}
	return user, nil
}

// exchangeCode trades an authorization code for a token using the session's
// own callback URL, which must match the one sent at authorization time.
func exchangeCode(ctx context.Context, base *oauth2.Config, code, redirectURI string) (*oauth2.Token, error) {
	cfg := *base
	cfg.RedirectURL = redirectURI
	return cfg.Exchange(ctx, code)
}

// fetchJSON performs an authorized GET and decodes the JSON response.
func fetchJSON(ctx context.Context, client *http.Client, url, authorization string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	req.Header.Set("User-Agent", "authgate")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("user info request: status=%d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Provider = (*Discord)(nil)
