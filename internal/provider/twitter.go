package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/pkg/oauth1"
)

const twitterBaseURL = "https://api.twitter.com"

// Twitter implements login over OAuth 1.0a. The protocol has no scope
// narrowing, so the callback yields only the user id and screen name
// regardless of the session's granted scopes.
type Twitter struct {
	creds   Credentials
	signer  *oauth1.Signer
	baseURL string
	client  *http.Client
}

// NewTwitter creates the Twitter adapter.
func NewTwitter(creds Credentials, opts ...Option) (*Twitter, error) {
	if !creds.Configured() {
		return nil, ErrMissingCredentials
	}
	o := applyOptions(opts)

	baseURL := twitterBaseURL
	if o.baseURL != "" {
		baseURL = o.baseURL
	}

	return &Twitter{
		creds:   creds,
		signer:  oauth1.New(),
		baseURL: baseURL,
		client:  o.httpClient,
	}, nil
}

func (p *Twitter) ID() string   { return "twitter" }
func (p *Twitter) Name() string { return "Twitter" }
func (p *Twitter) Icon() string { return "/app/assets/methods/twitter.svg" }

// AuthorizeURL implements Provider. A Twitter login can only start through
// Preflight, which obtains the request token the authorization page needs.
func (p *Twitter) AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error) {
	return "", ErrPreflightRequired
}

// Preflight implements Preflighter. It requests a temporary token from
// the request_token endpoint and returns the authorization page URL
// carrying it. The broker's internal state rides along in the callback
// URL because OAuth 1.0a has no state parameter of its own.
func (p *Twitter) Preflight(ctx context.Context, sess *session.Session, redirectURI string) (string, error) {
	params := url.Values{}
	params.Set("oauth_consumer_key", p.creds.ClientID)
	params.Set("oauth_callback", redirectURI+"?state="+url.QueryEscape(sess.InternalState))

	body, err := p.signedPost(ctx, p.baseURL+"/oauth/request_token", params, "")
	if err != nil {
		return "", userError("Unable to initialize authorization flow. This is likely a Twitter issue.", err)
	}

	token := body.Get("oauth_token")
	if token == "" {
		return "", fmt.Errorf("provider: request_token response carried no oauth_token")
	}
	return p.baseURL + "/oauth/authenticate?oauth_token=" + url.QueryEscape(token), nil
}

// Callback implements Provider.
func (p *Twitter) Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error) {
	token := query.Get("oauth_token")
	verifier := query.Get("oauth_verifier")
	if token == "" || verifier == "" {
		return session.User{}, ErrMissingOAuthParams
	}

	params := url.Values{}
	params.Set("oauth_consumer_key", p.creds.ClientID)
	params.Set("oauth_token", token)
	params.Set("oauth_verifier", verifier)

	body, err := p.signedPost(ctx, p.baseURL+"/oauth/access_token", params, "")
	if err != nil {
		return session.User{}, userError("Unable to get account access token. The user may have rejected the authentication request.", err)
	}

	id := body.Get("user_id")
	name := body.Get("screen_name")
	if id == "" || name == "" {
		return session.User{}, fmt.Errorf("provider: unexpected access_token response from twitter")
	}
	return session.User{Name: name, ID: id}, nil
}

// signedPost signs and sends a POST with OAuth 1.0a header authorization
// and parses the form-encoded response body.
func (p *Twitter) signedPost(ctx context.Context, rawURL string, params url.Values, tokenSecret string) (url.Values, error) {
	_, signed, err := p.signer.Sign(http.MethodPost, rawURL, params, p.creds.ClientSecret, tokenSecret)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", oauth1.AuthorizationHeader(signed))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter request: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	return url.ParseQuery(string(raw))
}

var (
	_ Provider    = (*Twitter)(nil)
	_ Preflighter = (*Twitter)(nil)
)
