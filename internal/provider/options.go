package provider

import (
	"net/http"

	"golang.org/x/oauth2"
)

// Option configures a provider adapter.
type Option func(*options)

type options struct {
	httpClient  *http.Client
	endpoint    *oauth2.Endpoint
	userInfoURL string
	baseURL     string
}

// WithHTTPClient sets a custom HTTP client for outbound provider calls.
// Useful for tests with httptest servers or custom transports.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithEndpoint overrides the provider's OAuth2 endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(o *options) {
		o.endpoint = &ep
	}
}

// WithUserInfoURL overrides the provider's user info URL.
func WithUserInfoURL(u string) Option {
	return func(o *options) {
		o.userInfoURL = u
	}
}

// WithBaseURL overrides the API host for providers that derive all their
// URLs from one base (Twitter).
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = defaultHTTPClient()
	}
	return o
}
