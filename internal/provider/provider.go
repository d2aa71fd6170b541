// Package provider implements the identity provider adapters behind the
// login and callback endpoints. Each adapter turns a provider-specific
// OAuth exchange into the broker's scope-gated user claims.
//
// OAuth2 code-flow providers implement only Provider. Providers that need
// a server-to-server step before the user can be redirected (Twitter's
// OAuth 1.0a request token) additionally implement Preflighter, and the
// login handler lets them take over the redirect.
package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/authgate/internal/session"
)

// Method is the public listing entry for a login method.
type Method struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Icon string `json:"icon"`
}

// Provider adapts one identity service to the broker's login flow.
type Provider interface {
	// ID is the stable method identifier used in login URLs and
	// allowed-method lists.
	ID() string

	// Name is the human-readable method name.
	Name() string

	// Icon is the method's display icon path.
	Icon() string

	// AuthorizeURL builds the provider's authorization page URL for a
	// fresh login attempt.
	AuthorizeURL(state, redirectURI string, scopes []session.Scope) (string, error)

	// Callback completes the provider exchange using the callback query
	// parameters and returns the user's claims, already gated by the
	// session's granted scopes.
	Callback(ctx context.Context, query url.Values, sess *session.Session, redirectURI string) (session.User, error)
}

// Preflighter is implemented by providers that must talk to the identity
// service before the user can be redirected. Preflight returns the
// location to send the user to instead of AuthorizeURL.
type Preflighter interface {
	Preflight(ctx context.Context, sess *session.Session, redirectURI string) (string, error)
}

// Registry is the static set of configured providers.
type Registry struct {
	order []Provider
	byID  map[string]Provider
}

// NewRegistry builds a registry from the given providers, preserving order
// for the methods listing.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byID: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, dup := r.byID[p.ID()]; dup {
			continue
		}
		r.order = append(r.order, p)
		r.byID[p.ID()] = p
	}
	return r
}

// Get returns the provider with the given method id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Has reports whether a method id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Methods lists the registered providers for the public methods endpoint.
func (r *Registry) Methods() []Method {
	out := make([]Method, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, Method{Name: p.Name(), ID: p.ID(), Icon: p.Icon()})
	}
	return out
}

// defaultHTTPClient bounds every outbound provider call.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
