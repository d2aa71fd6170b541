// Package httpapi implements the broker's HTTP endpoints: the relying-party
// facing authorization and token endpoints, the login/callback pair in the
// middle of the provider exchange, and the single-use claims endpoint.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/provider"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/pkg/dispatch"
)

// Config holds the HTTP surface settings.
type Config struct {
	// Public base URL of the broker; the provider callback URL is derived
	// from it.
	BaseURL string `env:"REDIRECT_BASE" envDefault:"http://localhost:7080"`

	// Origin allowed on the endpoints that are not fully public.
	SiteOrigin string `env:"CORS_ORIGIN" envDefault:"testausserveri.fi"`
}

// Handler carries the endpoint dependencies.
type Handler struct {
	sessions    store.SessionStore
	apps        store.ApplicationStore
	registry    *provider.Registry
	callbackURL string
	origin      string
	log         *slog.Logger
}

// New creates the endpoint handler set.
func New(sessions store.SessionStore, apps store.ApplicationStore, registry *provider.Registry, cfg Config, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		sessions:    sessions,
		apps:        apps,
		registry:    registry,
		callbackURL: cfg.BaseURL + "/api/v1/callback",
		origin:      cfg.SiteOrigin,
		log:         log,
	}
}

// Register mounts every endpoint on the dispatcher. The v1 route is a
// single prefix pattern whose handler passes on unknown subpaths, so later
// registrations could still claim them.
func (h *Handler) Register(r *dispatch.Router) {
	r.Handle(`/api/v1/.{0,256}`, h.v1)
	r.Handle(`/api/v2/authenticate`, h.v2Authenticate)
	r.Handle(`/api/v2/request_token`, h.v2RequestToken)
	r.Handle(`/api/v3/authenticate`, h.v3Token)
	r.Handle(`/api/?`, h.apiIndex)
}

// v1 dispatches within the /api/v1/ prefix.
func (h *Handler) v1(w http.ResponseWriter, r *http.Request) dispatch.Result {
	switch r.Method {
	case http.MethodPost:
		switch r.URL.Path {
		case "/api/v1/token":
			h.token(w, r)
			return dispatch.Handled
		case "/api/v1/request_token":
			h.requestToken(w, r)
			return dispatch.Handled
		}
	case http.MethodGet:
		switch r.URL.Path {
		case "/api/v1/application":
			h.application(w, r)
			return dispatch.Handled
		case "/api/v1/methods":
			h.methods(w, r)
			return dispatch.Handled
		case "/api/v1/authenticate":
			h.authenticate(w, r)
			return dispatch.Handled
		case "/api/v1/login":
			h.login(w, r)
			return dispatch.Handled
		case "/api/v1/callback":
			h.callback(w, r)
			return dispatch.Handled
		case "/api/v1/me":
			h.me(w, r)
			return dispatch.Handled
		}
	case http.MethodOptions:
		if r.URL.Path == "/api/v1/me" {
			h.corsPreflight(w)
			return dispatch.Handled
		}
	}
	return dispatch.Pass
}

// apiIndex lists the available endpoints.
func (h *Handler) apiIndex(w http.ResponseWriter, r *http.Request) dispatch.Result {
	writeJSON(w, http.StatusOK, h.origin, map[string]any{
		"latest": "v2-partial, v1",
		"available": []string{
			"GET /api/v1/authenticate",
			"POST /api/v1/token",
			"GET /api/v1/application",
			"GET /api/v1/methods",
			"GET /api/v1/login",
			"GET /api/v1/callback",
			"GET /api/v1/me",
			"POST /api/v2/request_token",
			"POST /api/v2/authenticate",
		},
	})
	return dispatch.Handled
}

// corsPreflight answers the browser preflight for the token-bearing
// endpoints.
func (h *Handler) corsPreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", corsAny)
	w.Header().Set("Access-Control-Allow-Headers", "authorization")
	w.WriteHeader(http.StatusOK)
}
