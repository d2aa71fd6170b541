package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/pkg/dispatch"
)

// v2Authenticate adds the implicit token grant and the noRedirect mode on
// top of the v1 authenticate semantics. Code-flow requests are bounced to
// v1, which owns that grant.
func (h *Handler) v2Authenticate(w http.ResponseWriter, r *http.Request) dispatch.Result {
	ctx := r.Context()
	q := r.URL.Query()

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method not allowed"))
		return dispatch.Handled
	}

	if oauthToken := q.Get("oauth_token"); oauthToken != "" {
		sess, err := h.sessions.Get(ctx, store.KeyOAuthToken, oauthToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, corsAny, invalidSessionMessage)
				return dispatch.Handled
			}
			h.handleError(ctx, w, corsAny, err)
			return dispatch.Handled
		}
		redirectOrHeader(w, r, corsAny, "/app?"+pickerQuery(sess, true))
		return dispatch.Handled
	}

	switch q.Get("response_type") {
	case session.ResponseTypeToken:
		h.implicitAuthenticate(w, r)
	case session.ResponseTypeCode:
		// v1 owns the code grant.
		v1URL := *r.URL
		v1URL.Path = "/api/v1/authenticate"
		w.Header().Set("Location", v1URL.String())
		w.WriteHeader(http.StatusTemporaryRedirect)
	default:
		writeError(w, http.StatusBadRequest, corsAny,
			`Unsupported "response_type". This API expects you to use "token" and unless that is given, the API redirects you to the v1 API, which expects type of "code".`)
	}
	return dispatch.Handled
}

// implicitAuthenticate creates a session for the implicit token grant.
func (h *Handler) implicitAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	scopes, err := session.ParseScopes(q.Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, corsAny, scopeErrorMessage(q.Get("scope")))
		return
	}
	clientID := q.Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, corsAny, `"client_id" is required`)
		return
	}
	redirectURL := q.Get("redirect_uri")
	if redirectURL == "" {
		writeError(w, http.StatusBadRequest, corsAny, `"redirect_uri" is required`)
		return
	}

	app, err := h.apps.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, corsAny, "Invalid client_id")
			return
		}
		h.handleError(ctx, w, corsAny, err)
		return
	}
	if !app.AllowsRedirect(redirectURL) {
		writeError(w, http.StatusBadRequest, corsAny, "Invalid redirect_uri")
		return
	}

	sess := session.New(app.ID, redirectURL, q.Get("state"), session.ResponseTypeToken, scopes, nil, false)
	if err := h.sessions.Create(ctx, sess); err != nil {
		h.handleError(ctx, w, corsAny, err)
		return
	}
	redirectOrHeader(w, r, corsAny, "/app?"+pickerQuery(sess, false))
}

// v2RequestToken is the request_token endpoint under its own path with an
// explicit method guard; the behavior matches the v1 handler.
func (h *Handler) v2RequestToken(w http.ResponseWriter, r *http.Request) dispatch.Result {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method not allowed"))
		return dispatch.Handled
	}
	h.requestToken(w, r)
	return dispatch.Handled
}
