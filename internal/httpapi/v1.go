package httpapi

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrymomot/authgate/internal/provider"
	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/internal/store"
	"github.com/dmitrymomot/authgate/pkg/random"
)

const invalidSessionMessage = "Invalid or expired authentication session"

// application serves the public branding metadata for the consent screen.
// Unknown ids yield an empty object rather than an error, so the screen
// can render a neutral state.
func (h *Handler) application(w http.ResponseWriter, r *http.Request) {
	app, err := h.apps.GetByID(r.Context(), r.URL.Query().Get("client_id"))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.handleError(r.Context(), w, corsAny, err)
		return
	}
	if app == nil {
		app = &session.Application{}
	}

	writeJSON(w, http.StatusOK, corsAny, struct {
		ID       string `json:"id,omitempty"`
		Name     string `json:"name,omitempty"`
		Icon     string `json:"icon,omitempty"`
		Homepage string `json:"homepage,omitempty"`
	}{app.ID, app.Name, app.Icon, app.Homepage})
}

// methods lists the configured login methods.
func (h *Handler) methods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, corsAny, h.registry.Methods())
}

// authenticate starts an authentication session. With an oauth_token it
// resumes a pre-registered session; otherwise it validates the relying
// party's parameters and creates a fresh one. Either way the user lands on
// the login picker.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if oauthToken := q.Get("oauth_token"); oauthToken != "" {
		sess, err := h.sessions.Get(ctx, store.KeyOAuthToken, oauthToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, corsAny, invalidSessionMessage)
				return
			}
			h.handleError(ctx, w, corsAny, err)
			return
		}
		redirectHTML(w, corsAny, "/app?"+pickerQuery(sess, true))
		return
	}

	responseType := q.Get("response_type")
	if responseType != session.ResponseTypeCode && responseType != session.ResponseTypeToken {
		writeError(w, http.StatusBadRequest, corsAny, `Only accepted response_type is "code"`)
		return
	}
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
	// A provider token delivered through a URL fragment would be exposed
	// to the page and its scripts, so the combination is refused.
	if responseType == session.ResponseTypeToken && hasScope(scopes, session.ScopeToken) {
		writeError(w, http.StatusUnauthorized, corsAny, `"token" scope cannot be used with "response_type" of "token"`)
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

	sess := session.New(app.ID, redirectURL, q.Get("state"), responseType, scopes, nil, false)
	if err := h.sessions.Create(ctx, sess); err != nil {
		h.handleError(ctx, w, corsAny, err)
		return
	}
	redirectOrHeader(w, r, corsAny, "/app?"+pickerQuery(sess, false))
}

// login transitions the session to pending and redirects the user to the
// chosen provider. Preflight providers take over the response instead.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	redirectID := q.Get("state")
	if redirectID == "" {
		writeError(w, http.StatusBadRequest, h.origin, `"state" is required`)
		return
	}
	methodID := q.Get("method")
	if methodID == "" {
		writeError(w, http.StatusBadRequest, h.origin, `"method" is required`)
		return
	}
	prov, ok := h.registry.Get(methodID)
	if !ok {
		writeError(w, http.StatusBadRequest, h.origin, `"method" is invalid`)
		return
	}

	// The allowed-method check needs the record before the transition;
	// the transition itself re-verifies the status atomically.
	current, err := h.sessions.Get(ctx, store.KeyRedirectID, redirectID)
	if err != nil || current.Status != session.StatusCreated {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.handleError(ctx, w, h.origin, err)
			return
		}
		writeError(w, http.StatusUnauthorized, h.origin, invalidSessionMessage)
		return
	}
	if !current.AllowsMethod(methodID) {
		writeError(w, http.StatusUnauthorized, h.origin, "Method not accepted")
		return
	}

	sess, err := h.sessions.Transition(ctx, store.KeyRedirectID, redirectID,
		session.StatusCreated, session.StatusPending, func(s *session.Session) {
			s.Platform = methodID
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusUnauthorized, h.origin, invalidSessionMessage)
			return
		}
		h.handleError(ctx, w, h.origin, err)
		return
	}

	var location string
	if pf, ok := prov.(provider.Preflighter); ok {
		location, err = pf.Preflight(ctx, sess, h.callbackURL)
	} else {
		location, err = prov.AuthorizeURL(sess.InternalState, h.callbackURL, sess.Scopes)
	}
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}
	redirectHTML(w, h.origin, location)
}

// callback finishes the provider exchange. The completed transition mints
// the authorization code before the provider round trip, so a second
// callback for the same session loses the status race and is rejected.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	internalState := r.URL.Query().Get("state")
	if internalState == "" {
		writeError(w, http.StatusBadRequest, h.origin, `"state" is required`)
		return
	}

	sess, err := h.sessions.Transition(ctx, store.KeyInternalState, internalState,
		session.StatusPending, session.StatusCompleted, func(s *session.Session) {
			s.Code = random.Hex(16)
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusUnauthorized, h.origin, invalidSessionMessage)
			return
		}
		h.handleError(ctx, w, h.origin, err)
		return
	}

	prov, ok := h.registry.Get(sess.Platform)
	if !ok {
		h.handleError(ctx, w, h.origin, apiError(http.StatusBadRequest, "Unknown callback method"))
		return
	}

	user, err := prov.Callback(ctx, r.URL.Query(), sess, h.callbackURL)
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}

	sess, err = h.sessions.Transition(ctx, store.KeyInternalState, internalState,
		session.StatusCompleted, session.StatusCompleted, func(s *session.Session) {
			s.User = user
		})
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}

	h.completeRedirect(w, r, sess)
}

// completeRedirect sends the user back to the relying party with either
// the authorization code or, for the implicit flow, a freshly minted token.
func (h *Handler) completeRedirect(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ctx := r.Context()

	if sess.Status != session.StatusCompleted || sess.RedirectURL == "" || sess.Code == "" {
		h.handleError(ctx, w, h.origin, fmt.Errorf("httpapi: session %q not redirectable", sess.InternalState))
		return
	}
	location, err := url.Parse(sess.RedirectURL)
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}

	q := location.Query()
	if sess.ResponseType == session.ResponseTypeToken {
		stored, err := h.sessions.Transition(ctx, store.KeyInternalState, sess.InternalState,
			session.StatusCompleted, session.StatusStored, func(s *session.Session) {
				s.Token = random.Hex(32)
			})
		if err != nil {
			h.handleError(ctx, w, h.origin, err)
			return
		}
		q.Set("token", stored.Token)
		q.Set("state", stored.State)
		q.Set("token_type", "Bearer")
		q.Set("expiry", strconv.FormatInt(session.TTL(session.StatusStored).Milliseconds(), 10))
	} else {
		q.Set("code", sess.Code)
		q.Set("state", sess.State)
	}
	location.RawQuery = q.Encode()
	redirectHTML(w, h.origin, location.String())
}

// token exchanges an authorization code for a single-use bearer token.
func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !isFormEncoded(r) {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid content-type header")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid request body")
		return
	}

	code := r.PostForm.Get("code")
	clientID := r.PostForm.Get("client_id")
	clientSecret := r.PostForm.Get("client_secret")
	redirectURI := r.PostForm.Get("redirect_uri")
	if clientID == "" || clientSecret == "" || code == "" || redirectURI == "" {
		writeError(w, http.StatusBadRequest, h.origin, "Missing or empty query parameters")
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeError(w, http.StatusBadRequest, h.origin, `"grant_type" must be "authorization_code"`)
		return
	}

	token, err := h.issueToken(r, code, clientID, clientSecret, redirectURI)
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}
	writeJSON(w, http.StatusOK, h.origin, map[string]any{
		"token":  token,
		"expiry": session.TTL(session.StatusStored).Milliseconds(),
	})
}

// issueToken validates the client credentials and atomically consumes the
// authorization code. Shared between the v1 and v3 token endpoints.
func (h *Handler) issueToken(r *http.Request, code, clientID, clientSecret, redirectURI string) (string, error) {
	ctx := r.Context()

	app, err := h.apps.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apiError(http.StatusUnauthorized, "Invalid client credentials")
		}
		return "", err
	}
	if subtle.ConstantTimeCompare([]byte(app.Secret), []byte(clientSecret)) != 1 {
		return "", apiError(http.StatusUnauthorized, "Invalid client credentials")
	}
	if !app.AllowsRedirect(redirectURI) {
		return "", apiError(http.StatusUnauthorized, "Invalid redirect_uri")
	}

	sess, err := h.sessions.Transition(ctx, store.KeyCode, code,
		session.StatusCompleted, session.StatusStored, func(s *session.Session) {
			s.Token = random.Hex(32)
		})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apiError(http.StatusNotFound, "Invalid or expired code")
		}
		if errors.Is(err, store.ErrConflict) {
			return "", apiError(http.StatusNotFound, invalidSessionMessage)
		}
		return "", err
	}
	return sess.Token, nil
}

// requestToken creates a pre-registered session on behalf of a backend
// holding the application secret.
func (h *Handler) requestToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		writeError(w, http.StatusBadRequest, h.origin, "Missing or invalid authorization header")
		return
	}
	if !strings.HasPrefix(authorization, "Bearer") {
		writeError(w, http.StatusBadRequest, h.origin, `Authorization must be type of "Bearer"`)
		return
	}
	app, err := h.apps.GetBySecret(ctx, strings.TrimPrefix(authorization, "Bearer "))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, h.origin, "Invalid token")
			return
		}
		h.handleError(ctx, w, h.origin, err)
		return
	}

	if !isFormEncoded(r) {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid content-type header")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid request body")
		return
	}

	redirectURL := r.PostForm.Get("redirect_uri")
	if !app.AllowsRedirect(redirectURL) {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid redirect_uri")
		return
	}
	scopes, err := session.ParseScopes(r.PostForm.Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, h.origin, scopeErrorMessage(r.PostForm.Get("scope")))
		return
	}
	methods := splitList(r.PostForm.Get("methods"))
	if len(methods) == 0 {
		writeError(w, http.StatusBadRequest, h.origin, "At least one method required")
		return
	}
	for _, id := range methods {
		if !h.registry.Has(id) {
			writeError(w, http.StatusBadRequest, h.origin, "One or more provided method IDs are invalid")
			return
		}
	}

	sess := session.New(app.ID, redirectURL, r.PostForm.Get("state"), session.ResponseTypeCode, scopes, methods, true)
	if err := h.sessions.Create(ctx, sess); err != nil {
		h.handleError(ctx, w, h.origin, err)
		return
	}
	writeJSON(w, http.StatusOK, h.origin, map[string]string{"oauth_token": sess.OAuthToken})
}

// me returns the authenticated user's claims and consumes the token. The
// delete is the single-use gate: of two concurrent calls only one finds
// the record still present.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		writeError(w, http.StatusBadRequest, corsAny, "Authorization header empty or not present")
		return
	}
	if !strings.HasPrefix(authorization, "Bearer ") {
		writeError(w, http.StatusBadRequest, corsAny, `Authorization must be type of "Bearer"`)
		return
	}

	sess, err := h.sessions.Get(ctx, store.KeyToken, strings.TrimPrefix(authorization, "Bearer "))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, corsAny, "Invalid token")
			return
		}
		h.handleError(ctx, w, corsAny, err)
		return
	}
	if sess.Status != session.StatusStored {
		writeError(w, http.StatusUnauthorized, corsAny, invalidSessionMessage)
		return
	}

	if err := h.sessions.Delete(ctx, sess.InternalState); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, corsAny, "Invalid token")
			return
		}
		h.handleError(ctx, w, corsAny, err)
		return
	}

	platformName := ""
	if prov, ok := h.registry.Get(sess.Platform); ok {
		platformName = prov.Name()
	}

	writeJSON(w, http.StatusOK, corsAny, struct {
		session.User
		Scopes        []string `json:"scopes"`
		ApplicationID string   `json:"applicationId"`
		Platform      struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"platform"`
	}{
		User:          sess.User.Filter(sess.Scopes),
		Scopes:        session.ScopeStrings(sess.Scopes),
		ApplicationID: sess.ApplicationID,
		Platform: struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}{sess.Platform, platformName},
	})
}

// pickerQuery builds the login picker URL query for a session. The method
// allow-list travels along only for pre-registered sessions.
func pickerQuery(sess *session.Session, withMethods bool) string {
	q := url.Values{}
	q.Set("scopes", strings.Join(session.ScopeStrings(sess.Scopes), ","))
	q.Set("client_id", sess.ApplicationID)
	q.Set("state", sess.RedirectID)
	q.Set("redirect_uri", sess.RedirectURL)
	if withMethods {
		q.Set("methods", strings.Join(sess.AllowedMethods, ","))
	}
	return q.Encode()
}

func isFormEncoded(r *http.Request) bool {
	ct, _, _ := strings.Cut(r.Header.Get("Content-Type"), ";")
	return strings.TrimSpace(ct) == "application/x-www-form-urlencoded"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hasScope(scopes []session.Scope, want session.Scope) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}

func scopeErrorMessage(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "At least one scope required"
	}
	return "One or more provided scopes are invalid"
}
