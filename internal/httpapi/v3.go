package httpapi

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/authgate/internal/session"
	"github.com/dmitrymomot/authgate/pkg/dispatch"
)

// v3Token is the token exchange under /api/v3/authenticate. It differs
// from v1 in reporting which parameters are missing and in naming the
// token access_token in the response.
func (h *Handler) v3Token(w http.ResponseWriter, r *http.Request) dispatch.Result {
	ctx := r.Context()

	switch r.Method {
	case http.MethodOptions:
		h.corsPreflight(w)
		return dispatch.Handled
	case http.MethodPost:
	default:
		return dispatch.Pass
	}

	if !isFormEncoded(r) {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid content-type header")
		return dispatch.Handled
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, h.origin, "Invalid form body")
		return dispatch.Handled
	}

	var missing []string
	for _, key := range []string{"code", "grant_type", "redirect_uri", "client_id", "client_secret"} {
		if !r.PostForm.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusBadRequest, h.origin, "Missing or empty query parameter(s): "+strings.Join(missing, ","))
		return dispatch.Handled
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeError(w, http.StatusBadRequest, h.origin, `"grant_type" must be "authorization_code"`)
		return dispatch.Handled
	}

	token, err := h.issueToken(r,
		r.PostForm.Get("code"),
		r.PostForm.Get("client_id"),
		r.PostForm.Get("client_secret"),
		r.PostForm.Get("redirect_uri"))
	if err != nil {
		h.handleError(ctx, w, h.origin, err)
		return dispatch.Handled
	}
	writeJSON(w, http.StatusOK, h.origin, map[string]any{
		"access_token": token,
		"expiry":       session.TTL(session.StatusStored).Milliseconds(),
	})
	return dispatch.Handled
}
