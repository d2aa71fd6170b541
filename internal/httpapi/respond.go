package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrymomot/authgate/internal/provider"
)

// corsAny marks a response as available to any origin.
const corsAny = "*"

// Error is a client-caused failure with a fixed status and message.
// The message is rendered verbatim in the error body.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// apiError is a convenience constructor.
func apiError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// writeJSON renders v as JSON. An empty origin omits the CORS header.
func writeJSON(w http.ResponseWriter, status int, origin string, v any) {
	w.Header().Set("Content-Type", "application/json")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the uniform {"error": message} body.
func writeError(w http.ResponseWriter, status int, origin, message string) {
	writeJSON(w, status, origin, map[string]string{"error": message})
}

// handleError maps an error to the client. Client-caused errors surface
// their message; everything else logs the detail and yields an opaque 500.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, origin string, err error) {
	var ue *provider.UserError
	if errors.As(err, &ue) {
		h.log.InfoContext(ctx, "provider exchange rejected", "error", err)
		writeError(w, http.StatusBadRequest, origin, ue.Message())
		return
	}
	var ae *Error
	if errors.As(err, &ae) {
		writeError(w, ae.Status, origin, ae.Message)
		return
	}
	h.log.ErrorContext(ctx, "request failed", "error", err)
	writeError(w, http.StatusInternalServerError, origin, "Unexpected internal server error")
}

// redirectHTML sends a 307 with the click-through fallback body for user
// agents that do not follow redirects automatically.
func redirectHTML(w http.ResponseWriter, origin, location string) {
	w.Header().Set("Content-Type", "text/html")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusTemporaryRedirect)
	_, _ = fmt.Fprint(w, redirectBody(location))
}

// redirectOrHeader behaves like redirectHTML unless the request opted into
// noRedirect mode, in which case the location is delivered as a header on a
// 200 and the caller is expected to navigate itself.
func redirectOrHeader(w http.ResponseWriter, r *http.Request, origin, location string) {
	if !r.URL.Query().Has("noRedirect") {
		redirectHTML(w, origin, location)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("X-Location", location)
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, redirectBody(location))
}

func redirectBody(location string) string {
	return fmt.Sprintf(`<header><title>Redirecting...</title></header>
<body>If you are not redirected, click <a href=%q>here</a>.<br><i>(%s)</i></body>`, location, location)
}
