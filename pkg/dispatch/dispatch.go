// Package dispatch routes HTTP requests through an ordered table of
// regular-expression path matchers. Unlike a conventional mux, every route
// whose pattern matches the path is offered the request in registration
// order until one reports it handled; a handler that wants the next match to
// run returns Pass instead of calling an implicit continuation.
//
// A per-request timer forces a 408 if no handler has written a response in
// time. The response writer is guarded by a single-write latch so the timer
// and a slow handler can never both write: the first writer wins and every
// later write is dropped.
package dispatch

import (
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// Result reports whether a handler consumed the request.
type Result int

const (
	// Pass declines the request: dispatch continues with the next matching
	// route.
	Pass Result = iota

	// Handled stops dispatch; no further routes run.
	Handled
)

// Handler handles a request and reports whether it consumed it. A handler
// returning Handled without writing anything yields the generic 500.
type Handler func(w http.ResponseWriter, r *http.Request) Result

type route struct {
	pattern *regexp.Regexp
	handler Handler
}

// Router dispatches requests across its route table. Routes are registered
// at startup and never mutated afterwards, so ServeHTTP needs no locking.
type Router struct {
	routes  []route
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Router with a default 30 second response timeout.
func New(opts ...Option) *Router {
	r := &Router{
		timeout: 30 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers a handler for every path matching pattern. Patterns are
// anchored to the full path. Registration order is evaluation order. Panics
// on an invalid pattern, as the route table is static startup configuration.
func (r *Router) Handle(pattern string, h Handler) {
	r.routes = append(r.routes, route{
		pattern: regexp.MustCompile("^(?:" + pattern + ")$"),
		handler: h,
	})
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	lw := newLatchWriter(w)

	timer := time.AfterFunc(r.timeout, func() {
		if lw.tryLatch() {
			lw.writeLatched(http.StatusRequestTimeout, "Response timed out.")
			r.log.WarnContext(req.Context(), "response timed out",
				"path", req.URL.Path, "timeout", r.timeout)
		}
	})
	defer timer.Stop()

	matched := false
	for _, rt := range r.routes {
		if !rt.pattern.MatchString(req.URL.Path) {
			continue
		}
		matched = true
		if r.serve(rt, lw, req) == Handled {
			return
		}
	}

	if !matched {
		if lw.tryLatch() {
			lw.writeLatched(http.StatusNotFound, "Not found.")
		}
		return
	}
	// Every matching handler passed.
	if lw.tryLatch() {
		lw.writeLatched(http.StatusInternalServerError, "Request not handled.")
	}
}

// serve runs a single route, converting a panic into a 500.
func (r *Router) serve(rt route, lw *latchWriter, req *http.Request) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.ErrorContext(req.Context(), "handler panicked",
				"path", req.URL.Path, "panic", rec)
			if lw.tryLatch() {
				lw.writeLatched(http.StatusInternalServerError, "Internal server error.")
			}
			res = Handled
		}
	}()
	return rt.handler(lw, req)
}
