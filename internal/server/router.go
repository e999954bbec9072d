package server

import (
	"net/http"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing, so patterns carry their method and path wildcards.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	auth        Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance. auth guards every route not marked public; nil disables it.
func NewBasicRouter(auth Middleware) *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		auth:        auth,
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware only wraps routes registered after the call.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for a method pattern such as "GET /healthz".
//
// The handler is wrapped with all registered middleware.
func (r *BasicRouter) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, r.Apply(handler))
}

// Handler registers every [Route] of a [Handler] implementation.
//
// Private routes run behind the router's auth middleware, then their own middleware.
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		var h http.Handler = route.Handler
		for i := len(route.Middleware) - 1; i >= 0; i-- {
			h = route.Middleware[i](h)
		}
		if !route.Public && r.auth != nil {
			h = r.auth(h)
		}
		r.Handle(route.Pattern, h)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
//
// Unmatched requests get a JSON 404 or 405 instead of the mux's plain text.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if _, pattern := r.mux.Handler(req); pattern == "" {
		r.notFound(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

func (r *BasicRouter) notFound(w http.ResponseWriter, req *http.Request) {
	rec := &statusRecorder{ResponseWriter: discardWriter{header: http.Header{}}}
	r.mux.ServeHTTP(rec, req)

	status := http.StatusNotFound
	if rec.status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", rec.Header().Get("Allow"))
		status = http.StatusMethodNotAllowed
	}
	_ = WriteJSON(w, status, ErrorBody{Error: http.StatusText(status)})
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order (last added wraps first).
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		wrapped = r.middlewares[i](wrapped)
	}

	return wrapped
}

// discardWriter lets the router probe the mux for 404 and 405 without writing a response.
type discardWriter struct {
	header http.Header
}

func (d discardWriter) Header() http.Header         { return d.header }
func (d discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (d discardWriter) WriteHeader(int)             {}
