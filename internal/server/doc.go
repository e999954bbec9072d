// Package server exposes the royalty analytics service over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] registers
// method patterns ("GET /api/streams/total") on an [http.ServeMux] and wraps every route in the
// shared middleware stack, so middleware sees the matched pattern in [http.Request.Pattern].
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// # Handlers
//
// Handler groups implement [Handler] and return their [Route] table. Routes are authenticated with
// the artist's API token unless marked public, and may carry their own middleware such as the
// per-artist upload [RateLimiter].
//
// # Errors
//
// Handlers return errors and [WriteError] maps the sentinels of the shared package onto status codes.
// Every error body has the shape {"error": "..."}.
package server
