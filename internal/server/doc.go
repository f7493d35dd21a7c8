// Package server provides HTTP routing, middleware and handlers for the spotstats web front end.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Routes
//
// [New] wires the application routes:
//
//	GET /                 home page
//	GET /healthz          {"status":"ok"}, 503 when the session store is down
//	GET /login            store state + PKCE verifier, 302 to Spotify
//	GET /callback         validate state, exchange code, 302 to /profile
//	GET /logout           delete the session, expire the cookie, 302 to /
//	GET /profile          profile page; 302 to /login without a usable token
//	GET /profile/export   ?format=text|markdown|csv|json download
//	GET /api/profile      profile snapshot as JSON, behind CORS
//
// Upstream faults keep their status when it is 400 or above and become 502 otherwise.
// A Spotify timeout is a 504. An API 401 clears the stored token and sends the user back
// through /login.
//
// # Middleware
//
// Every route runs through [Recover], [Logging], an optional [Timeout] and the session
// middleware, in that order. [CORS] wraps only the JSON API.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
