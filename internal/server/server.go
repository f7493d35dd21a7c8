package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/profile"
	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/web"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, sessions, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the web front end.
// Implementations handle specific endpoints (auth, profile pages, JSON API).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Auth           *auth.Manager
	Profiles       *profile.Aggregator
	Sessions       *session.Manager
	Pages          *web.Renderer
	Logger         *log.Logger
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// New builds the application router.
func New(deps Deps) (*BasicRouter, error) {
	if deps.Auth == nil || deps.Profiles == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("%w: auth, profiles and sessions are required", shared.ErrInvalidArgument)
	}
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	if deps.Pages == nil {
		pages, err := web.NewRenderer()
		if err != nil {
			return nil, err
		}
		deps.Pages = pages
	}

	logger := shared.WithLogger(deps.Logger, "component", "http")

	r := NewBasicRouter()
	r.Use(Recover(logger), Logging(logger))
	if deps.RequestTimeout > 0 {
		r.Use(Timeout(deps.RequestTimeout))
	}
	r.Use(deps.Sessions.Middleware)

	pages := &PageHandler{pages: deps.Pages, logger: logger}
	r.Handle(http.MethodGet, "/{$}", http.HandlerFunc(pages.Home))
	r.Handle(http.MethodGet, "/healthz", Health(deps.Sessions.Store()))

	r.Handler(&AuthHandler{
		auth:     deps.Auth,
		sessions: deps.Sessions,
		pages:    deps.Pages,
		logger:   logger,
	})

	profiles := &ProfileHandler{
		auth:     deps.Auth,
		profiles: deps.Profiles,
		pages:    deps.Pages,
		logger:   logger,
	}
	r.Handler(profiles)
	r.Handler(&APIHandler{profiles: profiles, cors: CORS(deps.AllowedOrigins)})

	logger.Debug("routes registered", "routes", r.Routes())
	return r, nil
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully.
//
// ready, when non-nil, receives the bound address once the listener is open.
func Run(ctx context.Context, addr string, handler http.Handler, logger *log.Logger, ready func(addr string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", ln.Addr().String())
		errs <- srv.Serve(ln)
	}()

	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
