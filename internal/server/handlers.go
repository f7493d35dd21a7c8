package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/auth"
	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/profile"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/session"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/web"
)

// PageHandler serves the static pages.
type PageHandler struct {
	pages  *web.Renderer
	logger *log.Logger
}

// Home renders the log in or view profile call to action.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	data := web.HomePage{LoggedIn: ok && sess.Token() != nil}

	if err := h.pages.RenderHTTP(w, http.StatusOK, web.PageHome, data); err != nil {
		h.logger.Error("failed to render home page", "error", err)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the server, and the session store when it can be
// pinged, are up.
func Health(store session.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := store.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// AuthHandler runs the login redirect, the OAuth callback and logout.
// Implements the [Handler] interface for registration with a [Router].
type AuthHandler struct {
	auth     *auth.Manager
	sessions *session.Manager
	pages    *web.Renderer
	logger   *log.Logger
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"/login", "/callback", "/logout"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := session.FromContext(r.Context())
	if !ok {
		renderError(w, h.pages, h.logger, http.StatusInternalServerError, "Session missing", "No session is attached to this request.")
		return
	}

	switch r.URL.Path {
	case "/login":
		h.login(w, r, sess)
	case "/callback":
		h.callback(w, r, sess)
	case "/logout":
		h.logout(w, r, sess)
	default:
		http.NotFound(w, r)
	}
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	url, err := h.auth.BeginLogin(r.Context(), sess)
	if err != nil {
		h.logger.Error("failed to begin login", "error", err)
		renderError(w, h.pages, h.logger, http.StatusServiceUnavailable, "Login unavailable", "Could not start the login. Try again shortly.")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

// callback validates state, exchanges the code and stores the token.
//
// A denied authorization, a state mismatch and a rejected code are all 400s and
// leave the session without a token.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		msg := errParam
		if desc := q.Get("error_description"); desc != "" {
			msg = fmt.Sprintf("%s: %s", errParam, desc)
		}
		h.logger.Warn("authorization denied", "error", msg)
		renderError(w, h.pages, h.logger, http.StatusBadRequest, "Authorization failed", msg)
		return
	}

	err := h.auth.CompleteLogin(r.Context(), sess, q.Get("state"), q.Get("code"))
	switch {
	case err == nil:
		http.Redirect(w, r, "/profile", http.StatusFound)
	case errors.Is(err, shared.ErrInvalidState):
		h.logger.Warn("callback state mismatch")
		renderError(w, h.pages, h.logger, http.StatusBadRequest, "Invalid state", "The login request could not be verified. Start again from the home page.")
	case errors.Is(err, shared.ErrAuthExchange):
		h.logger.Warn("code exchange failed", "error", err)
		renderError(w, h.pages, h.logger, http.StatusBadRequest, "Authorization failed", "Spotify rejected the authorization code.")
	default:
		h.logger.Error("failed to complete login", "error", err)
		renderError(w, h.pages, h.logger, http.StatusServiceUnavailable, "Login unavailable", "Could not save the login. Try again shortly.")
	}
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Destroy(r.Context()); err != nil {
		h.logger.Error("failed to destroy session", "error", err)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// ProfileHandler renders the profile page and its downloads.
type ProfileHandler struct {
	auth     *auth.Manager
	profiles *profile.Aggregator
	pages    *web.Renderer
	logger   *log.Logger
}

// Routes returns the HTTP routes this handler serves.
func (h *ProfileHandler) Routes() []string {
	return []string{"/profile", "/profile/export"}
}

func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch r.URL.Path {
	case "/profile":
		h.page(w, r)
	case "/profile/export":
		h.export(w, r)
	default:
		http.NotFound(w, r)
	}
}

// Snapshot builds the snapshot for the request's session.
//
// Returns [shared.ErrNotAuthenticated] when there is no usable token, including
// when the API rejects the token, in which case it is cleared from the session.
// The "range" query parameter selects the time range.
func (h *ProfileHandler) Snapshot(r *http.Request) (*models.ProfileSnapshot, error) {
	ctx := r.Context()

	sess, ok := session.FromContext(ctx)
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}

	api, ok := h.auth.Client(ctx, sess)
	if !ok {
		return nil, shared.ErrNotAuthenticated
	}

	snapshot, err := h.profiles.ForTimeRange(r.URL.Query().Get("range")).Aggregate(ctx, api)
	if err != nil {
		var fault *services.APIFault
		if errors.As(err, &fault) && fault.Unauthorized() {
			if cerr := sess.ClearToken(ctx); cerr != nil {
				h.logger.Error("failed to clear rejected token", "error", cerr)
			}
			return nil, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
		}
		return nil, err
	}

	return snapshot, nil
}

func (h *ProfileHandler) page(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Snapshot(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.pages.RenderHTTP(w, http.StatusOK, web.PageProfile, web.ProfilePage{Snapshot: snapshot}); err != nil {
		h.logger.Error("failed to render profile page", "error", err)
	}
}

func (h *ProfileHandler) export(w http.ResponseWriter, r *http.Request) {
	format, err := formatter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		renderError(w, h.pages, h.logger, http.StatusBadRequest, "Unknown format", err.Error())
		return
	}

	snapshot, err := h.Snapshot(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	rendered, err := formatter.Export(snapshot, format)
	if err != nil {
		h.logger.Error("failed to export profile", "format", format, "error", err)
		renderError(w, h.pages, h.logger, http.StatusInternalServerError, "Export failed", "The profile could not be exported.")
		return
	}

	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.Filename(snapshot, rendered.Extension)))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered.Data)
}

// fail redirects unauthenticated requests to /login and renders upstream faults.
func (h *ProfileHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	status, msg := faultStatus(err)
	h.logger.Warn("profile request failed", "status", status, "error", err)
	setRetryAfter(w, err)
	renderError(w, h.pages, h.logger, status, "Spotify request failed", msg)
}

// APIHandler serves the profile snapshot as JSON, behind CORS.
type APIHandler struct {
	profiles *ProfileHandler
	cors     Middleware
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{"/api/profile"}
}

func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.cors(http.HandlerFunc(h.profile)).ServeHTTP(w, r)
}

func (h *APIHandler) profile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snapshot, err := h.profiles.Snapshot(r)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snapshot)
	case errors.Is(err, shared.ErrNotAuthenticated):
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
	default:
		status, msg := faultStatus(err)
		h.profiles.logger.Warn("profile request failed", "status", status, "error", err)
		setRetryAfter(w, err)
		writeJSONError(w, status, msg)
	}
}
