// package session provides cookie-identified sessions persisted through a pluggable [Store]
package session

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// DefaultCookieName is used when [Options.CookieName] is empty.
const DefaultCookieName = "spotstats_session"

type contextKey struct{}

// Options configures the session cookie.
type Options struct {
	CookieName string
	Secure     bool
	TTL        time.Duration
}

// Manager loads and creates sessions and owns the session cookie.
type Manager struct {
	store  Store
	opts   Options
	logger *log.Logger
	newID  func() string
}

// NewManager creates a [Manager] backed by store.
func NewManager(store Store, opts Options, logger *log.Logger) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Manager{
		store:  store,
		opts:   opts,
		logger: shared.WithLogger(logger, "component", "session"),
		newID:  shared.GenerateID,
	}
}

// Store returns the backing [Store].
func (m *Manager) Store() Store {
	return m.store
}

// Load returns the session named by the request cookie, or a new unsaved one
// when there is no cookie or the stored record is gone.
//
// Only store failures other than [shared.ErrSessionNotFound] are returned.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	if c, err := r.Cookie(m.opts.CookieName); err == nil && c.Value != "" {
		record, err := m.store.Load(r.Context(), c.Value)
		switch {
		case err == nil:
			return newSession(record, m.store, m.opts.TTL, false), nil
		case !errors.Is(err, shared.ErrSessionNotFound):
			return nil, err
		}
	}

	record := models.NewSession(m.newID(), m.opts.TTL)
	return newSession(record, m.store, m.opts.TTL, true), nil
}

// Open loads a stored session by ID, for use outside of a request.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	record, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return newSession(record, m.store, m.opts.TTL, false), nil
}

// Middleware attaches the request's [Session] to its context and refreshes the cookie.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.Load(r)
		if err != nil {
			m.logger.Error("failed to load session", "error", err)
			http.Error(w, "Session store unavailable", http.StatusServiceUnavailable)
			return
		}

		m.SetCookie(w, sess.ID())
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// SetCookie writes the session cookie for id.
func (m *Manager) SetCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.opts.TTL.Seconds()),
	})
}

// ClearCookie expires the session cookie in the browser, replacing any session
// cookie already set on w.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	prefix := m.opts.CookieName + "="
	h := w.Header()
	h["Set-Cookie"] = slices.DeleteFunc(h["Set-Cookie"], func(v string) bool {
		return strings.HasPrefix(v, prefix)
	})

	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Prune deletes expired sessions from the store.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("pruned expired sessions", "count", n)
	}
	return n, nil
}

// Janitor prunes expired sessions every interval until ctx is done.
func (m *Manager) Janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Prune(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("session prune failed", "error", err)
			}
		}
	}
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session attached by [Manager.Middleware].
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}
