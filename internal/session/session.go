package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// Session is the request-scoped handle on one stored session record.
//
// Every mutation is written through to the [Store] immediately and slides the
// record's expiry forward. Two requests writing the same session concurrently
// resolve as last-write-wins.
type Session struct {
	mu        sync.Mutex
	record    *models.Session
	store     Store
	ttl       time.Duration
	fresh     bool
	destroyed bool
}

func newSession(record *models.Session, store Store, ttl time.Duration, fresh bool) *Session {
	return &Session{record: record, store: store, ttl: ttl, fresh: fresh}
}

// ID returns the session identifier carried in the cookie.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.ID
}

// IsNew reports whether the session was created for this request.
func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh
}

// Token returns a copy of the stored token record, or nil.
func (s *Session) Token() *models.TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record.Token == nil {
		return nil
	}
	t := *s.record.Token
	return &t
}

// SetToken replaces the stored token record.
func (s *Session) SetToken(ctx context.Context, token *models.TokenRecord) error {
	if err := token.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidToken, err)
	}

	t := *token
	return s.update(ctx, func(r *models.Session) { r.Token = &t })
}

// ClearToken removes the token record but keeps the session.
func (s *Session) ClearToken(ctx context.Context) error {
	return s.update(ctx, func(r *models.Session) { r.Token = nil })
}

// SetPendingLogin remembers the OAuth state and PKCE verifier until the callback.
func (s *Session) SetPendingLogin(ctx context.Context, state, verifier string) error {
	return s.update(ctx, func(r *models.Session) {
		r.OAuthState = state
		r.Verifier = verifier
	})
}

// TakePendingLogin returns the pending OAuth state and verifier and clears them.
func (s *Session) TakePendingLogin(ctx context.Context) (string, string, error) {
	s.mu.Lock()
	state, verifier := s.record.OAuthState, s.record.Verifier
	s.mu.Unlock()

	if state == "" && verifier == "" {
		return "", "", nil
	}

	err := s.update(ctx, func(r *models.Session) {
		r.OAuthState = ""
		r.Verifier = ""
	})
	return state, verifier, err
}

// Destroy deletes the session from the store. Later writes are rejected.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, s.record.ID); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreFailed, err)
	}
	s.record.Token = nil
	s.destroyed = true
	return nil
}

// Destroyed reports whether [Session.Destroy] was called.
func (s *Session) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// Snapshot returns a copy of the underlying record.
func (s *Session) Snapshot() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}

func (s *Session) update(ctx context.Context, fn func(*models.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return shared.ErrSessionNotFound
	}

	next := s.record.Clone()
	fn(next)
	next.Touch(s.ttl)

	if err := s.store.Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreFailed, err)
	}

	s.record = next
	s.fresh = false
	return nil
}
