// package auth turns a session's stored token into an authenticated music API handle
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
	"golang.org/x/oauth2"
)

// TokenSession is the per-request view of the session's token store.
type TokenSession interface {
	Token() *models.TokenRecord
	SetToken(ctx context.Context, token *models.TokenRecord) error
}

// LoginSession additionally holds the pending login between the redirect and the callback.
type LoginSession interface {
	TokenSession
	SetPendingLogin(ctx context.Context, state, verifier string) error
	// TakePendingLogin returns and clears the pending login.
	TakePendingLogin(ctx context.Context) (state, verifier string, err error)
}

// Manager decides whether a session's token is usable and refreshes it when it is not.
type Manager struct {
	oauth     services.OAuthClient
	newClient services.ClientFactory
	logger    *log.Logger

	generateState    func() string
	generateVerifier func() string
}

// NewManager creates a [Manager]. newClient builds handles from access tokens.
func NewManager(oauth services.OAuthClient, newClient services.ClientFactory, logger *log.Logger) *Manager {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{
		oauth:            oauth,
		newClient:        newClient,
		logger:           shared.WithLogger(logger, "component", "auth"),
		generateState:    shared.GenerateState,
		generateVerifier: oauth2.GenerateVerifier,
	}
}

// Client returns an authenticated handle for the session, or false when the
// caller should send the user to log in.
//
// An expired token is refreshed and the refreshed record replaces the stored
// one. A failed refresh is logged and leaves the session untouched, so the next
// request tries again.
func (m *Manager) Client(ctx context.Context, sess TokenSession) (services.MusicAPI, bool) {
	token := sess.Token()
	if token == nil {
		return nil, false
	}

	if !m.oauth.IsExpired(token) {
		return m.newClient(token.AccessToken), true
	}

	refreshed, err := m.oauth.Refresh(ctx, token.RefreshToken)
	if err != nil {
		m.logger.Error("token refresh failed", "error", err)
		return nil, false
	}

	if err := sess.SetToken(ctx, refreshed); err != nil {
		// the refreshed token is still good for this request
		m.logger.Error("failed to persist refreshed token", "error", err)
	}

	return m.newClient(refreshed.AccessToken), true
}

// BeginLogin stores a fresh state token and PKCE verifier on the session and
// returns the authorize URL to redirect the user to.
func (m *Manager) BeginLogin(ctx context.Context, sess LoginSession) (string, error) {
	state := m.generateState()
	verifier := m.generateVerifier()

	if err := sess.SetPendingLogin(ctx, state, verifier); err != nil {
		return "", fmt.Errorf("failed to store pending login: %w", err)
	}

	return m.oauth.AuthorizeURL(state, verifier), nil
}

// CompleteLogin validates the callback state, exchanges the code and stores the token.
//
// The pending login is consumed whether or not the exchange succeeds.
func (m *Manager) CompleteLogin(ctx context.Context, sess LoginSession, state, code string) error {
	expected, verifier, err := sess.TakePendingLogin(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending login: %w", err)
	}

	if expected == "" || state != expected {
		return shared.ErrInvalidState
	}

	token, err := m.oauth.Exchange(ctx, code, verifier)
	if err != nil {
		if !errors.Is(err, shared.ErrAuthExchange) {
			err = fmt.Errorf("%w: %v", shared.ErrAuthExchange, err)
		}
		return err
	}

	if err := sess.SetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	m.logger.Info("login completed", "scope", token.Scope)
	return nil
}
