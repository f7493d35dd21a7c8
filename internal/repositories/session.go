package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// SessionRepository implements session.Store on SQLite.
//
// Timestamps are stored as unix seconds.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a new [SessionRepository] with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Load retrieves a live session by ID
func (r *SessionRepository) Load(ctx context.Context, id string) (*models.Session, error) {
	query := `
		SELECT id, access_token, refresh_token, token_type, scope, token_expires_at,
		       oauth_state, oauth_verifier, created_at, updated_at, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?
	`

	var (
		sessionID      string
		accessToken    string
		refreshToken   string
		tokenType      string
		scope          string
		tokenExpiresAt int64
		state          string
		verifier       string
		createdAt      int64
		updatedAt      int64
		expiresAt      int64
	)

	err := r.db.QueryRowContext(ctx, query, id, r.now().Unix()).Scan(
		&sessionID, &accessToken, &refreshToken, &tokenType, &scope, &tokenExpiresAt,
		&state, &verifier, &createdAt, &updatedAt, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	sess := &models.Session{
		ID:         sessionID,
		OAuthState: state,
		Verifier:   verifier,
		CreatedAt:  fromUnix(createdAt),
		UpdatedAt:  fromUnix(updatedAt),
		ExpiresAt:  fromUnix(expiresAt),
	}

	if accessToken != "" {
		sess.Token = &models.TokenRecord{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    tokenType,
			Scope:        scope,
			ExpiresAt:    fromUnix(tokenExpiresAt),
		}
	}

	return sess, nil
}

// Save inserts or replaces a session
func (r *SessionRepository) Save(ctx context.Context, sess *models.Session) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var token models.TokenRecord
	if sess.Token != nil {
		token = *sess.Token
	}

	query := `
		INSERT INTO sessions (
			id, access_token, refresh_token, token_type, scope, token_expires_at,
			oauth_state, oauth_verifier, created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scope = excluded.scope,
			token_expires_at = excluded.token_expires_at,
			oauth_state = excluded.oauth_state,
			oauth_verifier = excluded.oauth_verifier,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`

	_, err := r.db.ExecContext(ctx, query,
		sess.ID, token.AccessToken, token.RefreshToken, token.TokenType, token.Scope, toUnix(token.ExpiresAt),
		sess.OAuthState, sess.Verifier, toUnix(sess.CreatedAt), toUnix(sess.UpdatedAt), toUnix(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Delete removes a session by ID. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session whose lifetime has elapsed
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

// Count returns the number of live sessions
func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, r.now().Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Ping checks the database connection.
func (r *SessionRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	return nil
}
