// package services defines the interfaces for the Spotify collaborators of the web front end
package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// OAuthClient performs the OAuth2 authorization-code flow against the provider.
type OAuthClient interface {
	// IsExpired reports whether the token is expired or about to expire.
	IsExpired(token *models.TokenRecord) bool

	// AuthorizeURL returns the URL the user is sent to for consent.
	AuthorizeURL(state, verifier string) string

	// Exchange trades an authorization code for a token record.
	// Errors wrap [shared.ErrAuthExchange].
	Exchange(ctx context.Context, code, verifier string) (*models.TokenRecord, error)

	// Refresh renews a token record from its refresh token.
	// Errors wrap [shared.ErrAuthRefresh].
	Refresh(ctx context.Context, refreshToken string) (*models.TokenRecord, error)
}

// MusicAPI is an authenticated handle bound to one access token.
//
// Every method fails with an [*APIFault] when the API answers with a non-2xx status.
type MusicAPI interface {
	CurrentUser(ctx context.Context) (*models.UserProfile, error)
	CurrentUserPlaylists(ctx context.Context, limit, offset int) (*models.PlaylistPage, error)
	CurrentUserTopTracks(ctx context.Context, limit int, timeRange string) ([]models.Track, error)
	CurrentUserTopArtists(ctx context.Context, limit int, timeRange string) ([]models.Artist, error)
}

// ClientFactory builds a [MusicAPI] handle for an access token.
type ClientFactory func(accessToken string) MusicAPI

// APIFault is a non-2xx response from the music API.
type APIFault struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // set on 429 responses
}

func (f *APIFault) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", f.StatusCode, f.Message)
}

// Unwrap lets callers match any fault with [shared.ErrAPIRequest].
func (f *APIFault) Unwrap() error {
	return shared.ErrAPIRequest
}

// Unauthorized reports whether the API rejected the access token.
func (f *APIFault) Unauthorized() bool {
	return f.StatusCode == http.StatusUnauthorized
}
