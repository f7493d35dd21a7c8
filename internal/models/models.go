// package models defines the data model for the spotstats web front end
package models

import (
	"fmt"
	"time"
)

// TokenRecord is the OAuth2 credential bundle stored in a session.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Validate checks the record carries an access token.
func (t *TokenRecord) Validate() error {
	if t == nil || t.AccessToken == "" {
		return fmt.Errorf("token record has no access token")
	}
	return nil
}

// Session is one browser session, keyed by the ID stored in its cookie.
//
// OAuthState and Verifier are only set between the login redirect and the
// callback.
type Session struct {
	ID         string       `json:"id"`
	Token      *TokenRecord `json:"token,omitempty"`
	OAuthState string       `json:"oauth_state,omitempty"`
	Verifier   string       `json:"oauth_verifier,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// NewSession creates a session that expires ttl from now.
func NewSession(id string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the session lifetime has elapsed at t.
func (s *Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// Touch marks the session as updated and slides its expiry to ttl from now.
func (s *Session) Touch(ttl time.Duration) {
	now := time.Now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.Token != nil {
		t := *s.Token
		c.Token = &t
	}
	return &c
}

// Validate checks the session can be persisted.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session has no id")
	}
	if s.Token != nil {
		return s.Token.Validate()
	}
	return nil
}

// UserProfile is the current user's Spotify account.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
	Followers   int    `json:"followers"`
	ImageURL    string `json:"image_url,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Track is a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"image_url,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Artist is a Spotify artist.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	ImageURL   string   `json:"image_url,omitempty"`
	URL        string   `json:"url,omitempty"`
}

// Playlist is a simplified playlist entry.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TrackCount int    `json:"track_count"`
	Public     bool   `json:"public"`
}

// PlaylistPage is one page of the user's playlists.
type PlaylistPage struct {
	Items  []Playlist `json:"items"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ProfileSnapshot is the aggregated view rendered on the profile page.
type ProfileSnapshot struct {
	Profile       UserProfile `json:"profile"`
	PlaylistCount int         `json:"playlist_count"`
	TopTracks     []Track     `json:"top_tracks"`
	TopArtists    []Artist    `json:"top_artists"`
	TopGenres     []string    `json:"top_genres"`
	TimeRange     string      `json:"time_range"`
	GeneratedAt   time.Time   `json:"generated_at"`
}
