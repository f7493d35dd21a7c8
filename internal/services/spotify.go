// Spotify Web API implementation of [OAuthClient] and [MusicAPI]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// ExpirySkew is how long before its expiry a token is already treated as expired.
	ExpirySkew = 60 * time.Second

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 64 << 10
)

// DefaultScopes are requested when the configuration does not list any.
var DefaultScopes = []string{
	"user-read-email",
	"user-read-private",
	"user-top-read",
	"playlist-read-private",
	"playlist-read-collaborative",
}

type followers struct {
	Total int `json:"total"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID           string         `json:"id"`
	DisplayName  string         `json:"display_name"`
	Email        string         `json:"email"`
	Country      string         `json:"country"`
	Product      string         `json:"product"` // premium, free, etc.
	Followers    followers      `json:"followers"`
	Images       []SpotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Popularity   int             `json:"popularity"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Genres       []string       `json:"genres"`
	Popularity   int            `json:"popularity"`
	Images       []SpotifyImage `json:"images"`
	ExternalURLs externalURLs   `json:"external_urls"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type simplePlaylistTracks struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID     string               `json:"id"`
	Name   string               `json:"name"`
	Public bool                 `json:"public"`
	Tracks simplePlaylistTracks `json:"tracks"`
}

// SpotifyPage is Spotify's paging envelope.
type SpotifyPage[T any] struct {
	Items    []T     `json:"items"`
	Total    int     `json:"total"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// spotifyError is the body of a failed Web API call.
//
// Accounts endpoints answer with a flat {"error": "...", "error_description": "..."}
// instead, so the error member is decoded lazily.
type spotifyError struct {
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

type spotifyErrorObject struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// SpotifyAuth implements [OAuthClient] with [oauth2] and hands out [SpotifyClient] handles.
//
// Handles created by one SpotifyAuth share its HTTP client and rate limiter.
type SpotifyAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	baseURL    string
	now        func() time.Time
}

// SpotifyOption configures a [SpotifyAuth].
type SpotifyOption func(*SpotifyAuth)

// WithHTTPClient sets the client used for token and API requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyAuth) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithRateLimit caps API requests per second across all handles. Zero disables the limiter.
func WithRateLimit(perSecond float64) SpotifyOption {
	return func(s *SpotifyAuth) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		burst := max(int(perSecond), 1)
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithTimeout bounds each API request.
func WithTimeout(d time.Duration) SpotifyOption {
	return func(s *SpotifyAuth) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEndpoints points the service at other accounts and API hosts (used by tests).
func WithEndpoints(authURL, tokenURL, apiURL string) SpotifyOption {
	return func(s *SpotifyAuth) {
		s.config.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader}
		s.baseURL = strings.TrimSuffix(apiURL, "/")
	}
}

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) SpotifyOption {
	return func(s *SpotifyAuth) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSpotifyAuth creates a Spotify OAuth client from the configured credentials.
func NewSpotifyAuth(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyAuth, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if creds.RedirectURI == "" {
		return nil, fmt.Errorf("%w: missing redirect_uri", shared.ErrMissingCredentials)
	}

	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	s := &SpotifyAuth{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
		baseURL:    spotifyBaseURL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// IsExpired reports whether the token expires within [ExpirySkew].
// A record without an expiry is treated as expired.
func (s *SpotifyAuth) IsExpired(token *models.TokenRecord) bool {
	if token == nil || token.ExpiresAt.IsZero() {
		return true
	}
	return token.ExpiresAt.Sub(s.now()) < ExpirySkew
}

// AuthorizeURL returns the consent URL with the state and a PKCE S256 challenge for verifier.
func (s *SpotifyAuth) AuthorizeURL(state, verifier string) string {
	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return s.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token record.
func (s *SpotifyAuth) Exchange(ctx context.Context, code, verifier string) (*models.TokenRecord, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", shared.ErrAuthExchange)
	}

	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthExchange, err)
	}

	return tokenRecord(token), nil
}

// Refresh renews a token record. Spotify may rotate the refresh token; when
// it does not, the previous refresh token is carried over.
func (s *SpotifyAuth) Refresh(ctx context.Context, refreshToken string) (*models.TokenRecord, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthRefresh, shared.ErrNoRefreshToken)
	}

	src := s.config.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthRefresh, err)
	}

	return tokenRecord(token), nil
}

// NewClient returns a [MusicAPI] handle bound to accessToken.
func (s *SpotifyAuth) NewClient(accessToken string) MusicAPI {
	return &SpotifyClient{
		accessToken: accessToken,
		httpClient:  s.httpClient,
		limiter:     s.limiter,
		timeout:     s.timeout,
		baseURL:     s.baseURL,
	}
}

// oauthContext makes the oauth2 package use the configured HTTP client.
func (s *SpotifyAuth) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func tokenRecord(token *oauth2.Token) *models.TokenRecord {
	record := &models.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.Expiry,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		record.Scope = scope
	}
	return record
}

// SpotifyClient is a [MusicAPI] handle bound to a single access token.
type SpotifyClient struct {
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	timeout     time.Duration
	baseURL     string
}

// doRequest performs an authenticated GET against the Web API and decodes the JSON body into result.
func (c *SpotifyClient) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if c.accessToken == "" {
		return shared.ErrNotAuthenticated
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseFault(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// parseFault builds an [APIFault] from a failed response, using the API's own message when it sends one.
func parseFault(resp *http.Response) *APIFault {
	fault := &APIFault{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			fault.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return fault
	}

	var envelope spotifyError
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return fault
	}

	var obj spotifyErrorObject
	if err := json.Unmarshal(envelope.Error, &obj); err == nil && obj.Message != "" {
		fault.Message = obj.Message
		return fault
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil && code != "" {
		fault.Message = code
		if envelope.ErrorDescription != "" {
			fault.Message += ": " + envelope.ErrorDescription
		}
	}

	return fault
}

// CurrentUser retrieves the current authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
		Followers:   user.Followers.Total,
		ImageURL:    firstImage(user.Images),
		URL:         user.ExternalURLs.Spotify,
	}
	return profile, nil
}

// CurrentUserPlaylists retrieves one page of the current user's playlists.
func (c *SpotifyClient) CurrentUserPlaylists(ctx context.Context, limit, offset int) (*models.PlaylistPage, error) {
	query := url.Values{
		"limit":  {strconv.Itoa(clampLimit(limit))},
		"offset": {strconv.Itoa(max(offset, 0))},
	}

	var page SpotifyPage[SpotifySimplePlaylist]
	if err := c.doRequest(ctx, "/me/playlists", query, &page); err != nil {
		return nil, err
	}

	result := &models.PlaylistPage{
		Items:  make([]models.Playlist, 0, len(page.Items)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for _, p := range page.Items {
		result.Items = append(result.Items, models.Playlist{
			ID:         p.ID,
			Name:       p.Name,
			TrackCount: p.Tracks.Total,
			Public:     p.Public,
		})
	}
	return result, nil
}

// CurrentUserTopTracks retrieves the user's top tracks for the time range.
func (c *SpotifyClient) CurrentUserTopTracks(ctx context.Context, limit int, timeRange string) ([]models.Track, error) {
	var page SpotifyPage[SpotifyTrack]
	if err := c.doRequest(ctx, "/me/top/tracks", topQuery(limit, timeRange), &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, t := range page.Items {
		artists := make([]string, 0, len(t.Artists))
		for _, a := range t.Artists {
			artists = append(artists, a.Name)
		}
		tracks = append(tracks, models.Track{
			ID:         t.ID,
			Name:       t.Name,
			Artists:    artists,
			Album:      t.Album.Name,
			DurationMS: t.DurationMS,
			Popularity: t.Popularity,
			ImageURL:   firstImage(t.Album.Images),
			URL:        t.ExternalURLs.Spotify,
		})
	}
	return tracks, nil
}

// CurrentUserTopArtists retrieves the user's top artists for the time range.
func (c *SpotifyClient) CurrentUserTopArtists(ctx context.Context, limit int, timeRange string) ([]models.Artist, error) {
	var page SpotifyPage[SpotifyArtist]
	if err := c.doRequest(ctx, "/me/top/artists", topQuery(limit, timeRange), &page); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(page.Items))
	for _, a := range page.Items {
		artists = append(artists, models.Artist{
			ID:         a.ID,
			Name:       a.Name,
			Genres:     a.Genres,
			Popularity: a.Popularity,
			ImageURL:   firstImage(a.Images),
			URL:        a.ExternalURLs.Spotify,
		})
	}
	return artists, nil
}

func topQuery(limit int, timeRange string) url.Values {
	query := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	if timeRange != "" {
		query.Set("time_range", timeRange)
	}
	return query
}

// clampLimit keeps limit within the API's 1..50 page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 50)
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
