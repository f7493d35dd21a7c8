// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
)

// MockOAuthClient is a test double for [services.OAuthClient]
type MockOAuthClient struct {
	mu sync.Mutex

	Expired       bool
	ExchangeToken *models.TokenRecord
	ExchangeErr   error
	RefreshToken  *models.TokenRecord
	RefreshErr    error

	ExchangeCalls int
	RefreshCalls  int
	LastCode      string
	LastVerifier  string
	LastRefresh   string
}

func (m *MockOAuthClient) IsExpired(token *models.TokenRecord) bool {
	return m.Expired
}

func (m *MockOAuthClient) AuthorizeURL(state, verifier string) string {
	return "https://accounts.example.test/authorize?state=" + state
}

func (m *MockOAuthClient) Exchange(ctx context.Context, code, verifier string) (*models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExchangeCalls++
	m.LastCode = code
	m.LastVerifier = verifier
	return m.ExchangeToken, m.ExchangeErr
}

func (m *MockOAuthClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefreshCalls++
	m.LastRefresh = refreshToken
	return m.RefreshToken, m.RefreshErr
}

// MockMusicAPI is a test double for [services.MusicAPI]
//
// Each method returns its matching field, or the matching error when set.
type MockMusicAPI struct {
	mu sync.Mutex

	AccessToken string
	User        *models.UserProfile
	Playlists   *models.PlaylistPage
	Tracks      []models.Track
	Artists     []models.Artist

	UserErr      error
	PlaylistsErr error
	TracksErr    error
	ArtistsErr   error

	Calls         int
	TrackLimit    int
	ArtistLimit   int
	LastTimeRange string
}

// Factory returns a [services.ClientFactory] that records the access token and hands out m.
func (m *MockMusicAPI) Factory() services.ClientFactory {
	return func(accessToken string) services.MusicAPI {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.AccessToken = accessToken
		return m
	}
}

// Token returns the access token of the last handle handed out.
func (m *MockMusicAPI) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AccessToken
}

func (m *MockMusicAPI) CurrentUser(ctx context.Context) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	if m.User == nil {
		return &models.UserProfile{}, nil
	}
	return m.User, nil
}

func (m *MockMusicAPI) CurrentUserPlaylists(ctx context.Context, limit, offset int) (*models.PlaylistPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	if m.Playlists == nil {
		return &models.PlaylistPage{}, nil
	}
	return m.Playlists, nil
}

func (m *MockMusicAPI) CurrentUserTopTracks(ctx context.Context, limit int, timeRange string) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.TrackLimit = limit
	m.LastTimeRange = timeRange
	if m.TracksErr != nil {
		return nil, m.TracksErr
	}
	return m.Tracks, nil
}

func (m *MockMusicAPI) CurrentUserTopArtists(ctx context.Context, limit int, timeRange string) ([]models.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.ArtistLimit = limit
	m.LastTimeRange = timeRange
	if m.ArtistsErr != nil {
		return nil, m.ArtistsErr
	}
	return m.Artists, nil
}

// MockSession is an in-memory token and pending-login holder
type MockSession struct {
	Stored     *models.TokenRecord
	SetErr     error
	SetCalls   int
	State      string
	Verifier   string
	PendingErr error
}

func (s *MockSession) Token() *models.TokenRecord { return s.Stored }

func (s *MockSession) SetToken(ctx context.Context, token *models.TokenRecord) error {
	s.SetCalls++
	if s.SetErr != nil {
		return s.SetErr
	}
	s.Stored = token
	return nil
}

func (s *MockSession) SetPendingLogin(ctx context.Context, state, verifier string) error {
	if s.PendingErr != nil {
		return s.PendingErr
	}
	s.State, s.Verifier = state, verifier
	return nil
}

func (s *MockSession) TakePendingLogin(ctx context.Context) (string, string, error) {
	if s.PendingErr != nil {
		return "", "", s.PendingErr
	}
	state, verifier := s.State, s.Verifier
	s.State, s.Verifier = "", ""
	return state, verifier, nil
}

// SampleArtists returns top artists whose genres concatenate to rock, pop, pop, jazz, rock, indie
func SampleArtists() []models.Artist {
	return []models.Artist{
		{ID: "a1", Name: "First", Genres: []string{"rock", "pop"}},
		{ID: "a2", Name: "Second", Genres: []string{"pop", "jazz", "rock"}},
		{ID: "a3", Name: "Third", Genres: []string{"indie"}},
	}
}

// SampleTracks returns n numbered tracks
func SampleTracks(n int) []models.Track {
	tracks := make([]models.Track, 0, n)
	for i := range n {
		tracks = append(tracks, models.Track{
			ID:         string(rune('a'+i)) + "-track",
			Name:       "Track " + string(rune('A'+i)),
			Artists:    []string{"Artist"},
			Album:      "Album",
			DurationMS: 200000,
		})
	}
	return tracks
}

// ValidToken returns a token record that expires in an hour
func ValidToken(access string) *models.TokenRecord {
	return &models.TokenRecord{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    "Bearer",
		Scope:        "user-top-read",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}
