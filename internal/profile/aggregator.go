// package profile builds the profile snapshot shown on the profile page
package profile

import (
	"context"
	"slices"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// TopLimit is the number of top tracks and top artists requested.
	TopLimit = 5
	// GenreLimit is the number of genre entries kept before deduplication.
	GenreLimit = 3

	DefaultTimeRange = "medium_term"
)

// Time ranges accepted by the top-items endpoints.
var TimeRanges = []string{"short_term", "medium_term", "long_term"}

// Aggregator issues the profile reads and derives the genre list.
type Aggregator struct {
	timeRange string
	now       func() time.Time
}

// Option configures an [Aggregator].
type Option func(*Aggregator)

// WithTimeRange selects the window for top tracks and artists. Unknown values are ignored.
func WithTimeRange(timeRange string) Option {
	return func(a *Aggregator) {
		if ValidTimeRange(timeRange) {
			a.timeRange = timeRange
		}
	}
}

// WithClock replaces the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an [Aggregator].
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{timeRange: DefaultTimeRange, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ValidTimeRange reports whether timeRange is one of [TimeRanges].
func ValidTimeRange(timeRange string) bool {
	return slices.Contains(TimeRanges, timeRange)
}

// TimeRange returns the window used for top tracks and artists.
func (a *Aggregator) TimeRange() string {
	return a.timeRange
}

// ForTimeRange returns a copy of a using timeRange, or a itself when timeRange
// is empty or unknown.
func (a *Aggregator) ForTimeRange(timeRange string) *Aggregator {
	if !ValidTimeRange(timeRange) || timeRange == a.timeRange {
		return a
	}
	c := *a
	c.timeRange = timeRange
	return &c
}

// Aggregate runs the four reads concurrently and assembles a snapshot.
//
// The first failing read cancels the others and its error is returned as is.
// There is no partial snapshot.
func (a *Aggregator) Aggregate(ctx context.Context, api services.MusicAPI) (*models.ProfileSnapshot, error) {
	var (
		user      *models.UserProfile
		playlists *models.PlaylistPage
		tracks    []models.Track
		artists   []models.Artist
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		user, err = api.CurrentUser(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		playlists, err = api.CurrentUserPlaylists(ctx, 1, 0)
		return err
	})
	g.Go(func() error {
		var err error
		tracks, err = api.CurrentUserTopTracks(ctx, TopLimit, a.timeRange)
		return err
	})
	g.Go(func() error {
		var err error
		artists, err = api.CurrentUserTopArtists(ctx, TopLimit, a.timeRange)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := &models.ProfileSnapshot{
		Profile:       *user,
		PlaylistCount: playlists.Total,
		TopTracks:     firstN(tracks, TopLimit),
		TopArtists:    firstN(artists, TopLimit),
		TimeRange:     a.timeRange,
		GeneratedAt:   a.now(),
	}
	snapshot.TopGenres = TopGenres(snapshot.TopArtists)

	return snapshot, nil
}

// TopGenres concatenates the artists' genres in artist order, keeps the first
// [GenreLimit] entries, drops duplicates and title-cases what is left.
//
// Truncation happens before deduplication, so fewer than [GenreLimit] genres
// may come back even when more distinct genres exist further down the list.
func TopGenres(artists []models.Artist) []string {
	var all []string
	for _, a := range artists {
		all = append(all, a.Genres...)
	}
	all = firstN(all, GenreLimit)

	caser := cases.Title(language.English)
	seen := make(map[string]struct{}, len(all))
	genres := make([]string, 0, len(all))
	for _, g := range all {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		genres = append(genres, caser.String(g))
	}
	return genres
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
