package profile

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/services"
	tu "github.com/desertthunder/spotstats/internal/testing"
)

func TestTopGenres(t *testing.T) {
	tc := []struct {
		name    string
		artists []models.Artist
		want    []string
	}{
		{
			name:    "truncates before dedup",
			artists: tu.SampleArtists(),
			want:    []string{"Rock", "Pop"},
		},
		{
			name:    "no artists",
			artists: nil,
			want:    []string{},
		},
		{
			name:    "artists without genres",
			artists: []models.Artist{{Name: "A"}, {Name: "B"}},
			want:    []string{},
		},
		{
			name: "three distinct genres",
			artists: []models.Artist{
				{Genres: []string{"hip hop"}},
				{Genres: []string{"uk garage", "drum and bass", "house"}},
			},
			want: []string{"Hip Hop", "Uk Garage", "Drum And Bass"},
		},
		{
			name: "single repeated genre",
			artists: []models.Artist{
				{Genres: []string{"jazz"}},
				{Genres: []string{"jazz"}},
				{Genres: []string{"jazz", "blues"}},
			},
			want: []string{"Jazz"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := TopGenres(tt.artists)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("does not mutate input", func(t *testing.T) {
		artists := tu.SampleArtists()
		TopGenres(artists)
		if !slices.Equal(artists[0].Genres, []string{"rock", "pop"}) {
			t.Errorf("input genres changed: %v", artists[0].Genres)
		}
	})
}

func TestForTimeRange(t *testing.T) {
	base := NewAggregator()

	if got := base.ForTimeRange("short_term"); got == base || got.TimeRange() != "short_term" {
		t.Errorf("expected a short_term copy, got %s", got.TimeRange())
	}
	if base.TimeRange() != DefaultTimeRange {
		t.Errorf("base aggregator changed to %s", base.TimeRange())
	}
	for _, tr := range []string{"", "forever", DefaultTimeRange} {
		if got := base.ForTimeRange(tr); got != base {
			t.Errorf("expected %q to reuse the base aggregator", tr)
		}
	}
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("Builds Snapshot", func(t *testing.T) {
		api := &tu.MockMusicAPI{
			User:      &models.UserProfile{ID: "u1", DisplayName: "Listener"},
			Playlists: &models.PlaylistPage{Total: 23},
			Tracks:    tu.SampleTracks(3),
			Artists:   tu.SampleArtists(),
		}

		snapshot, err := NewAggregator(WithClock(func() time.Time { return now })).Aggregate(ctx, api)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if snapshot.Profile.DisplayName != "Listener" {
			t.Errorf("unexpected profile %+v", snapshot.Profile)
		}
		if snapshot.PlaylistCount != 23 {
			t.Errorf("expected 23 playlists, got %d", snapshot.PlaylistCount)
		}
		if len(snapshot.TopTracks) != 3 {
			t.Errorf("expected min(5, available) = 3 tracks, got %d", len(snapshot.TopTracks))
		}
		if !slices.Equal(snapshot.TopGenres, []string{"Rock", "Pop"}) {
			t.Errorf("unexpected genres %v", snapshot.TopGenres)
		}
		if api.TrackLimit != TopLimit || api.ArtistLimit != TopLimit {
			t.Errorf("expected limits of %d, got %d and %d", TopLimit, api.TrackLimit, api.ArtistLimit)
		}
		if api.LastTimeRange != DefaultTimeRange {
			t.Errorf("expected default time range, got %s", api.LastTimeRange)
		}
		if !snapshot.GeneratedAt.Equal(now) {
			t.Errorf("expected snapshot stamped %v, got %v", now, snapshot.GeneratedAt)
		}
		if api.Calls != 4 {
			t.Errorf("expected 4 reads, got %d", api.Calls)
		}
	})

	t.Run("Caps Oversized Results", func(t *testing.T) {
		api := &tu.MockMusicAPI{Tracks: tu.SampleTracks(8)}

		snapshot, err := NewAggregator().Aggregate(ctx, api)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(snapshot.TopTracks) != TopLimit {
			t.Errorf("expected %d tracks, got %d", TopLimit, len(snapshot.TopTracks))
		}
	})

	t.Run("WithTimeRange", func(t *testing.T) {
		api := &tu.MockMusicAPI{}

		snapshot, err := NewAggregator(WithTimeRange("long_term")).Aggregate(ctx, api)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if api.LastTimeRange != "long_term" || snapshot.TimeRange != "long_term" {
			t.Errorf("expected long_term, got %s", api.LastTimeRange)
		}

		if NewAggregator(WithTimeRange("forever")).timeRange != DefaultTimeRange {
			t.Error("unknown time range should fall back to the default")
		}
	})

	t.Run("Propagates Faults", func(t *testing.T) {
		fault := &services.APIFault{StatusCode: http.StatusTooManyRequests, Message: "rate limited"}

		tc := []struct {
			name string
			api  *tu.MockMusicAPI
		}{
			{name: "profile", api: &tu.MockMusicAPI{UserErr: fault}},
			{name: "playlists", api: &tu.MockMusicAPI{PlaylistsErr: fault}},
			{name: "top tracks", api: &tu.MockMusicAPI{TracksErr: fault}},
			{name: "top artists", api: &tu.MockMusicAPI{ArtistsErr: fault}},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				snapshot, err := NewAggregator().Aggregate(ctx, tt.api)
				if snapshot != nil {
					t.Error("expected no partial snapshot")
				}

				var got *services.APIFault
				if !errors.As(err, &got) || got != fault {
					t.Errorf("expected the fault unchanged, got %v", err)
				}
			})
		}
	})
}
