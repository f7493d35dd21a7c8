package ui

import (
	"strings"
	"testing"

	"github.com/desertthunder/spotstats/internal/models"
	tu "github.com/desertthunder/spotstats/internal/testing"
)

func TestProfileCard(t *testing.T) {
	t.Run("Full Snapshot", func(t *testing.T) {
		snapshot := &models.ProfileSnapshot{
			Profile:       models.UserProfile{ID: "u1", DisplayName: "Listener", Followers: 3, Country: "NZ"},
			PlaylistCount: 4,
			TopTracks:     tu.SampleTracks(2),
			TopArtists:    tu.SampleArtists(),
			TopGenres:     []string{"Rock", "Pop"},
			TimeRange:     "short_term",
		}

		out := ProfileCard(snapshot)
		for _, want := range []string{
			"Listener",
			"3 followers",
			"4 playlists",
			"NZ",
			"Rock",
			"Pop",
			"Top tracks (last 4 weeks)",
			"1. Track A",
			"3:20",
			"3. Third",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("card missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("Empty Snapshot Falls Back To ID", func(t *testing.T) {
		out := ProfileCard(&models.ProfileSnapshot{Profile: models.UserProfile{ID: "u1"}})

		if !strings.Contains(out, "u1") {
			t.Errorf("expected ID as name:\n%s", out)
		}
		if strings.Count(out, "none yet") != 3 {
			t.Errorf("expected three empty sections:\n%s", out)
		}
	})
}

func TestStatusLines(t *testing.T) {
	tc := []struct {
		name string
		got  string
		want string
	}{
		{name: "success", got: Success("saved"), want: "✓ saved"},
		{name: "warning", got: Warning("slow"), want: "! slow"},
		{name: "failure", got: Failure("broke"), want: "✗ broke"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, tt.got)
			}
		})
	}
}
