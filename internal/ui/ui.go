package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// ProfileCard renders snapshot as a bordered card.
func ProfileCard(snapshot *models.ProfileSnapshot) string {
	p := snapshot.Profile

	name := p.DisplayName
	if name == "" {
		name = p.ID
	}

	meta := []string{
		fmt.Sprintf("%d followers", p.Followers),
		fmt.Sprintf("%d playlists", snapshot.PlaylistCount),
	}
	if p.Country != "" {
		meta = append(meta, p.Country)
	}
	if p.Product != "" {
		meta = append(meta, p.Product)
	}

	sections := []string{
		styles.title.Render(name),
		styles.muted.Render(strings.Join(meta, " · ")),
		styles.heading.Render("Top genres"),
		genreLine(snapshot.TopGenres),
		styles.heading.Render(fmt.Sprintf("Top tracks (%s)", formatter.TimeRangeLabel(snapshot.TimeRange))),
		trackList(snapshot.TopTracks),
		styles.heading.Render(fmt.Sprintf("Top artists (%s)", formatter.TimeRangeLabel(snapshot.TimeRange))),
		artistList(snapshot.TopArtists),
	}

	return styles.card.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func genreLine(genres []string) string {
	if len(genres) == 0 {
		return styles.muted.Render("none yet")
	}

	tags := make([]string, len(genres))
	for i, g := range genres {
		tags[i] = styles.tag.Render(g)
	}
	return strings.Join(tags, "  ")
}

func trackList(tracks []models.Track) string {
	if len(tracks) == 0 {
		return styles.muted.Render("none yet")
	}

	lines := make([]string, len(tracks))
	for i, t := range tracks {
		lines[i] = fmt.Sprintf("%d. %s %s %s",
			i+1,
			t.Name,
			styles.muted.Render(strings.Join(t.Artists, ", ")),
			styles.muted.Render(shared.FormatDuration(t.DurationMS)),
		)
	}
	return strings.Join(lines, "\n")
}

func artistList(artists []models.Artist) string {
	if len(artists) == 0 {
		return styles.muted.Render("none yet")
	}

	lines := make([]string, len(artists))
	for i, a := range artists {
		line := fmt.Sprintf("%d. %s", i+1, a.Name)
		if len(a.Genres) > 0 {
			line += " " + styles.muted.Render(strings.Join(a.Genres, ", "))
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Success styles a completed-action message.
func Success(msg string) string {
	return styles.ok.Render("✓ " + msg)
}

// Warning styles a non-fatal problem.
func Warning(msg string) string {
	return styles.warn.Render("! " + msg)
}

// Failure styles an error message.
func Failure(msg string) string {
	return styles.err.Render("✗ " + msg)
}
