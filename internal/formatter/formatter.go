// package formatter provides functions to export profile snapshots to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

// Export formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
)

// Formats lists every format accepted by [Export].
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON}

// Rendered is an exported snapshot with the metadata needed to serve or save it.
type Rendered struct {
	Data        []byte
	ContentType string
	Extension   string
}

// ParseFormat resolves format and its aliases (txt, md) to one of [Formats].
// The empty string means text.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(format) {
	case FormatText, "txt", "":
		return FormatText, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (use %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
}

// Export renders snapshot in format.
func Export(snapshot *models.ProfileSnapshot, format string) (*Rendered, error) {
	format, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	var (
		data []byte
		r    Rendered
	)

	switch format {
	case FormatText:
		data, err = ExportToText(snapshot)
		r = Rendered{ContentType: "text/plain; charset=utf-8", Extension: "txt"}
	case FormatMarkdown:
		data, err = ExportToMarkdown(snapshot, "")
		r = Rendered{ContentType: "text/markdown; charset=utf-8", Extension: "md"}
	case FormatCSV:
		data, err = ExportToCSV(snapshot)
		r = Rendered{ContentType: "text/csv; charset=utf-8", Extension: "csv"}
	case FormatJSON:
		data, err = shared.MarshalJSON(snapshot, true)
		r = Rendered{ContentType: "application/json", Extension: "json"}
	}

	if err != nil {
		return nil, err
	}
	r.Data = data
	return &r, nil
}

// Filename returns the download name for a snapshot export, e.g. spotstats-user_2024-01-02.csv
func Filename(snapshot *models.ProfileSnapshot, ext string) string {
	id := snapshot.Profile.ID
	if id == "" {
		id = "profile"
	}
	date := snapshot.GeneratedAt
	if date.IsZero() {
		date = time.Now()
	}
	return fmt.Sprintf("spotstats-%s_%s.%s", id, date.Format("2006-01-02"), ext)
}

// TimeRangeLabel turns an API time range into a readable label.
func TimeRangeLabel(timeRange string) string {
	switch timeRange {
	case "short_term":
		return "last 4 weeks"
	case "medium_term":
		return "last 6 months"
	case "long_term":
		return "all time"
	default:
		return timeRange
	}
}

// ExportToCSV converts a snapshot to CSV with columns: Section, Rank, Name, Artists, Album, Duration, Genres
//
// Tracks, artists and genres each get their own rows, distinguished by Section.
func ExportToCSV(snapshot *models.ProfileSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Section", "Rank", "Name", "Artists", "Album", "Duration", "Genres"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	var records [][]string
	for i, track := range snapshot.TopTracks {
		records = append(records, []string{
			"track",
			strconv.Itoa(i + 1),
			track.Name,
			strings.Join(track.Artists, "; "),
			track.Album,
			shared.FormatDuration(track.DurationMS),
			"",
		})
	}
	for i, artist := range snapshot.TopArtists {
		records = append(records, []string{
			"artist",
			strconv.Itoa(i + 1),
			artist.Name,
			"",
			"",
			"",
			strings.Join(artist.Genres, "; "),
		})
	}
	for i, genre := range snapshot.TopGenres {
		records = append(records, []string{"genre", strconv.Itoa(i + 1), genre, "", "", "", ""})
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a snapshot to Markdown format with optional avatar image
func ExportToMarkdown(snapshot *models.ProfileSnapshot, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	p := snapshot.Profile

	buf.WriteString(fmt.Sprintf("# %s\n\n", displayName(p)))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Avatar](%s)\n\n", imageFilename))
	}

	buf.WriteString(fmt.Sprintf("**Followers**: %d\n", p.Followers))
	buf.WriteString(fmt.Sprintf("**Playlists**: %d\n", snapshot.PlaylistCount))
	if p.Product != "" {
		buf.WriteString(fmt.Sprintf("**Plan**: %s\n", p.Product))
	}
	if len(snapshot.TopGenres) > 0 {
		buf.WriteString(fmt.Sprintf("**Top genres**: %s\n", strings.Join(snapshot.TopGenres, ", ")))
	}
	buf.WriteString("\n")

	buf.WriteString(fmt.Sprintf("## Top Tracks (%s)\n\n", TimeRangeLabel(snapshot.TimeRange)))
	for i, track := range snapshot.TopTracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s [%s]\n", i+1, strings.Join(track.Artists, ", "), track.Name, albumPart, shared.FormatDuration(track.DurationMS)))
	}

	buf.WriteString("\n## Top Artists\n\n")
	for i, artist := range snapshot.TopArtists {
		genrePart := ""
		if len(artist.Genres) > 0 {
			genrePart = fmt.Sprintf(" _%s_", strings.Join(artist.Genres, ", "))
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, artist.Name, genrePart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a snapshot to plain text format
func ExportToText(snapshot *models.ProfileSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	p := snapshot.Profile

	buf.WriteString(fmt.Sprintf("Profile: %s\n", displayName(p)))
	buf.WriteString(fmt.Sprintf("Followers: %d\n", p.Followers))
	buf.WriteString(fmt.Sprintf("Playlists: %d\n", snapshot.PlaylistCount))
	if len(snapshot.TopGenres) > 0 {
		buf.WriteString(fmt.Sprintf("Top genres: %s\n", strings.Join(snapshot.TopGenres, ", ")))
	}

	buf.WriteString(fmt.Sprintf("\nTop tracks (%s):\n", TimeRangeLabel(snapshot.TimeRange)))
	for i, track := range snapshot.TopTracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, strings.Join(track.Artists, ", "), track.Name))
	}

	buf.WriteString("\nTop artists:\n")
	for i, artist := range snapshot.TopArtists {
		buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, artist.Name))
	}

	return buf.Bytes(), nil
}

func displayName(p models.UserProfile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Avatar    string
}

// WriteMarkdownExport exports a snapshot to Markdown format in a dedicated directory.
//
// Creates {dir}/README.md and, when the profile has an image, {dir}/avatar.jpg.
// A failed avatar download is reported on warn and skipped.
func WriteMarkdownExport(snapshot *models.ProfileSnapshot, outputDir string, warn io.Writer) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = strings.TrimSuffix(Filename(snapshot, "md"), ".md")
	}
	if warn == nil {
		warn = os.Stderr
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var avatarFilename string
	if url := snapshot.Profile.ImageURL; url != "" {
		imageData, err := DownloadImage(url)
		if err != nil {
			fmt.Fprintf(warn, "Warning: failed to download avatar: %v\n", err)
		} else {
			avatarFilename = "avatar.jpg"
			avatarPath := filepath.Join(outputDir, avatarFilename)
			if err := os.WriteFile(avatarPath, imageData, 0644); err != nil {
				fmt.Fprintf(warn, "Warning: failed to save avatar: %v\n", err)
				avatarFilename = ""
			} else {
				result.Avatar = avatarPath
				result.Files = append(result.Files, avatarPath)
			}
		}
	}

	mdData, err := ExportToMarkdown(snapshot, avatarFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteExport renders snapshot in format and writes it to path.
//
// Defaults to [Filename] in the working directory.
func WriteExport(snapshot *models.ProfileSnapshot, format, path string) (string, error) {
	rendered, err := Export(snapshot, format)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = Filename(snapshot, rendered.Extension)
	}

	if err := os.WriteFile(path, rendered.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
