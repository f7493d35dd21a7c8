package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
	th "github.com/desertthunder/spotstats/internal/testing"
)

func testSnapshot() *models.ProfileSnapshot {
	return &models.ProfileSnapshot{
		Profile: models.UserProfile{
			ID:          "listener",
			DisplayName: "Test Listener",
			Followers:   12,
			Product:     "premium",
		},
		PlaylistCount: 9,
		TopTracks: []models.Track{
			{ID: "t1", Name: "Song One", Artists: []string{"Artist One", "Guest"}, Album: "Album One", DurationMS: 180000},
			{ID: "t2", Name: "Song, Two", Artists: []string{"Artist Two"}, DurationMS: 245000},
		},
		TopArtists:  th.SampleArtists(),
		TopGenres:   []string{"Rock", "Pop"},
		TimeRange:   "short_term",
		GeneratedAt: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testSnapshot())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}

		if strings.Join(records[0], ",") != "Section,Rank,Name,Artists,Album,Duration,Genres" {
			t.Errorf("CSV missing headers, got: %v", records[0])
		}

		// header + 2 tracks + 3 artists + 2 genres
		if len(records) != 8 {
			t.Fatalf("expected 8 rows, got %d", len(records))
		}

		if records[1][2] != "Song One" || records[1][3] != "Artist One; Guest" || records[1][5] != "3:00" {
			t.Errorf("unexpected first track row: %v", records[1])
		}
		if records[2][2] != "Song, Two" {
			t.Errorf("expected quoted comma to survive, got %q", records[2][2])
		}
		if records[3][0] != "artist" || records[3][6] != "rock; pop" {
			t.Errorf("unexpected first artist row: %v", records[3])
		}
		if records[7][0] != "genre" || records[7][2] != "Pop" {
			t.Errorf("unexpected last genre row: %v", records[7])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testSnapshot(), "avatar.jpg")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Test Listener",
			"![Avatar](avatar.jpg)",
			"**Followers**: 12",
			"**Playlists**: 9",
			"**Top genres**: Rock, Pop",
			"## Top Tracks (last 4 weeks)",
			"1. Artist One, Guest - Song One (Album One) [3:00]",
			"2. Artist Two - Song, Two [4:05]",
			"1. First _rock, pop_",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown Without Image", func(t *testing.T) {
		data, _ := ExportToMarkdown(testSnapshot(), "")
		if strings.Contains(string(data), "![Avatar]") {
			t.Error("Markdown should not reference an avatar")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(testSnapshot())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"Profile: Test Listener",
			"Playlists: 9",
			"Top genres: Rock, Pop",
			"1. Artist One, Guest - Song One",
			"3. Third",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText Falls Back To ID", func(t *testing.T) {
		snapshot := testSnapshot()
		snapshot.Profile.DisplayName = ""

		data, _ := ExportToText(snapshot)
		if !strings.HasPrefix(string(data), "Profile: listener\n") {
			t.Errorf("expected ID as name, got %s", data)
		}
	})
}

func TestExport(t *testing.T) {
	tc := []struct {
		format      string
		contentType string
		ext         string
	}{
		{format: "text", contentType: "text/plain; charset=utf-8", ext: "txt"},
		{format: "", contentType: "text/plain; charset=utf-8", ext: "txt"},
		{format: "markdown", contentType: "text/markdown; charset=utf-8", ext: "md"},
		{format: "MD", contentType: "text/markdown; charset=utf-8", ext: "md"},
		{format: "csv", contentType: "text/csv; charset=utf-8", ext: "csv"},
		{format: "json", contentType: "application/json", ext: "json"},
	}

	for _, tt := range tc {
		t.Run("format "+tt.format, func(t *testing.T) {
			rendered, err := Export(testSnapshot(), tt.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rendered.ContentType != tt.contentType || rendered.Extension != tt.ext {
				t.Errorf("expected %s/%s, got %s/%s", tt.contentType, tt.ext, rendered.ContentType, rendered.Extension)
			}
			if len(rendered.Data) == 0 {
				t.Error("expected data")
			}
		})
	}

	t.Run("JSON Round Trip", func(t *testing.T) {
		rendered, err := Export(testSnapshot(), FormatJSON)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded models.ProfileSnapshot
		if err := json.Unmarshal(rendered.Data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.PlaylistCount != 9 || len(decoded.TopGenres) != 2 {
			t.Errorf("unexpected decoded snapshot %+v", decoded)
		}
	})

	t.Run("Unknown Format", func(t *testing.T) {
		_, err := Export(testSnapshot(), "xml")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("ParseFormat", func(t *testing.T) {
		if f, _ := ParseFormat("TXT"); f != FormatText {
			t.Errorf("expected text, got %s", f)
		}
		if f, _ := ParseFormat("md"); f != FormatMarkdown {
			t.Errorf("expected markdown, got %s", f)
		}
		if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Filename", func(t *testing.T) {
		if got := Filename(testSnapshot(), "csv"); got != "spotstats-listener_2024-03-09.csv" {
			t.Errorf("unexpected filename %s", got)
		}
	})

	t.Run("TimeRangeLabel", func(t *testing.T) {
		if TimeRangeLabel("long_term") != "all time" || TimeRangeLabel("custom") != "custom" {
			t.Error("unexpected labels")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.csv")

		written, err := WriteExport(testSnapshot(), FormatCSV, path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if written != path {
			t.Errorf("expected %s, got %s", path, written)
		}
		if !strings.HasPrefix(th.MustReadFile(t, path), "Section,Rank") {
			t.Error("expected CSV content")
		}
	})

	t.Run("WriteExport Default Path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		written, err := WriteExport(testSnapshot(), FormatText, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		th.AssertFileExists(t, written)
	})

	t.Run("WriteMarkdownExport With Avatar", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("jpeg-bytes"))
		}))
		defer srv.Close()

		snapshot := testSnapshot()
		snapshot.Profile.ImageURL = srv.URL + "/avatar"
		dir := filepath.Join(t.TempDir(), "export")

		result, err := WriteMarkdownExport(snapshot, dir, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}

		if len(result.Files) != 2 {
			t.Fatalf("expected avatar and README, got %v", result.Files)
		}
		if th.MustReadFile(t, result.Avatar) != "jpeg-bytes" {
			t.Error("avatar content mismatch")
		}
		if !strings.Contains(th.MustReadFile(t, filepath.Join(dir, "README.md")), "![Avatar](avatar.jpg)") {
			t.Error("README should reference the avatar")
		}
	})

	t.Run("WriteMarkdownExport Avatar Failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		snapshot := testSnapshot()
		snapshot.Profile.ImageURL = srv.URL
		var warn bytes.Buffer

		result, err := WriteMarkdownExport(snapshot, t.TempDir(), &warn)
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if result.Avatar != "" || len(result.Files) != 1 {
			t.Errorf("expected README only, got %v", result.Files)
		}
		if !strings.Contains(warn.String(), "failed to download avatar") {
			t.Errorf("expected warning, got %q", warn.String())
		}
	})

	t.Run("DownloadImage Empty URL", func(t *testing.T) {
		if _, err := DownloadImage(""); err == nil {
			t.Error("expected error for empty URL")
		}
	})
}
