// Package web renders the server-side HTML pages of the spotstats front end.
//
// # Templates
//
// Pages are html/template files embedded from templates/. Each page defines the
// "title", "nav" and "content" blocks and is parsed together with base.html, which
// supplies the layout:
//
//   - home.html: log-in or view-profile call to action ([HomePage])
//   - profile.html: the profile snapshot ([ProfilePage])
//   - error.html: status and upstream message for failed requests ([ErrorPage])
//
// Rendering goes through a buffer so a template error never leaves a half-written
// response behind.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/spotstats/internal/formatter"
	"github.com/desertthunder/spotstats/internal/models"
	"github.com/desertthunder/spotstats/internal/shared"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Page names accepted by [Renderer.Render].
const (
	PageHome    = "home"
	PageProfile = "profile"
	PageError   = "error"
)

// HomePage is the data for the home page.
type HomePage struct {
	LoggedIn bool
}

// ProfilePage is the data for the profile page.
type ProfilePage struct {
	Snapshot *models.ProfileSnapshot
}

// ErrorPage is the data for the error page.
type ErrorPage struct {
	Status  int
	Title   string
	Message string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"duration":  shared.FormatDuration,
	"join":      strings.Join,
	"timeRange": formatter.TimeRangeLabel,
}

// NewRenderer parses every page template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template)}

	for _, name := range []string{PageHome, PageProfile, PageError} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFiles, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = tmpl
	}

	return r, nil
}

// Render writes the named page to w.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("%w: unknown page %q", shared.ErrInvalidArgument, name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}

// RenderHTTP renders the named page as an HTML response with status.
//
// Falls back to a plain-text error when the template itself fails.
func (r *Renderer) RenderHTTP(w http.ResponseWriter, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
