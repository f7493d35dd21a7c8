package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#1DB954", "#FFFFFF", "#04B575", "#FF5F5F", "#FFA500", "#8A8A8A")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	heading lipgloss.Style
	ok      lipgloss.Style
	err     lipgloss.Style
	warn    lipgloss.Style
	muted   lipgloss.Style
	tag     lipgloss.Style
	card    lipgloss.Style
}

// NewPalette builds a [Palette] from accent, text, success, error, warning and muted colors.
func NewPalette(accent, text, s, e, w, m string) *Palette {
	return &Palette{
		title:   NewBold(accent),
		heading: NewBold(text).MarginTop(1),
		ok:      NewBold(s),
		err:     NewBold(e),
		warn:    NewStyle(w),
		muted:   NewEm(m),
		tag:     NewStyle(accent),
		card:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color(accent)).Padding(0, 2),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
