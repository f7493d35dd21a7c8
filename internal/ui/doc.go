// Package ui renders terminal output for the spotstats CLI with lipgloss.
//
// [ProfileCard] draws a profile snapshot as a bordered card: the account line, playlist
// count, genre tags and the numbered top tracks and artists. [Success], [Warning] and
// [Failure] style one-line status messages.
//
// Colors come from a single [Palette]; lipgloss drops them when the output is not a terminal.
package ui
