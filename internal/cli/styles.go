// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for CLI (non-TUI) output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/util"
)

func init() {
	lipgloss.SetColorProfile(ColorProfile())
}

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	// SuccessStyle is used for success messages
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	// ErrorStyle is used for error messages
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// DimStyle is used for timestamps and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// TutorStyle marks tutor names in history listings
	TutorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	// UserStyle marks student names in history listings
	UserStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))
)

// RenderSeparator renders a horizontal rule.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 60
	}
	return DimStyle.Render(strings.Repeat("─", width))
}

// RenderLine renders one stored message for `history show`.
func RenderLine(m model.Message) string {
	m = render.SanitizeMessage(m)
	stamp := "--"
	if t, ok := m.Time(); ok {
		stamp = t.Local().Format("2006-01-02 15:04")
	}
	text := util.SingleLine(m.Text)

	switch m.Type {
	case model.TypeSystem:
		return DimStyle.Render(stamp+" * ") + DimStyle.Render(text)
	case model.TypeTutor:
		return DimStyle.Render(stamp) + " " + TutorStyle.Render(m.Username) + ": " + text
	default:
		return DimStyle.Render(stamp) + " " + UserStyle.Render(m.Username) + ": " + text
	}
}

// PlainLine renders one stored message without styling, for export.
func PlainLine(m model.Message) string {
	m = render.SanitizeMessage(m)
	text := util.SingleLine(m.Text)
	if m.IsSystem() {
		return "[" + m.Timestamp + "] * " + text
	}
	return "[" + m.Timestamp + "] " + m.Username + " (" + m.Type.DisplayName() + "): " + text
}
