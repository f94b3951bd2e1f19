// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/tutorchat/internal/model"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderUser  lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	OwnName     lipgloss.Style
	PeerName    lipgloss.Style
	TutorName   lipgloss.Style
	MessageText lipgloss.Style
	SystemText  lipgloss.Style
	Timestamp   lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	StatusBar      lipgloss.Style
	StatusOnline   lipgloss.Style
	StatusOffline  lipgloss.Style
	UnreadBadge    lipgloss.Style
	Notice         lipgloss.Style
	ErrorText      lipgloss.Style
	Help           lipgloss.Style

	// ==========================================================================
	// HISTORY CHOICE PROMPT
	// ==========================================================================

	Prompt       lipgloss.Style
	PromptTitle  lipgloss.Style
	PromptOption lipgloss.Style
}

// NewTheme creates a theme. name is auto, dark or light; unknown names fall
// back to auto detection.
func NewTheme(name string) *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		Name:         ThemeAuto,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	switch strings.ToLower(name) {
	case ThemeDark:
		t.Name, t.IsDark = ThemeDark, true
		lipgloss.SetHasDarkBackground(true)
	case ThemeLight:
		t.Name, t.IsDark = ThemeLight, false
		lipgloss.SetHasDarkBackground(false)
	default:
		t.IsDark = termenv.HasDarkBackground()
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderUser = lipgloss.NewStyle().Foreground(TextSecondary)

	// Messages
	t.OwnName = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.PeerName = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.TutorName = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.MessageText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.SystemText = lipgloss.NewStyle().Italic(true).Foreground(Amber)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	// Input and status
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.StatusBar = lipgloss.NewStyle().Background(SurfaceDim).Foreground(TextSecondary).Padding(0, 1)
	t.StatusOnline = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusOffline = lipgloss.NewStyle().Foreground(Rose)
	t.UnreadBadge = lipgloss.NewStyle().Bold(true).Foreground(TextInverse).Background(Amber).Padding(0, 1)
	t.Notice = lipgloss.NewStyle().Foreground(Amber)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose)
	t.Help = lipgloss.NewStyle().Foreground(TextMuted)

	// History choice prompt
	t.Prompt = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)
	t.PromptTitle = lipgloss.NewStyle().Bold(true).Foreground(TextPrimary)
	t.PromptOption = lipgloss.NewStyle().Foreground(Cyan)
}

// NameStyle picks the username style for a message.
func (t *Theme) NameStyle(typ model.Type, own bool) lipgloss.Style {
	switch {
	case own:
		return t.OwnName
	case typ == model.TypeTutor:
		return t.TutorName
	default:
		return t.PeerName
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
