// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/util"
)

const timeLayout = "15:04"

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Connecting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.ctrl.State() == session.StateAwaitingHistoryChoice {
		b.WriteString(m.renderPrompt())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	b.WriteString(m.renderUnread())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(max(10, m.width-2)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render(m.help.View(m.keys)))
	return b.String()
}

// =============================================================================
// HEADER AND STATUS
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("tutorchat")
	user := m.theme.HeaderUser.Render(m.ctrl.Identity().Label())

	var state string
	if m.ctrl.Connected() {
		state = m.theme.StatusOnline.Render("● online")
	} else {
		state = m.theme.StatusOffline.Render("○ " + m.ctrl.State().String())
	}

	left := title + "  " + user
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(state) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Render(left + strings.Repeat(" ", gap) + state)
}

func (m Model) renderUnread() string {
	if !m.pipe.Unread() {
		return ""
	}
	return m.theme.UnreadBadge.Render("new messages below, C-g to jump")
}

func (m Model) renderStatus() string {
	var parts []string
	if m.errText != "" {
		parts = append(parts, m.theme.ErrorText.Render(m.errText))
	} else if m.notice != "" {
		parts = append(parts, m.theme.Notice.Render(m.notice))
	}
	parts = append(parts, m.pipe.State().String())
	if n := m.pipe.Pending(); n > 0 {
		parts = append(parts, countLabel(n)+" pending")
	}
	line := strings.Join(parts, " | ")
	if m.width > 0 {
		line = util.TruncateWidth(line, m.width)
	}
	return m.theme.StatusBar.Render(line)
}

// =============================================================================
// HISTORY CHOICE PROMPT
// =============================================================================

func (m Model) renderPrompt() string {
	lines := []string{
		m.theme.PromptTitle.Render("Saved chat history found"),
		"",
		"This device has " + countLabel(m.ctrl.Store().Len()) + " from an earlier session.",
		"",
		m.theme.PromptOption.Render("[l] load it and merge with the room"),
		m.theme.PromptOption.Render("[d] discard it and start fresh"),
		"",
		m.help.View(promptKeys(m.keys)),
	}
	box := m.theme.Prompt.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m Model) renderTranscript() string {
	entries := m.pipe.Rendered()
	if len(entries) == 0 {
		return m.theme.SystemText.Render("No messages yet.")
	}

	width := m.viewport.Width
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, m.renderEntry(e, width))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEntry(e render.Entry, width int) string {
	msg := render.SanitizeMessage(e.Message)
	stamp := m.theme.Timestamp.Render(entryTime(e))

	var line string
	if msg.IsSystem() {
		line = stamp + " " + m.theme.SystemText.Render("* "+msg.Text)
	} else {
		name := m.theme.NameStyle(msg.Type, e.Own).Render(msg.Username)
		line = stamp + " " + name + ": " + m.theme.MessageText.Render(msg.Text)
	}
	// Wrap long lines to the viewport.
	if width > 0 {
		line = lipgloss.NewStyle().Width(width).Render(line)
	}
	return line
}

func entryTime(e render.Entry) string {
	t, ok := e.Message.Time()
	if !ok {
		return "--:--"
	}
	return t.Local().Format(timeLayout)
}

// Transcript returns the rendered entries as plain single-line text.
func (m Model) Transcript() []string {
	entries := m.pipe.Rendered()
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		text := util.SingleLine(render.Sanitize(e.Message.Text))
		if e.Message.IsSystem() {
			out = append(out, "* "+text)
			continue
		}
		out = append(out, render.Sanitize(e.Message.Username)+": "+text)
	}
	return out
}
