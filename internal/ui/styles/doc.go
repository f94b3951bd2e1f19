// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the tutorchat TUI.
//
// Colors are lipgloss.AdaptiveColor values so they work on light and dark
// terminals. A Theme bundles the styles used by the chat view.
//
// # Key Types
//
//   - Theme: all lipgloss styles for one session, plus terminal capabilities
//   - LayoutMode: narrow, medium or wide, from the terminal width
//
// # Usage
//
//	theme := styles.NewTheme(cfg.Chat.Theme)
//	theme.SetSize(width, height)
//	name := theme.NameStyle(msg.Type, own).Render(msg.Username)
package styles
