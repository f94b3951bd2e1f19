// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the chat room view of the tutorchat terminal client.

The view is a Bubble Tea model that owns one session for its lifetime. All
session, router and render pipeline calls happen on the Bubble Tea event
loop, so none of those types need locking.

# Key Components

## Model (model.go)

The Model struct holds the session controller, the render pipeline, the
event router and the widgets (viewport, text input, help).

## Update Loop (update.go)

  - Inbound envelopes are pumped from the transport channel one at a time
  - Session actions (start, load, discard, resume) change state on the loop;
    only the transport dial runs as a command, and envelopes that arrive
    meanwhile are held and applied afterwards in order
  - Render batches are drained on a short tick, the view is swept to its
    window on a long one
  - Storage change notifications from other processes reload the store

## View Rendering (view.go)

  - Header with identity and connection state
  - The saved-history prompt while a choice is pending
  - Transcript with per-role name styling; all peer text is sanitized
  - Unread badge, input line, status bar and key help

# Usage

	m := chat.New(ctrl, pipe, rt, tr.Inbound(), theme, chat.DefaultConfig())
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return err
	}
*/
package chat
