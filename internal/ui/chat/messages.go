// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// InboundMsg carries one envelope from the transport.
type InboundMsg struct {
	Envelope protocol.Envelope
}

// InboundClosedMsg is sent once the transport's inbound channel closes.
type InboundClosedMsg struct{}

// StoreChangedMsg is sent when another process rewrote the persisted history.
type StoreChangedMsg struct {
	Key string
}

// SessionResultMsg reports the outcome of the dial started by a session
// action. The model applies it to the controller on the event loop.
type SessionResultMsg struct {
	Action string
	Err    error
}

// sessionStartMsg asks the model to begin the session on the event loop.
type sessionStartMsg struct{}

type drainTickMsg struct{}

type sweepTickMsg struct{}

// Session action names carried by SessionResultMsg.
const (
	actionStart   = "start"
	actionLoad    = "load"
	actionDiscard = "discard"
	actionResume  = "resume"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// waitInbound blocks on the next transport envelope.
func waitInbound(ch <-chan protocol.Envelope) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		env, ok := <-ch
		if !ok {
			return InboundClosedMsg{}
		}
		return InboundMsg{Envelope: env}
	}
}

// waitStore blocks on the next storage change notification.
func waitStore(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		key, ok := <-ch
		if !ok {
			return nil
		}
		return StoreChangedMsg{Key: key}
	}
}

// dialSession opens the transport off the event loop. Nothing else about
// the session is touched until the result comes back as a SessionResultMsg.
func dialSession(action string, ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		return SessionResultMsg{Action: action, Err: ctrl.Dial(context.Background())}
	}
}

func startSession() tea.Msg { return sessionStartMsg{} }

func drainTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return drainTickMsg{} })
}

func sweepTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return sweepTickMsg{} })
}
