// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/router"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.syncScroll()
		return m, cmd

	case tea.FocusMsg:
		// Regaining focus may mean we missed traffic while the terminal was hidden.
		if !m.busy {
			if err := m.ctrl.RequestHistory(context.Background()); err != nil {
				m.log.Warn("refresh_failed", "error", err)
			}
		}
		return m, nil

	case sessionStartMsg:
		dial, err := m.ctrl.Begin(context.Background())
		if err != nil || !dial {
			return m.finishSession(actionStart, err)
		}
		return m, dialSession(actionStart, m.ctrl)

	case SessionResultMsg:
		return m.finishSession(msg.Action, m.ctrl.Complete(context.Background(), msg.Err))

	case InboundMsg:
		if m.busy {
			m.deferred = append(m.deferred, msg.Envelope)
			return m, waitInbound(m.inbound)
		}
		cmd := m.apply(msg.Envelope)
		return m, tea.Batch(cmd, waitInbound(m.inbound))

	case InboundClosedMsg:
		m.inbound = nil
		return m, nil

	case StoreChangedMsg:
		var cmd tea.Cmd
		if msg.Key == storage.KeyChatHistory && !m.busy {
			eff, err := m.router.Dispatch(context.Background(), router.StoreChanged{})
			if err != nil {
				m.log.Warn("reload_failed", "error", err)
			}
			cmd = m.effect(eff)
		}
		return m, tea.Batch(cmd, waitStore(m.storeChanges))

	case drainTickMsg:
		more := m.pipe.DrainBatch()
		m.refresh()
		if more && !m.quitting {
			return m, drainTick(m.cfg.BatchDelay)
		}
		return m, nil

	case sweepTickMsg:
		if m.quitting {
			return m, nil
		}
		if m.pipe.Sweep() > 0 {
			m.refresh()
		}
		return m, sweepTick(m.cfg.SweepInterval)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width, m.height = msg.Width, msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.help.Width = msg.Width
	m.input.Width = max(10, msg.Width-4)

	// header + unread line + input (with border) + status + help
	chrome := 1 + 1 + 2 + 1 + 1
	m.viewport.Width = msg.Width
	m.viewport.Height = max(3, msg.Height-chrome)
	m.ready = true
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	if m.busy {
		return m, nil
	}

	if m.ctrl.State() == session.StateAwaitingHistoryChoice {
		switch {
		case key.Matches(msg, m.keys.Load):
			return m.beginDial(actionLoad, m.ctrl.PrepareLoad(context.Background()))
		case key.Matches(msg, m.keys.Discard):
			return m.beginDial(actionDiscard, m.ctrl.PrepareDiscard(context.Background()))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		return m.send()

	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
		m.syncScroll()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
		m.syncScroll()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		m.syncScroll()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		m.syncScroll()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.syncScroll()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.pipe.ScrollToBottom()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.AutoScroll):
		if m.pipe.ToggleAutoScroll() == render.Following {
			m.notice = "auto-scroll on"
		} else {
			m.notice = "auto-scroll off"
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.ctrl.State() == session.StateDisconnected {
			m.notice = "reconnecting..."
			return m.beginDial(actionResume, m.ctrl.PrepareResume())
		}
		if err := m.ctrl.RequestHistory(context.Background()); err != nil {
			m.errText = err.Error()
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		if err := m.ctrl.ClearHistory(context.Background()); err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.pipe.Clear()
		m.notice = "local history cleared"
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	_, err := m.ctrl.Send(context.Background(), m.input.Value())
	switch {
	case err == nil:
		m.input.Reset()
		m.errText = ""
		m.pipe.OnSend()
		m.refresh()
	case errors.Is(err, session.ErrEmptyMessage):
	case errors.Is(err, session.ErrRateLimited):
		m.errText = "sending too fast, wait a moment"
	case errors.Is(err, transport.ErrNotConnected), errors.Is(err, transport.ErrClosed):
		m.errText = "not connected, press C-r to reconnect"
	default:
		m.errText = err.Error()
	}
	return m, nil
}

// beginDial starts the transport dial for a prepared session action.
func (m Model) beginDial(action string, err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.errText = err.Error()
		m.log.Error("session_action_failed", "action", action, "error", err)
		return m, nil
	}
	m.busy = true
	return m, dialSession(action, m.ctrl)
}

// finishSession ends a session action and replays inbound events held back
// while it ran.
func (m Model) finishSession(action string, err error) (tea.Model, tea.Cmd) {
	m.busy = false
	var cmds []tea.Cmd

	switch {
	case errors.Is(err, session.ErrNoIdentity):
		m.fatal = err
		m.quitting = true
		return m, tea.Quit
	case errors.Is(err, session.ErrTransportUnavailable):
		m.notice = "offline, showing local history"
		m.log.Warn("session_degraded", "action", action, "error", err)
	case err != nil:
		m.errText = err.Error()
		m.log.Error("session_action_failed", "action", action, "error", err)
	case action == actionResume:
		m.notice = "reconnected"
	}

	// Show whatever is stored while waiting for the relay's history.
	if m.ctrl.State() != session.StateAwaitingHistoryChoice && action != actionResume {
		cmds = append(cmds, m.effect(router.Effect{Drain: m.pipe.Rebuild(m.ctrl.Store().Messages(), time.Now())}))
	}

	deferred := m.deferred
	m.deferred = nil
	for _, env := range deferred {
		cmds = append(cmds, m.apply(env))
	}
	m.refresh()
	return m, tea.Batch(cmds...)
}

// apply routes one envelope and turns its effect into commands.
func (m *Model) apply(env protocol.Envelope) tea.Cmd {
	eff := m.router.Handle(context.Background(), env)
	return m.effect(eff)
}

func (m *Model) effect(eff router.Effect) tea.Cmd {
	if eff.Notice != "" {
		m.notice = eff.Notice
	}
	m.refresh()
	if eff.Drain && !m.quitting {
		return drainTick(m.cfg.BatchDelay)
	}
	return nil
}

// =============================================================================
// VIEWPORT SYNC
// =============================================================================

// refresh re-renders the transcript into the viewport and honours any
// pending scroll request.
func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	if m.pipe.TakeScrollRequest() {
		m.viewport.GotoBottom()
	}
}

// rowHeight is the pixel-equivalent height of one terminal row, so the
// near-bottom threshold keeps its meaning in a terminal.
const rowHeight = 20

// syncScroll reports the viewport position to the scroll state machine.
func (m *Model) syncScroll() {
	m.pipe.OnScroll(m.distanceFromBottom() * rowHeight)
}

// distanceFromBottom is the number of rows below the visible window.
func (m Model) distanceFromBottom() int {
	bottom := m.viewport.TotalLineCount() - m.viewport.Height
	if bottom < 0 {
		return 0
	}
	return max(0, bottom-m.viewport.YOffset)
}

func countLabel(n int) string {
	if n == 1 {
		return "1 message"
	}
	return fmt.Sprintf("%d messages", n)
}
