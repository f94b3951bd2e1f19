// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/router"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/ui/styles"
)

const maxInputLength = 2000

// =============================================================================
// MODEL
// =============================================================================

// Config holds the chat view timing.
type Config struct {
	// BatchDelay is the pause between render batches.
	BatchDelay time.Duration
	// SweepInterval is how often the view is trimmed to its window.
	SweepInterval time.Duration
}

// DefaultConfig returns the default chat view timing.
func DefaultConfig() Config {
	return Config{
		BatchDelay:    10 * time.Millisecond,
		SweepInterval: 60 * time.Second,
	}
}

// Model is the bubbletea model of the chat view. It owns the session for its
// lifetime. Every controller call happens on the bubbletea event loop except
// the transport dial run by dialSession, during which inbound events are held
// back.
type Model struct {
	cfg    Config
	theme  *styles.Theme
	keys   KeyMap
	log    *logging.Logger
	ctrl   *session.Controller
	pipe   *render.Pipeline
	router *router.Router

	inbound      <-chan protocol.Envelope
	storeChanges <-chan string

	viewport viewport.Model
	input    textinput.Model
	help     help.Model

	width, height int
	ready         bool

	busy     bool
	deferred []protocol.Envelope

	notice   string
	errText  string
	fatal    error
	quitting bool
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStoreChanges feeds storage change notifications into the view.
func WithStoreChanges(ch <-chan string) Option {
	return func(m *Model) { m.storeChanges = ch }
}

// WithKeyMap overrides the default key bindings.
func WithKeyMap(k KeyMap) Option {
	return func(m *Model) { m.keys = k }
}

// WithNotice sets the status line notice shown on the first frame.
func WithNotice(s string) Option {
	return func(m *Model) { m.notice = s }
}

// New creates the chat view. inbound is the transport's inbound channel.
func New(ctrl *session.Controller, pipe *render.Pipeline, rt *router.Router, inbound <-chan protocol.Envelope, theme *styles.Theme, cfg Config, opts ...Option) Model {
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultConfig().BatchDelay
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if theme == nil {
		theme = styles.NewTheme(styles.ThemeAuto)
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = maxInputLength
	input.Focus()

	m := Model{
		cfg:      cfg,
		theme:    theme,
		keys:     DefaultKeyMap(),
		log:      logging.Nop(),
		ctrl:     ctrl,
		pipe:     pipe,
		router:   rt,
		inbound:  inbound,
		viewport: viewport.New(80, 20),
		input:    input,
		help:     help.New(),
		busy:     true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the session and the background pumps.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		startSession,
		waitInbound(m.inbound),
		waitStore(m.storeChanges),
		sweepTick(m.cfg.SweepInterval),
		textinput.Blink,
	)
}

// Err returns the error that ended the view, if any.
func (m Model) Err() error { return m.fatal }

// Notice returns the current status line notice.
func (m Model) Notice() string { return m.notice }

// Busy reports whether a session dial is in flight.
func (m Model) Busy() bool { return m.busy }
