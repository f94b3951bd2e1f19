// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"time"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
)

// Defaults for Config.
const (
	DefaultBatchSize  = 10
	DefaultWindowSize = 50
	DefaultNearBottom = 50
)

// Config sizes the pipeline.
type Config struct {
	// BatchSize is how many pending entries one DrainBatch commits.
	BatchSize int
	// WindowSize caps both the initial window and the rendered list.
	WindowSize int
	// NearBottom is the distance from the bottom, in pixel equivalents,
	// still treated as "at the bottom". Terminal views report rows scaled
	// by their row height.
	NearBottom int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.NearBottom <= 0 {
		c.NearBottom = DefaultNearBottom
	}
	return c
}

// Entry is one message in the view.
type Entry struct {
	// Seq increases with every enqueue and identifies the entry in the view.
	Seq     uint64
	Message model.Message
	// Own is true for messages sent by the local identity.
	Own bool
}

// Pipeline is not safe for concurrent use. It belongs to the event loop.
type Pipeline struct {
	cfg     Config
	self    model.Identity
	log     *logging.Logger
	metrics *metrics.Metrics

	seq      uint64
	pending  []Entry
	rendered []Entry
	draining bool

	scroll      ScrollState
	unread      bool
	wantScroll  bool
	forceScroll bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics records render batches and evictions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New creates an empty pipeline for the view of self.
func New(cfg Config, self model.Identity, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg.withDefaults(),
		self:   self,
		log:    logging.Nop(),
		scroll: Following,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// =============================================================================
// QUEUE AND DRAIN
// =============================================================================

// Display queues messages for rendering. It returns true when the caller
// must schedule a drain; while a drain is already running the messages just
// join its queue.
func (p *Pipeline) Display(msgs ...model.Message) bool {
	for _, m := range msgs {
		p.seq++
		p.pending = append(p.pending, Entry{
			Seq:     p.seq,
			Message: m,
			Own:     !m.IsSystem() && p.self.Username != "" && m.Username == p.self.Username,
		})
	}
	if p.draining || len(p.pending) == 0 {
		return false
	}
	p.draining = true
	return true
}

// DrainBatch commits up to BatchSize pending entries to the view and
// reports whether more remain. When the queue empties it requests a scroll
// to the bottom if the view is following.
func (p *Pipeline) DrainBatch() bool {
	if len(p.pending) == 0 {
		p.draining = false
		return false
	}

	n := p.cfg.BatchSize
	if n > len(p.pending) {
		n = len(p.pending)
	}
	batch := p.pending[:n]
	p.rendered = append(p.rendered, batch...)
	p.pending = append([]Entry(nil), p.pending[n:]...)
	p.metrics.ObserveBatch(n)

	if len(p.pending) > 0 {
		return true
	}
	p.draining = false
	if p.forceScroll {
		p.forceScroll = false
		p.scrollToBottom()
	} else if p.scroll == Following {
		p.wantScroll = true
	}
	return false
}

// Draining reports whether a drain is in progress.
func (p *Pipeline) Draining() bool { return p.draining }

// Pending returns the number of queued entries.
func (p *Pipeline) Pending() int { return len(p.pending) }

// Rendered returns the committed view, oldest first. The slice must not be
// modified.
func (p *Pipeline) Rendered() []Entry { return p.rendered }

// Len returns the number of rendered entries.
func (p *Pipeline) Len() int { return len(p.rendered) }

// Empty reports whether nothing is rendered or queued.
func (p *Pipeline) Empty() bool { return len(p.rendered) == 0 && len(p.pending) == 0 }

// =============================================================================
// REBUILD AND EVICTION
// =============================================================================

// Rebuild clears the view and queues the initial window of h. The view
// scrolls to the bottom once the window has been drained. It returns true
// when the caller must schedule a drain; a drain already in flight simply
// picks up the new queue.
func (p *Pipeline) Rebuild(h model.History, now time.Time) bool {
	p.rendered = nil
	p.pending = nil
	p.forceScroll = true
	if len(h) == 0 {
		p.forceScroll = false
		p.scrollToBottom()
		return false
	}
	return p.Display(InitialWindow(h, p.cfg.WindowSize, now)...)
}

// InitialWindow returns the newest n messages of h. When h is longer, a
// system notice counting the omitted messages is placed first.
func InitialWindow(h model.History, n int, now time.Time) model.History {
	if len(h) <= n {
		return h.Clone()
	}
	omitted := len(h) - n
	out := make(model.History, 0, n+1)
	out = append(out, model.NewSystemMessage(fmt.Sprintf("%d older messages omitted", omitted), now))
	return append(out, h.Tail(n)...)
}

// Sweep drops the oldest rendered entries beyond WindowSize and returns how
// many were removed. Pending entries are never touched.
func (p *Pipeline) Sweep() int {
	excess := len(p.rendered) - p.cfg.WindowSize
	if excess <= 0 {
		return 0
	}
	p.rendered = append([]Entry(nil), p.rendered[excess:]...)
	p.metrics.ObserveEviction(excess)
	p.log.Debug("view_swept", "evicted", excess, "kept", len(p.rendered))
	return excess
}

// Clear empties the view without touching scroll state.
func (p *Pipeline) Clear() {
	p.rendered = nil
	p.pending = nil
	p.forceScroll = false
}
