// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/session"
)

// Effect tells the caller what to do after an event was applied.
type Effect struct {
	// Drain is set when the render pipeline needs a drain scheduled.
	Drain bool
	// Notice is a passive status line message, empty for none.
	Notice string
}

// Router applies events to one session.
type Router struct {
	ctrl    *session.Controller
	pipe    *render.Pipeline
	log     *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics records per-kind event counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithClock overrides time.Now for synthesized system messages.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a router over ctrl and pipe.
func New(ctrl *session.Controller, pipe *render.Pipeline, opts ...Option) *Router {
	r := &Router{
		ctrl: ctrl,
		pipe: pipe,
		log:  logging.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("service", "EventRouter")
	return r
}

// Handle decodes env and dispatches it. Undecodable envelopes are logged
// and dropped.
func (r *Router) Handle(ctx context.Context, env protocol.Envelope) Effect {
	ev, err := Decode(env)
	if err != nil {
		r.log.Warn("event_dropped", "event", env.Event, "error", err)
		return Effect{}
	}
	eff, err := r.Dispatch(ctx, ev)
	if err != nil {
		r.log.Warn("event_failed", "kind", ev.Kind().String(), "error", err)
	}
	return eff
}

// Dispatch applies ev. Storage and transport errors are returned after the
// in-memory effect has been applied, so no event is left half processed.
func (r *Router) Dispatch(ctx context.Context, ev Event) (Effect, error) {
	r.metrics.ObserveEvent(ev.Kind().String())
	store := r.ctrl.Store()

	switch e := ev.(type) {
	case MessageReceived:
		if err := e.Message.Validate(); err != nil {
			return Effect{}, err
		}
		m := e.Message.Normalize()
		admitted, err := store.Append(ctx, m)
		if !admitted {
			return Effect{}, err
		}
		drain := r.pipe.Display(m)
		r.pipe.OnIncoming(m)
		return Effect{Drain: drain}, err

	case HistoryPushed:
		var err error
		switch {
		case !r.ctrl.MergesPushes():
			err = store.Replace(ctx, e.History)
		case !store.Empty() && len(e.History) == 0:
			r.log.Info("empty_push_kept_local", "stored", store.Len())
			err = r.ctrl.PublishLocal(ctx)
		default:
			_, err = store.Merge(ctx, e.History)
		}
		return Effect{Drain: r.pipe.Rebuild(store.Messages(), r.now())}, err

	case PeerJoined:
		sys := model.NewSystemMessage(fmt.Sprintf("%s joined the chat", e.Peer.Username), r.now())
		drain := r.pipe.Display(sys)
		r.pipe.OnIncoming(sys)
		return Effect{Drain: drain}, r.ctrl.ShareWith(ctx, e.Peer.UserID)

	case PeerLeft:
		sys := model.NewSystemMessage(fmt.Sprintf("%s left the chat", e.Peer.Username), r.now())
		_, err := store.Append(ctx, sys)
		drain := r.pipe.Display(sys)
		r.pipe.OnIncoming(sys)
		return Effect{Drain: drain}, err

	case PeerHistoryShared:
		if len(e.History) == 0 {
			return Effect{}, nil
		}
		_, err := store.Merge(ctx, e.History)
		if r.pipe.Empty() {
			return Effect{Drain: r.pipe.Rebuild(store.Messages(), r.now())}, err
		}
		return Effect{}, err

	case Connected:
		return Effect{Notice: "connected"}, r.ctrl.OnConnected(ctx)

	case Disconnected:
		r.ctrl.OnDisconnected(ctx, e.Reason)
		notice := "disconnected, showing local history"
		if e.Reason != "" {
			notice = "disconnected (" + e.Reason + "), showing local history"
		}
		return Effect{Notice: notice}, nil

	case StoreChanged:
		stats, err := store.Reload(ctx)
		if stats.Admitted == 0 {
			return Effect{}, err
		}
		return Effect{Drain: r.pipe.Rebuild(store.Messages(), r.now())}, err

	default:
		return Effect{}, fmt.Errorf("%w: unhandled event kind %s", protocol.ErrBadPayload, ev.Kind())
	}
}
