// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
)

// PeerBuffer is the outbound queue length per peer.
const PeerBuffer = 256

var (
	// ErrUnknownEvent is returned for events a client may not send.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrNotJoined is returned for events that need a joined identity.
	ErrNotJoined = errors.New("peer has not joined")
)

// =============================================================================
// PEER
// =============================================================================

// Peer is one attached client.
type Peer struct {
	id  string
	out chan protocol.Envelope

	mu       sync.RWMutex
	identity model.Identity
	joined   bool

	closeOnce sync.Once
}

// ID returns the peer's connection id.
func (p *Peer) ID() string { return p.id }

// Outbound is closed when the peer is detached.
func (p *Peer) Outbound() <-chan protocol.Envelope { return p.out }

// Identity returns the identity announced with join.
func (p *Peer) Identity() (model.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.identity, p.joined
}

func (p *Peer) setIdentity(id model.Identity, joined bool) {
	p.mu.Lock()
	p.identity = id
	p.joined = joined
	p.mu.Unlock()
}

// =============================================================================
// HUB
// =============================================================================

// Hub routes client envelopes to history and peers.
type Hub struct {
	history History
	bus     Bus
	log     *logging.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	peers map[string]*Peer
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics records deliveries on m.
func WithMetrics(m *metrics.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub over history and bus.
func NewHub(hist History, bus Bus, opts ...HubOption) *Hub {
	h := &Hub{
		history: hist,
		bus:     bus,
		log:     logging.Nop(),
		peers:   make(map[string]*Peer),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With("service", "RelayHub")
	return h
}

// Start subscribes the hub to its bus.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.deliverLocal)
}

// Attach registers a new peer.
func (h *Hub) Attach() *Peer {
	p := &Peer{id: uuid.NewString(), out: make(chan protocol.Envelope, PeerBuffer)}
	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()
	h.log.Debug("peer_attached", "peer", p.id)
	return p
}

// Detach removes the peer and closes its outbound queue. A peer that joined
// and never sent leave is announced as having left.
func (h *Hub) Detach(ctx context.Context, p *Peer) {
	h.mu.Lock()
	_, ok := h.peers[p.id]
	delete(h.peers, p.id)
	h.mu.Unlock()
	if !ok {
		return
	}
	p.closeOnce.Do(func() { close(p.out) })

	if id, joined := p.Identity(); joined {
		if err := h.publish(ctx, protocol.EventUserLeft, id, p.id, ""); err != nil {
			h.log.Warn("publish_failed", "event", protocol.EventUserLeft, "error", err)
		}
	}
	h.log.Debug("peer_detached", "peer", p.id)
}

// Peers returns the number of attached peers.
func (h *Hub) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// History exposes the hub's history for health and admin views.
func (h *Hub) History() History { return h.history }

// Handle applies one envelope sent by p.
func (h *Hub) Handle(ctx context.Context, p *Peer, env protocol.Envelope) error {
	switch env.Event {
	case protocol.EventJoin:
		var id model.Identity
		if err := env.Decode(&id); err != nil {
			return err
		}
		if !id.Valid() {
			return fmt.Errorf("%w: join without identity", protocol.ErrBadPayload)
		}
		id.Role = model.ParseType(string(id.Role))
		p.setIdentity(id, true)
		h.log.Info("peer_joined", "peer", p.id, "user_id", id.UserID)
		if err := h.publish(ctx, protocol.EventUserJoined, id, p.id, ""); err != nil {
			return err
		}
		return h.replyHistory(ctx, p)

	case protocol.EventLeave:
		id, joined := p.Identity()
		if !joined {
			return ErrNotJoined
		}
		p.setIdentity(id, false)
		return h.publish(ctx, protocol.EventUserLeft, id, p.id, "")

	case protocol.EventMessage:
		if _, joined := p.Identity(); !joined {
			return ErrNotJoined
		}
		var m model.Message
		if err := env.Decode(&m); err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %v", protocol.ErrBadPayload, err)
		}
		m = m.Normalize()
		if err := h.history.Append(ctx, m); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return h.publish(ctx, protocol.EventMessage, m, "", "")

	case protocol.EventGetHistory:
		return h.replyHistory(ctx, p)

	case protocol.EventUpdateHistory:
		pushed, skipped, err := history.Decode(env.Payload)
		if err != nil {
			return err
		}
		n, err := h.history.Merge(ctx, pushed)
		if err != nil {
			return fmt.Errorf("merge history: %w", err)
		}
		h.log.Debug("history_updated", "peer", p.id, "admitted", n, "skipped", skipped)
		return nil

	case protocol.EventShareHistory:
		var share protocol.SharePayload
		if err := env.Decode(&share); err != nil {
			return err
		}
		if share.UserID == "" {
			return fmt.Errorf("%w: share-history without userId", protocol.ErrBadPayload)
		}
		return h.publish(ctx, protocol.EventSharedHistory, share.History, p.id, share.UserID)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func (h *Hub) replyHistory(ctx context.Context, p *Peer) error {
	hist, err := h.history.Load(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	env, err := protocol.NewEnvelope(protocol.EventChatHistory, hist)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.peers[p.id]; ok {
		h.send(p, env)
	}
	return nil
}

func (h *Hub) publish(ctx context.Context, event string, payload any, excludePeer, targetUser string) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, Delivery{
		Event:       env.Event,
		Payload:     env.Payload,
		ExcludePeer: excludePeer,
		TargetUser:  targetUser,
	})
}

// deliverLocal hands a bus delivery to matching local peers. Only joined
// peers take part in the channel.
func (h *Hub) deliverLocal(d Delivery) {
	env := protocol.Envelope{Event: d.Event, Payload: d.Payload}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, p := range h.peers {
		if id == d.ExcludePeer {
			continue
		}
		who, joined := p.Identity()
		if !joined {
			continue
		}
		if d.TargetUser != "" && who.UserID != d.TargetUser {
			continue
		}
		h.send(p, env)
	}
}

// send never blocks; a peer that cannot keep up loses the envelope.
// Callers hold h.mu with p still registered, so p.out is open.
func (h *Hub) send(p *Peer, env protocol.Envelope) {
	select {
	case p.out <- env:
		h.metrics.ObserveDelivery(env.Event)
	default:
		h.log.Warn("peer_queue_full", "peer", p.id, "event", env.Event)
	}
}
