// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"sync"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/relay"
)

// Local attaches to an in-process relay.Hub. Outbound envelopes are handed
// to the hub by a single worker so they are applied in emit order. Inbound
// delivery waits for the consumer; Disconnect returns once the consumer has
// taken the disconnect event, or immediately after Close.
type Local struct {
	hub     *relay.Hub
	log     *logging.Logger
	inbound chan protocol.Envelope
	release func() error

	// life ends with Close and bounds every wait on the consumer.
	life context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	peer     *relay.Peer
	outbound chan protocol.Envelope
	linkStop context.CancelFunc
	closed   bool
	pumpWG   sync.WaitGroup
	emitWG   sync.WaitGroup
}

// NewLocal returns a disconnected transport over hub. The hub must already
// be started.
func NewLocal(hub *relay.Hub, log *logging.Logger) *Local {
	if log == nil {
		log = logging.Nop()
	}
	life, stop := context.WithCancel(context.Background())
	return &Local{
		hub:     hub,
		log:     log.With("service", "LocalTransport"),
		inbound: make(chan protocol.Envelope, inboundBuffer),
		life:    life,
		stop:    stop,
	}
}

func (t *Local) Connect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.peer != nil {
		return nil
	}

	peer := t.hub.Attach()
	out := make(chan protocol.Envelope, outboundBuffer)
	link, linkStop := context.WithCancel(t.life)
	t.peer = peer
	t.outbound = out
	t.linkStop = linkStop

	t.pumpWG.Add(1)
	go func() {
		defer t.pumpWG.Done()
		if !deliver(t.life, t.inbound, synthetic(protocol.EventConnect, "")) {
			return
		}
		for env := range peer.Outbound() {
			if !deliver(link, t.inbound, env) {
				t.log.Debug("inbound_abandoned", "event", env.Event)
				return
			}
		}
	}()
	t.emitWG.Add(1)
	go func() {
		defer t.emitWG.Done()
		for env := range out {
			if err := t.hub.Handle(context.Background(), peer, env); err != nil {
				t.log.Warn("emit_rejected", "event", env.Event, "error", err)
			}
		}
	}()
	return nil
}

func (t *Local) Disconnect() error {
	t.mu.Lock()
	peer, out, linkStop := t.peer, t.outbound, t.linkStop
	t.peer, t.outbound, t.linkStop = nil, nil, nil
	t.mu.Unlock()
	if peer == nil {
		return nil
	}

	// Flush queued emits (leave in particular) before detaching.
	close(out)
	t.emitWG.Wait()
	t.hub.Detach(context.Background(), peer)
	linkStop()
	t.pumpWG.Wait()
	deliver(t.life, t.inbound, synthetic(protocol.EventDisconnect, "client"))
	return nil
}

func (t *Local) Emit(_ context.Context, event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.outbound == nil {
		return ErrNotConnected
	}
	select {
	case t.outbound <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

func (t *Local) Inbound() <-chan protocol.Envelope { return t.inbound }

func (t *Local) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peer != nil
}

func (t *Local) Close() error {
	t.stop()
	_ = t.Disconnect()
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	close(t.inbound)
	if t.release != nil {
		return t.release()
	}
	return nil
}
