// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/protocol"
)

const (
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultDialTimeout       = 10 * time.Second

	wsReadDeadline = 90 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = int64(1 << 20)
)

// WebSocket talks to a relay server. After an unexpected drop it redials up
// to ReconnectAttempts times, ReconnectDelay apart, then stays disconnected.
// The reader waits for the inbound consumer, so a slow consumer pushes back
// on the socket.
type WebSocket struct {
	cfg     Config
	log     *logging.Logger
	dialer  *websocket.Dialer
	inbound chan protocol.Envelope

	// life ends with Close and bounds every wait on the consumer.
	life context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	conn     *websocket.Conn
	outbound chan protocol.Envelope
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// NewWebSocket returns a disconnected WebSocket transport.
func NewWebSocket(cfg Config, log *logging.Logger) *WebSocket {
	if cfg.ReconnectAttempts <= 0 {
		cfg.ReconnectAttempts = defaultReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	life, stop := context.WithCancel(context.Background())
	return &WebSocket{
		cfg:     cfg,
		log:     log.With("service", "WebSocketTransport"),
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		inbound: make(chan protocol.Envelope, inboundBuffer),
		life:    life,
		stop:    stop,
	}
}

func (w *WebSocket) Connect(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.cancel != nil {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	conn, err := w.dial(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.cancel != nil {
		conn.Close()
		if w.closed {
			return ErrClosed
		}
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	out := w.attach(conn)
	w.wg.Add(1)
	go w.supervise(runCtx, conn, out)
	return nil
}

func (w *WebSocket) Disconnect() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	w.wg.Wait()
	return nil
}

func (w *WebSocket) Emit(_ context.Context, event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.outbound == nil {
		return ErrNotConnected
	}
	select {
	case w.outbound <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *WebSocket) Inbound() <-chan protocol.Envelope { return w.inbound }

func (w *WebSocket) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn != nil
}

func (w *WebSocket) Close() error {
	w.stop()
	_ = w.Disconnect()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.inbound)
	return nil
}

// =============================================================================
// LINK MANAGEMENT
// =============================================================================

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.DialTimeout)
	defer cancel()
	conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.cfg.URL, err)
	}
	return conn, nil
}

// attach publishes conn as the live link. Caller holds w.mu.
func (w *WebSocket) attach(conn *websocket.Conn) chan protocol.Envelope {
	out := make(chan protocol.Envelope, outboundBuffer)
	w.conn = conn
	w.outbound = out
	return out
}

func (w *WebSocket) detach() {
	w.mu.Lock()
	w.conn = nil
	w.outbound = nil
	w.mu.Unlock()
}

// supervise owns the link until ctx is cancelled or reconnects run out.
func (w *WebSocket) supervise(ctx context.Context, conn *websocket.Conn, out chan protocol.Envelope) {
	defer w.wg.Done()
	for {
		deliver(w.life, w.inbound, synthetic(protocol.EventConnect, ""))
		err := w.serve(ctx, conn, out)
		w.detach()

		if ctx.Err() != nil {
			deliver(w.life, w.inbound, synthetic(protocol.EventDisconnect, "client"))
			return
		}
		w.log.Warn("link_lost", "url", w.cfg.URL, "error", err)
		deliver(w.life, w.inbound, synthetic(protocol.EventDisconnect, "link lost"))

		conn = w.redial(ctx)
		if conn == nil {
			w.log.Error("reconnect_exhausted", "url", w.cfg.URL, "attempts", w.cfg.ReconnectAttempts)
			w.mu.Lock()
			if w.cancel != nil {
				w.cancel()
				w.cancel = nil
			}
			w.mu.Unlock()
			return
		}
		w.mu.Lock()
		out = w.attach(conn)
		w.mu.Unlock()
	}
}

func (w *WebSocket) redial(ctx context.Context) *websocket.Conn {
	for attempt := 1; attempt <= w.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.ReconnectDelay):
		}
		conn, err := w.dial(ctx)
		if err == nil {
			w.log.Info("reconnected", "attempt", attempt)
			return conn
		}
		w.log.Warn("reconnect_failed", "attempt", attempt, "max", w.cfg.ReconnectAttempts, "error", err)
	}
	return nil
}

// serve runs one reader and one writer on conn until either fails or ctx
// ends. The writer always closes conn on the way out.
func (w *WebSocket) serve(ctx context.Context, conn *websocket.Conn, out <-chan protocol.Envelope) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.readLoop(gctx, conn) })
	g.Go(func() error { return w.writeLoop(ctx, gctx, conn, out) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsWriteTimeout))
	})
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if !deliver(ctx, w.inbound, env) {
			return ctx.Err()
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	}
}

func (w *WebSocket) writeLoop(ctx, gctx context.Context, conn *websocket.Conn, out <-chan protocol.Envelope) error {
	defer conn.Close()
	for {
		select {
		case <-gctx.Done():
			if ctx.Err() != nil {
				w.goodbye(conn, out)
			}
			return gctx.Err()
		case env := <-out:
			if err := w.write(conn, env); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// goodbye flushes queued emits, leave in particular, and sends a close frame.
func (w *WebSocket) goodbye(conn *websocket.Conn, out <-chan protocol.Envelope) {
	w.flush(conn, out)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
}

func (w *WebSocket) flush(conn *websocket.Conn, out <-chan protocol.Envelope) {
	for {
		select {
		case env := <-out:
			if err := w.write(conn, env); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *WebSocket) write(conn *websocket.Conn, env protocol.Envelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(env)
}
