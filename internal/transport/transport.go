// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/tutorchat/internal/logging"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/relay"
)

// Kinds accepted by New.
const (
	KindWebSocket = "websocket"
	KindRedis     = "redis"
	KindMemory    = "memory"
)

const (
	inboundBuffer  = 1024
	outboundBuffer = 256
)

var (
	// ErrNotConnected is returned by Emit while there is no live link.
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport closed")
	// ErrQueueFull is returned when the outbound queue is saturated.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrUnknownKind is returned by New for unsupported kinds.
	ErrUnknownKind = errors.New("unknown transport kind")
)

// Transport is the realtime channel consumed by the chat core.
type Transport interface {
	// Connect opens the link. Calling it while connected is a no-op.
	Connect(ctx context.Context) error
	// Disconnect closes the link. It is safe to call when not connected.
	Disconnect() error
	// Emit queues an outbound event.
	Emit(ctx context.Context, event string, payload any) error
	// Inbound carries every received envelope. It is closed by Close.
	Inbound() <-chan protocol.Envelope
	// Connected reports whether the link is up.
	Connected() bool
	// Close disconnects and releases resources for good.
	Close() error
}

// Config selects and configures a transport.
type Config struct {
	Kind              string
	URL               string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	DialTimeout       time.Duration

	Redis      relay.RedisOptions
	Channel    string
	HistoryKey string
	Retention  int
}

// New builds the transport named by cfg.Kind.
func New(ctx context.Context, cfg Config, log *logging.Logger, m *metrics.Metrics) (Transport, error) {
	if log == nil {
		log = logging.Nop()
	}
	switch strings.ToLower(cfg.Kind) {
	case "", KindWebSocket:
		return NewWebSocket(cfg, log), nil
	case KindMemory:
		hub := relay.NewHub(relay.NewMemoryHistory(cfg.Retention), relay.NewMemoryBus(),
			relay.WithLogger(log), relay.WithMetrics(m))
		return startLocal(hub, nil, log)
	case KindRedis:
		rdb, err := relay.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		hub := relay.NewHub(
			relay.NewRedisHistory(rdb, cfg.HistoryKey, cfg.Retention, log),
			relay.NewRedisBus(rdb, cfg.Channel, log),
			relay.WithLogger(log), relay.WithMetrics(m))
		t, err := startLocal(hub, rdb.Close, log)
		if err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// startLocal runs hub for the lifetime of the returned transport.
func startLocal(hub *relay.Hub, release func() error, log *logging.Logger) (*Local, error) {
	hubCtx, cancel := context.WithCancel(context.Background())
	if err := hub.Start(hubCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start hub: %w", err)
	}
	t := NewLocal(hub, log)
	t.release = func() error {
		cancel()
		if release != nil {
			return release()
		}
		return nil
	}
	return t, nil
}

// deliver hands env to the inbound channel, waiting for the consumer so a
// slow reader pushes back on the link instead of losing envelopes. It gives
// up only when ctx ends.
func deliver(ctx context.Context, ch chan<- protocol.Envelope, env protocol.Envelope) bool {
	select {
	case ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

func synthetic(event, reason string) protocol.Envelope {
	if reason == "" {
		return protocol.Envelope{Event: event}
	}
	return protocol.MustEnvelope(event, map[string]string{"reason": reason})
}
