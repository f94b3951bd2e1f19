// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/relay"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func recvEvent(t *testing.T, tr Transport, want string) protocol.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-tr.Inbound():
			if env.Event == want {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return protocol.Envelope{}
		}
	}
}

func startHub(t *testing.T) *relay.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := relay.NewHub(relay.NewMemoryHistory(100), relay.NewMemoryBus())
	require.NoError(t, hub.Start(ctx))
	return hub
}

func TestLocal_EchoAcrossPeers(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	alice, bob := NewLocal(hub, nil), NewLocal(hub, nil)
	defer alice.Close()
	defer bob.Close()

	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	recvEvent(t, alice, protocol.EventConnect)

	require.NoError(t, alice.Emit(ctx, protocol.EventJoin, model.Identity{Username: "alice", UserID: "1"}))
	recvEvent(t, alice, protocol.EventChatHistory)
	require.NoError(t, bob.Emit(ctx, protocol.EventJoin, model.Identity{Username: "bob", UserID: "2"}))
	recvEvent(t, alice, protocol.EventUserJoined)

	m := model.NewMessage(model.Identity{Username: "bob", UserID: "2"}, "hi", t0)
	require.NoError(t, bob.Emit(ctx, protocol.EventMessage, m))

	for _, tr := range []Transport{alice, bob} {
		env := recvEvent(t, tr, protocol.EventMessage)
		var got model.Message
		require.NoError(t, env.Decode(&got))
		assert.Equal(t, m.ID, got.ID)
	}
}

func TestLocal_DisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := NewLocal(startHub(t), nil)

	require.NoError(t, tr.Disconnect())
	assert.ErrorIs(t, tr.Emit(ctx, protocol.EventGetHistory, nil), ErrNotConnected)

	require.NoError(t, tr.Connect(ctx))
	require.NoError(t, tr.Connect(ctx))
	assert.True(t, tr.Connected())

	require.NoError(t, tr.Disconnect())
	require.NoError(t, tr.Disconnect())
	assert.False(t, tr.Connected())
	recvEvent(t, tr, protocol.EventDisconnect)

	require.NoError(t, tr.Close())
	assert.ErrorIs(t, tr.Connect(ctx), ErrClosed)
}

func TestLocal_LeaveFlushedBeforeDetach(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	alice, bob := NewLocal(hub, nil), NewLocal(hub, nil)
	defer alice.Close()
	defer bob.Close()

	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, bob.Connect(ctx))
	require.NoError(t, alice.Emit(ctx, protocol.EventJoin, model.Identity{Username: "alice", UserID: "1"}))
	require.NoError(t, bob.Emit(ctx, protocol.EventJoin, model.Identity{Username: "bob", UserID: "2"}))
	recvEvent(t, alice, protocol.EventUserJoined)

	require.NoError(t, bob.Emit(ctx, protocol.EventLeave, model.Identity{Username: "bob", UserID: "2"}))
	require.NoError(t, bob.Disconnect())

	recvEvent(t, alice, protocol.EventUserLeft)
}

// countMessages reads n message envelopes from tr, skipping other events.
func countMessages(t *testing.T, tr Transport, n int) int {
	t.Helper()
	got := 0
	deadline := time.After(5 * time.Second)
	for got < n {
		select {
		case env, ok := <-tr.Inbound():
			if !ok {
				return got
			}
			if env.Event == protocol.EventMessage {
				got++
			}
		case <-deadline:
			return got
		}
	}
	return got
}

func TestLocal_SlowConsumerLosesNothing(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	alice, bob := NewLocal(hub, nil), NewLocal(hub, nil)
	defer alice.Close()
	defer bob.Close()

	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, alice.Emit(ctx, protocol.EventJoin, model.Identity{Username: "alice", UserID: "1"}))
	recvEvent(t, alice, protocol.EventChatHistory)

	tutor := model.Identity{Username: "bob", Role: model.TypeTutor, UserID: "2"}
	require.NoError(t, bob.Connect(ctx))
	require.NoError(t, bob.Emit(ctx, protocol.EventJoin, tutor))

	// alice reads nothing while bob sends more than her inbound buffer holds.
	total := inboundBuffer + 100
	for i := 0; i < total; i++ {
		m := model.NewMessage(tutor, fmt.Sprintf("line %d", i), t0)
		for {
			err := bob.Emit(ctx, protocol.EventMessage, m)
			if !errors.Is(err, ErrQueueFull) {
				require.NoError(t, err)
				break
			}
			time.Sleep(time.Millisecond)
		}
	}

	assert.Equal(t, total, countMessages(t, alice, total))
}

func TestLocal_CloseDoesNotWaitForConsumer(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	alice, bob := NewLocal(hub, nil), NewLocal(hub, nil)
	defer bob.Close()

	require.NoError(t, alice.Connect(ctx))
	require.NoError(t, alice.Emit(ctx, protocol.EventJoin, model.Identity{Username: "alice", UserID: "1"}))
	recvEvent(t, alice, protocol.EventChatHistory)

	tutor := model.Identity{Username: "bob", Role: model.TypeTutor, UserID: "2"}
	require.NoError(t, bob.Connect(ctx))
	require.NoError(t, bob.Emit(ctx, protocol.EventJoin, tutor))
	for i := 0; i < inboundBuffer+10; i++ {
		if err := bob.Emit(ctx, protocol.EventMessage, model.NewMessage(tutor, "flood", t0)); err != nil {
			time.Sleep(time.Millisecond)
		}
	}

	done := make(chan error, 1)
	go func() { done <- alice.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a full inbound queue")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "carrier-pigeon"}, nil, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()
	tr, err := New(ctx, Config{Kind: KindMemory}, nil, nil)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Connect(ctx))
	require.NoError(t, tr.Emit(ctx, protocol.EventJoin, model.Identity{Username: "solo", UserID: "9"}))
	recvEvent(t, tr, protocol.EventChatHistory)
}

// =============================================================================
// WEBSOCKET
// =============================================================================

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestWebSocket_AgainstRelay(t *testing.T) {
	ctx := context.Background()
	hub := startHub(t)
	srv := httptest.NewServer(relay.NewServer(hub, relay.ServerConfig{}, nil, nil).Handler())
	defer srv.Close()

	tr := NewWebSocket(Config{URL: wsURL(srv)}, nil)
	defer tr.Close()

	require.NoError(t, tr.Connect(ctx))
	recvEvent(t, tr, protocol.EventConnect)

	require.NoError(t, tr.Emit(ctx, protocol.EventJoin, model.Identity{Username: "alice", UserID: "1"}))
	recvEvent(t, tr, protocol.EventChatHistory)

	m := model.NewMessage(model.Identity{Username: "alice", UserID: "1"}, "over the wire", t0)
	require.NoError(t, tr.Emit(ctx, protocol.EventMessage, m))
	env := recvEvent(t, tr, protocol.EventMessage)
	var got model.Message
	require.NoError(t, env.Decode(&got))
	assert.Equal(t, "over the wire", got.Text)

	require.NoError(t, tr.Disconnect())
	recvEvent(t, tr, protocol.EventDisconnect)
	assert.ErrorIs(t, tr.Emit(ctx, protocol.EventGetHistory, nil), ErrNotConnected)
}

func TestWebSocket_SlowConsumerLosesNothing(t *testing.T) {
	total := inboundBuffer + 200
	written := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		tutor := model.Identity{Username: "bob", Role: model.TypeTutor, UserID: "2"}
		for i := 0; i < total; i++ {
			env := protocol.MustEnvelope(protocol.EventMessage, model.NewMessage(tutor, fmt.Sprintf("line %d", i), t0))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
		close(written)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tr := NewWebSocket(Config{URL: wsURL(srv)}, nil)
	defer tr.Close()
	require.NoError(t, tr.Connect(context.Background()))

	select {
	case <-written:
	case <-time.After(5 * time.Second):
		t.Fatal("server could not finish writing")
	}
	assert.Equal(t, total, countMessages(t, tr, total))
}

func TestWebSocket_DialFailure(t *testing.T) {
	tr := NewWebSocket(Config{URL: "ws://127.0.0.1:1/ws", DialTimeout: 200 * time.Millisecond}, nil)
	defer tr.Close()
	assert.Error(t, tr.Connect(context.Background()))
	assert.False(t, tr.Connected())
}

func TestWebSocket_ReconnectsAfterDrop(t *testing.T) {
	var conns int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if atomic.AddInt32(&conns, 1) == 1 {
			// Drop the first link right away.
			conn.Close()
			return
		}
		go func() {
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}))
	defer srv.Close()

	tr := NewWebSocket(Config{URL: wsURL(srv), ReconnectAttempts: 3, ReconnectDelay: 10 * time.Millisecond}, nil)
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background()))
	recvEvent(t, tr, protocol.EventConnect)
	recvEvent(t, tr, protocol.EventDisconnect)
	recvEvent(t, tr, protocol.EventConnect)
	assert.True(t, tr.Connected())
	assert.Equal(t, int32(2), atomic.LoadInt32(&conns))
}
