// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tutorchat/internal/history"
	"github.com/jeranaias/tutorchat/internal/metrics"
	"github.com/jeranaias/tutorchat/internal/model"
	"github.com/jeranaias/tutorchat/internal/protocol"
	"github.com/jeranaias/tutorchat/internal/render"
	"github.com/jeranaias/tutorchat/internal/session"
	"github.com/jeranaias/tutorchat/internal/storage"
	"github.com/jeranaias/tutorchat/internal/transport"
)

// ============================================================================
// TEST DOUBLES
// ============================================================================

type recordingTransport struct {
	connected bool
	emits     []protocol.Envelope
}

func (r *recordingTransport) Connect(context.Context) error { r.connected = true; return nil }
func (r *recordingTransport) Disconnect() error              { r.connected = false; return nil }
func (r *recordingTransport) Inbound() <-chan protocol.Envelope {
	return nil
}
func (r *recordingTransport) Connected() bool { return r.connected }
func (r *recordingTransport) Close() error    { return nil }

func (r *recordingTransport) Emit(_ context.Context, event string, payload any) error {
	if !r.connected {
		return transport.ErrNotConnected
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	r.emits = append(r.emits, env)
	return nil
}

func (r *recordingTransport) last(event string) (protocol.Envelope, bool) {
	for i := len(r.emits) - 1; i >= 0; i-- {
		if r.emits[i].Event == event {
			return r.emits[i], true
		}
	}
	return protocol.Envelope{}, false
}

var (
	t0    = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	alice = model.Identity{Username: "alice", Role: model.TypeUser, UserID: "u1"}
	bob   = model.Identity{Username: "bob", Role: model.TypeTutor, UserID: "u2"}
)

func msgFrom(from model.Identity, id string, minute int) model.Message {
	return model.Message{
		ID:        id,
		Username:  from.Username,
		Type:      from.Role,
		Text:      "text " + id,
		Timestamp: model.FormatTimestamp(t0.Add(time.Duration(minute) * time.Minute)),
	}
}

func ids(h model.History) []string {
	out := make([]string, len(h))
	for i, m := range h {
		out[i] = m.ID
	}
	return out
}

type fixture struct {
	kv   *storage.MemoryKV
	tr   *recordingTransport
	ctrl *session.Controller
	pipe *render.Pipeline
	r    *Router
}

// newFixture seeds the store and starts the session. With a seed the
// session is left awaiting the history choice.
func newFixture(t *testing.T, seed model.History) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	if len(seed) > 0 {
		require.NoError(t, history.NewStore(kv).Replace(ctx, seed))
	}
	tr := &recordingTransport{}
	clock := func() time.Time { return t0.Add(time.Hour) }
	ctrl := session.NewController(alice, history.NewStore(kv), storage.NewFlags(kv), tr,
		session.DefaultConfig(), session.WithClock(clock))
	require.NoError(t, ctrl.Start(ctx))
	pipe := render.New(render.Config{}, alice)
	return &fixture{
		kv:   kv,
		tr:   tr,
		ctrl: ctrl,
		pipe: pipe,
		r:    New(ctrl, pipe, WithClock(clock), WithMetrics(metrics.New())),
	}
}

func (f *fixture) dispatch(t *testing.T, ev Event) Effect {
	t.Helper()
	eff, err := f.r.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	return eff
}

func (f *fixture) drainAll() {
	for f.pipe.DrainBatch() {
	}
}

func renderedIDs(p *render.Pipeline) []string {
	var out []string
	for _, e := range p.Rendered() {
		out = append(out, e.Message.ID)
	}
	return out
}

// ============================================================================
// HISTORY PUSH TESTS
// ============================================================================

func TestHistoryPush_LoadMergesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.History{msgFrom(bob, "m1", 1), msgFrom(bob, "m2", 2), msgFrom(bob, "m3", 3)})
	require.NoError(t, f.ctrl.ChooseLoad(ctx))

	eff := f.dispatch(t, HistoryPushed{History: model.History{msgFrom(bob, "m2", 2), msgFrom(bob, "m4", 4)}})

	assert.True(t, eff.Drain)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(f.ctrl.Store().Messages()))
	f.drainAll()
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, renderedIDs(f.pipe))
	assert.True(t, f.pipe.TakeScrollRequest())
}

func TestHistoryPush_DiscardThenReplace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.History{msgFrom(bob, "m1", 1)})
	require.NoError(t, f.ctrl.ChooseDiscard(ctx))
	require.True(t, f.ctrl.Store().Empty())

	f.dispatch(t, HistoryPushed{History: model.History{msgFrom(bob, "m5", 5), msgFrom(bob, "m6", 6)}})
	f.drainAll()

	assert.Equal(t, []string{"m5", "m6"}, ids(f.ctrl.Store().Messages()))
	assert.Equal(t, []string{"m5", "m6"}, renderedIDs(f.pipe))
}

func TestHistoryPush_UndecidedWithDataReplaces(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)})

	f.dispatch(t, HistoryPushed{History: model.History{msgFrom(bob, "m5", 5)}})

	assert.Equal(t, []string{"m5"}, ids(f.ctrl.Store().Messages()))
	raw, err := f.kv.Get(context.Background(), storage.KeyChatHistory)
	require.NoError(t, err)
	persisted, _, err := history.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"m5"}, ids(persisted))
}

func TestHistoryPush_EmptyPushKeepsLocalAndRepublishes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, model.History{msgFrom(bob, "m1", 1), msgFrom(bob, "m2", 2)})
	require.NoError(t, f.ctrl.ChooseLoad(ctx))
	f.tr.emits = nil

	eff := f.dispatch(t, HistoryPushed{})

	assert.True(t, eff.Drain)
	assert.Equal(t, []string{"m1", "m2"}, ids(f.ctrl.Store().Messages()))
	env, ok := f.tr.last(protocol.EventUpdateHistory)
	require.True(t, ok)
	pushed, _, err := history.Decode(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids(pushed))
}

func TestHistoryPush_WindowOmitsOlder(t *testing.T) {
	f := newFixture(t, nil)
	var h model.History
	for i := 0; i < 60; i++ {
		h = append(h, msgFrom(bob, "m"+string(rune('A'+i)), i))
	}

	f.dispatch(t, HistoryPushed{History: h})
	f.drainAll()

	rendered := f.pipe.Rendered()
	require.Len(t, rendered, 51)
	assert.True(t, rendered[0].Message.IsSystem())
	assert.Equal(t, "10 older messages omitted", rendered[0].Message.Text)
	assert.Equal(t, h[10].ID, rendered[1].Message.ID)
}

// ============================================================================
// LIVE MESSAGE TESTS
// ============================================================================

func TestMessage_FollowingScrollsWithoutNotice(t *testing.T) {
	f := newFixture(t, nil)

	eff := f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)})
	assert.True(t, eff.Drain)
	assert.True(t, f.pipe.TakeScrollRequest())
	assert.False(t, f.pipe.Unread())
	assert.Equal(t, 1, f.ctrl.Store().Len())
}

func TestMessage_BrowsingShowsUnread(t *testing.T) {
	f := newFixture(t, nil)
	f.pipe.OnScroll(500)
	require.Equal(t, render.Browsing, f.pipe.State())

	f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)})

	assert.False(t, f.pipe.TakeScrollRequest())
	assert.True(t, f.pipe.Unread())
	assert.Equal(t, render.Browsing, f.pipe.State())
}

func TestMessage_OwnAlwaysScrolls(t *testing.T) {
	f := newFixture(t, nil)
	f.pipe.OnScroll(500)

	f.dispatch(t, MessageReceived{Message: msgFrom(alice, "m1", 1)})

	assert.True(t, f.pipe.TakeScrollRequest())
	assert.Equal(t, render.Following, f.pipe.State())
	assert.False(t, f.pipe.Unread())
}

func TestMessage_DuplicateNotRedisplayed(t *testing.T) {
	f := newFixture(t, nil)
	m := msgFrom(bob, "m1", 1)

	assert.True(t, f.dispatch(t, MessageReceived{Message: m}).Drain)
	f.drainAll()
	eff := f.dispatch(t, MessageReceived{Message: m})

	assert.False(t, eff.Drain)
	assert.Equal(t, 1, f.pipe.Len())
	assert.Equal(t, 1, f.ctrl.Store().Len())
}

func TestMessage_InvalidRejected(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.r.Dispatch(context.Background(), MessageReceived{Message: model.Message{Text: "no author"}})
	assert.ErrorIs(t, err, model.ErrInvalidMessage)
	assert.True(t, f.ctrl.Store().Empty())
	assert.True(t, f.pipe.Empty())
}

func TestMessage_DrainJoinsRunningBatch(t *testing.T) {
	f := newFixture(t, nil)
	assert.True(t, f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)}).Drain)
	assert.False(t, f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m2", 2)}).Drain)
	assert.Equal(t, 2, f.pipe.Pending())
}

// ============================================================================
// PEER TESTS
// ============================================================================

func TestPeerJoined_DisplayedNotStoredAndShared(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)})
	f.drainAll()

	f.dispatch(t, PeerJoined{Peer: model.Identity{Username: "carol", UserID: "u3"}})
	f.drainAll()

	assert.Equal(t, 1, f.ctrl.Store().Len(), "join notice is not stored")
	last := f.pipe.Rendered()[f.pipe.Len()-1].Message
	assert.True(t, last.IsSystem())
	assert.Equal(t, "carol joined the chat", last.Text)

	env, ok := f.tr.last(protocol.EventShareHistory)
	require.True(t, ok)
	var share protocol.SharePayload
	require.NoError(t, env.Decode(&share))
	assert.Equal(t, "u3", share.UserID)
	assert.Equal(t, []string{"m1"}, ids(share.History))
}

func TestPeerJoined_EmptyStoreSharesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatch(t, PeerJoined{Peer: model.Identity{Username: "carol", UserID: "u3"}})
	_, ok := f.tr.last(protocol.EventShareHistory)
	assert.False(t, ok)
}

func TestPeerLeft_Stored(t *testing.T) {
	f := newFixture(t, nil)
	f.dispatch(t, PeerLeft{Peer: bob})

	stored := f.ctrl.Store().Messages()
	require.Len(t, stored, 1)
	assert.Equal(t, "bob left the chat", stored[0].Text)
	assert.Equal(t, model.TypeSystem, stored[0].Type)
	assert.Equal(t, 1, f.pipe.Pending())
}

func TestPeerHistoryShared(t *testing.T) {
	f := newFixture(t, nil)

	eff := f.dispatch(t, PeerHistoryShared{History: model.History{msgFrom(bob, "m1", 1), msgFrom(bob, "m2", 2)}})
	assert.True(t, eff.Drain, "empty view renders the shared tail")
	f.drainAll()
	assert.Equal(t, []string{"m1", "m2"}, renderedIDs(f.pipe))

	eff = f.dispatch(t, PeerHistoryShared{History: model.History{msgFrom(bob, "m0", 0)}})
	assert.False(t, eff.Drain, "a populated view is left alone")
	assert.Equal(t, []string{"m0", "m1", "m2"}, ids(f.ctrl.Store().Messages()))
	assert.Equal(t, []string{"m1", "m2"}, renderedIDs(f.pipe))
}

// ============================================================================
// LINK AND STORE TESTS
// ============================================================================

func TestConnectedAndDisconnected(t *testing.T) {
	f := newFixture(t, nil)

	eff := f.dispatch(t, Disconnected{Reason: "link lost"})
	assert.Equal(t, session.StateDisconnected, f.ctrl.State())
	assert.Contains(t, eff.Notice, "link lost")

	f.tr.emits = nil
	eff = f.dispatch(t, Connected{})
	assert.Equal(t, session.StateConnected, f.ctrl.State())
	assert.Equal(t, "connected", eff.Notice)
	_, ok := f.tr.last(protocol.EventJoin)
	assert.True(t, ok, "a reconnect joins again")
}

func TestStoreChanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.dispatch(t, MessageReceived{Message: msgFrom(bob, "m1", 1)})
	f.drainAll()

	other := history.NewStore(f.kv)
	require.NoError(t, other.Load(ctx))
	_, err := other.Append(ctx, msgFrom(bob, "m2", 2))
	require.NoError(t, err)

	eff := f.dispatch(t, StoreChanged{})
	assert.True(t, eff.Drain)
	assert.Equal(t, []string{"m1", "m2"}, ids(f.ctrl.Store().Messages()))

	eff = f.dispatch(t, StoreChanged{})
	assert.False(t, eff.Drain, "nothing new on disk")
}

// ============================================================================
// DECODE TESTS
// ============================================================================

func TestDecode(t *testing.T) {
	m := msgFrom(bob, "m1", 1)
	tests := []struct {
		name string
		env  protocol.Envelope
		want Kind
	}{
		{"message", protocol.MustEnvelope(protocol.EventMessage, m), KindMessageReceived},
		{"history", protocol.MustEnvelope(protocol.EventChatHistory, model.History{m}), KindHistoryPushed},
		{"null history", protocol.Envelope{Event: protocol.EventChatHistory}, KindHistoryPushed},
		{"shared", protocol.MustEnvelope(protocol.EventSharedHistory, model.History{m}), KindPeerHistoryShared},
		{"joined", protocol.MustEnvelope(protocol.EventUserJoined, bob), KindPeerJoined},
		{"left", protocol.MustEnvelope(protocol.EventUserLeft, bob), KindPeerLeft},
		{"connect", protocol.Envelope{Event: protocol.EventConnect}, KindConnected},
		{"disconnect", protocol.MustEnvelope(protocol.EventDisconnect, map[string]string{"reason": "x"}), KindDisconnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Kind())
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	bad := []protocol.Envelope{
		{Event: protocol.EventMessage},
		{Event: protocol.EventMessage, Payload: []byte(`"nope"`)},
		{Event: protocol.EventChatHistory, Payload: []byte(`{"not":"an array"}`)},
		{Event: protocol.EventJoin, Payload: []byte(`{}`)},
		{Event: "mystery"},
	}
	for _, env := range bad {
		_, err := Decode(env)
		assert.ErrorIs(t, err, protocol.ErrBadPayload, env.Event)
	}
}

func TestHandle_DropsMalformed(t *testing.T) {
	f := newFixture(t, nil)
	eff := f.r.Handle(context.Background(), protocol.Envelope{Event: protocol.EventMessage, Payload: []byte(`[`)})
	assert.Equal(t, Effect{}, eff)

	eff = f.r.Handle(context.Background(), protocol.MustEnvelope(protocol.EventMessage, msgFrom(bob, "m1", 1)))
	assert.True(t, eff.Drain)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "message", KindMessageReceived.String())
	assert.Equal(t, "store_changed", KindStoreChanged.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
